package review

import (
	"regexp"
	"strconv"
	"strings"
)

// Evaluation is the parsed form of the critic stage's output: a score, a
// feedback line, and the echoed draft body.
type Evaluation struct {
	Score    int
	Scored   bool
	Feedback string
	Body     string
}

var scorePattern = regexp.MustCompile(`(?i)\bscore\b[^0-9]{0,10}(10|[1-9])`)

// ParseEvaluation splits critic output into its header (score, feedback)
// and the echoed draft that follows the first blank line after the header.
// When no header is recognizable, the whole output counts as body and the
// evaluation is unscored.
func ParseEvaluation(raw string) Evaluation {
	ev := Evaluation{Body: strings.TrimSpace(raw)}
	lines := strings.Split(raw, "\n")
	inHeader := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(lower, "score"):
			if m := scorePattern.FindStringSubmatch(trimmed); m != nil {
				n, _ := strconv.Atoi(m[1])
				ev.Score = n
				ev.Scored = true
			}
			inHeader = true
		case strings.HasPrefix(lower, "feedback"):
			if idx := strings.Index(trimmed, ":"); idx >= 0 {
				ev.Feedback = strings.TrimSpace(trimmed[idx+1:])
			}
			inHeader = true
		case trimmed == "":
			if inHeader {
				ev.Body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
				return ev
			}
		default:
			if inHeader {
				// Continuation of the feedback line.
				if ev.Feedback != "" {
					ev.Feedback += " " + trimmed
				} else {
					ev.Feedback = trimmed
				}
			} else {
				// No header at all: the output is just the body.
				return ev
			}
		}
	}
	if inHeader {
		// Header-only output, nothing echoed back.
		ev.Body = ""
	}
	return ev
}
