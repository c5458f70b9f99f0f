package review

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Year is a publication year that tolerates the shapes models emit for it:
// a JSON number, a numeric string, or the literal "Unknown". Zero means
// unknown and marshals back to "Unknown".
type Year int

func (y *Year) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" || strings.EqualFold(s, "unknown") {
		*y = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*y = 0
		return nil
	}
	*y = Year(n)
	return nil
}

func (y Year) MarshalJSON() ([]byte, error) {
	if y == 0 {
		return []byte(`"Unknown"`), nil
	}
	return []byte(strconv.Itoa(int(y))), nil
}

// PaperRecord is one paper moving through the pipeline. The search stage
// creates it, the extraction stage enriches it in place; it lives only for
// the duration of a run.
type PaperRecord struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Abstract    string `json:"abstract"`
	Authors     string `json:"authors"`
	Year        Year   `json:"year"`
	Source      string `json:"source"`
	KeyFindings string `json:"key_findings,omitempty"`
	Methodology string `json:"methodology,omitempty"`
	Relevance   string `json:"relevance,omitempty"`
}

// PayloadKind tags the variant a StagePayload carries.
type PayloadKind int

const (
	// PayloadAny accepts any payload; used by stages that take either form.
	PayloadAny PayloadKind = iota
	PayloadText
	PayloadPapers
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadPapers:
		return "papers"
	default:
		return "any"
	}
}

// StagePayload is the typed boundary object handed from one stage to the
// next: either a list of PaperRecord or free text.
type StagePayload struct {
	Kind   PayloadKind
	Text   string
	Papers []PaperRecord
}

func TextPayload(text string) StagePayload {
	return StagePayload{Kind: PayloadText, Text: text}
}

func PapersPayload(papers []PaperRecord) StagePayload {
	return StagePayload{Kind: PayloadPapers, Papers: papers}
}

// Render serializes the payload for inclusion in a backend request.
func (p StagePayload) Render() string {
	if p.Kind == PayloadPapers {
		data, err := json.Marshal(p.Papers)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return p.Text
}

// RunEvent is one entry of a run's append-only event log.
type RunEvent struct {
	Stage     string    `json:"stage"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// FinalReport is the user-facing result of one run. Incomplete marks the
// placeholder produced when no usable report text could be recovered.
type FinalReport struct {
	Text       string   `json:"text"`
	Warnings   []string `json:"warnings,omitempty"`
	Incomplete bool     `json:"incomplete"`
}
