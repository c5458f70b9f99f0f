package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/litreview/tools/papersearch/models"
)

const DefaultBaseURL = "http://export.arxiv.org/api/query"

type Search struct {
	BaseURL string
	Client  *http.Client
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

func (s Search) Search(ctx context.Context, topic string, k int) ([]models.Record, error) {
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	params := url.Values{}
	params.Set("search_query", "all:"+topic)
	params.Set("max_results", strconv.Itoa(k))
	params.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, "GET", base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: creating request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv: unexpected status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv: decoding feed: %w", err)
	}

	out := make([]models.Record, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		names := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			names = append(names, a.Name)
		}
		year := 0
		if published, err := time.Parse(time.RFC3339, e.Published); err == nil {
			year = published.Year()
		}
		out = append(out, models.Record{
			Title:    collapse(e.Title),
			URL:      strings.TrimSpace(e.ID),
			Abstract: collapse(e.Summary),
			Authors:  strings.Join(names, ", "),
			Year:     year,
			Source:   models.SourceArxiv,
		})
	}
	return out, nil
}

// collapse flattens the multiline text the Atom feed returns into one line.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
