package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/litreview/tools/papersearch/models"
)

const DefaultBaseURL = "https://google.serper.dev/search"

type Search struct {
	ApiKey  string
	BaseURL string
	Client  *http.Client
}

func (s Search) Search(ctx context.Context, topic string, k int) ([]models.Record, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": topic + " research paper", "num": k}
	body, _ := json.Marshal(payload)

	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, "POST", base, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("serper: creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper: decoding response: %w", err)
	}

	var out []models.Record
	for i, item := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, models.Record{
			Title:    item.Title,
			URL:      item.Link,
			Abstract: item.Snippet,
			Authors:  "Unknown",
			Source:   models.SourceWeb,
		})
	}
	return out, nil
}
