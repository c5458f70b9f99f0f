package papersearch

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/litreview/config"
	"github.com/mohammad-safakhou/litreview/tools/papersearch/arxiv"
	"github.com/mohammad-safakhou/litreview/tools/papersearch/models"
	"github.com/mohammad-safakhou/litreview/tools/papersearch/serper"
)

// Searcher finds research papers for a topic. k caps the number of results
// per sub-source.
type Searcher interface {
	Search(ctx context.Context, topic string, k int) ([]models.Record, error)
}

// Merged fans a query out to every configured sub-source and concatenates
// the results in sub-source order. A failing sub-source is logged and
// skipped; zero total results is a valid outcome.
type Merged struct {
	sources []Searcher
	logger  *log.Logger
}

func NewMerged(logger *log.Logger, sources ...Searcher) *Merged {
	if logger == nil {
		logger = log.Default()
	}
	return &Merged{sources: sources, logger: logger}
}

// FromConfig builds the default source set: arXiv always, serper web search
// when an API key is configured.
func FromConfig(cfg config.SearchConfig, logger *log.Logger) *Merged {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	sources := []Searcher{arxiv.Search{BaseURL: cfg.ArxivBaseURL, Client: httpClient}}
	if strings.TrimSpace(cfg.SerperAPIKey) != "" {
		sources = append(sources, serper.Search{ApiKey: cfg.SerperAPIKey, Client: httpClient})
	}
	return NewMerged(logger, sources...)
}

func (m *Merged) Search(ctx context.Context, topic string, k int) ([]models.Record, error) {
	results := make([][]models.Record, len(m.sources))
	errs := make([]error, len(m.sources))

	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func(i int, src Searcher) {
			defer wg.Done()
			results[i], errs[i] = src.Search(ctx, topic, k)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []models.Record
	for i, records := range results {
		if errs[i] != nil {
			m.logger.Printf("search source failed: %v", errs[i])
			continue
		}
		for _, r := range records {
			key := r.Title + "\x00" + r.URL
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged, nil
}
