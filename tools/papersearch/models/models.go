package models

// Record is a single paper returned by a search sub-source.
type Record struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Abstract string `json:"abstract"`
	Authors  string `json:"authors"`
	Year     int    `json:"year,omitempty"` // 0 when the source does not know
	Source   string `json:"source"`
}

// Source labels. Primary sources carry full metadata, secondary web hits
// come back with unknown authors and year.
const (
	SourceArxiv = "ArXiv"
	SourceWeb   = "Web"
)
