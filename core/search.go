package core

import "time"

// SearchResult represents a retrieved memory item with a relevance score and
// arbitrary metadata. CreatedAt is populated by stores that track insertion
// time; zero otherwise.
type SearchResult struct {
	ID        string
	Content   string
	Score     float64
	Metadata  map[string]any
	CreatedAt time.Time
}
