package research

import "time"

// Item is one normalized research result from any source.
type Item struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary,omitempty"`
	Score       float64   `json:"score,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Bundle is the merged result set for a topic.
type Bundle struct {
	Topic     string    `json:"topic"`
	Items     []Item    `json:"items"`
	Sources   []string  `json:"sources"`
	Failed    []string  `json:"failed_sources,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
