package database

import (
	"time"
)

type Feed struct {
	Name          string // Configuration name derived from filename
	BlockID       string // Element id of the rendered block
	Source        string
	LayoutMode    string
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot is the last committed first page of a feed, used to hydrate
// instances without an initial request.
type Snapshot struct {
	FeedName     string
	Query        string // Encoded request parameters the snapshot answers
	Page         int
	RawContent   string
	TotalCount   int
	DisplayCount string
	HasPrev      bool
	HasNext      bool
	HasResults   bool
	FetchedAt    time.Time
}
