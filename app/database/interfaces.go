package database

import (
	"time"
)

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeedCount() (int, error)
	GetFeedsDueForRefresh(now time.Time) ([]Feed, error)

	UpsertFeed(feedName, blockID, source, layoutMode string) error
	UpdateFetchTimes(feedName string, fetchedAt, nextFetch time.Time) error
}

type SnapshotRepository interface {
	GetSnapshot(feedName string) (*Snapshot, error)
	SaveSnapshot(snapshot Snapshot) error
}

var (
	_ FeedRepository     = (*SQLFeedRepository)(nil)
	_ SnapshotRepository = (*SQLSnapshotRepository)(nil)
)
