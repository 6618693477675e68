package database

import (
	"database/sql"
	"errors"
	"fmt"
)

type SQLSnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SQLSnapshotRepository {
	return &SQLSnapshotRepository{db: db}
}

// SaveSnapshot replaces the stored snapshot of a registered feed
func (r *SQLSnapshotRepository) SaveSnapshot(s Snapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO snapshots (feed_name, request_query, page, raw_content, total_count, display_count,
		                       has_prev, has_next, has_results, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_name) DO UPDATE SET
			request_query = excluded.request_query,
			page = excluded.page,
			raw_content = excluded.raw_content,
			total_count = excluded.total_count,
			display_count = excluded.display_count,
			has_prev = excluded.has_prev,
			has_next = excluded.has_next,
			has_results = excluded.has_results,
			fetched_at = excluded.fetched_at
	`, s.FeedName, s.Query, s.Page, s.RawContent, s.TotalCount, s.DisplayCount,
		boolInt(s.HasPrev), boolInt(s.HasNext), boolInt(s.HasResults), toMillis(s.FetchedAt))

	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// GetSnapshot returns the stored snapshot, or nil when there is none
func (r *SQLSnapshotRepository) GetSnapshot(feedName string) (*Snapshot, error) {
	var s Snapshot
	var hasPrev, hasNext, hasResults int
	var fetchedAt int64

	err := r.db.QueryRow(`
		SELECT feed_name, request_query, page, raw_content, total_count, display_count,
		       has_prev, has_next, has_results, fetched_at
		FROM snapshots
		WHERE feed_name = ?
	`, feedName).Scan(
		&s.FeedName, &s.Query, &s.Page, &s.RawContent, &s.TotalCount, &s.DisplayCount,
		&hasPrev, &hasNext, &hasResults, &fetchedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	s.HasPrev = hasPrev != 0
	s.HasNext = hasNext != 0
	s.HasResults = hasResults != 0
	s.FetchedAt = fromMillis(fetchedAt)

	return &s, nil
}
