package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLFeedRepository handles database operations for feeds
type SQLFeedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) *SQLFeedRepository {
	return &SQLFeedRepository{db: db}
}

const feedColumns = `name, block_id, source, layout_mode, last_fetched_at, next_fetch_at, created_at, updated_at`

// UpsertFeed inserts or updates a feed registration
func (r *SQLFeedRepository) UpsertFeed(feedName, blockID, source, layoutMode string) error {
	now := toMillis(time.Now())

	_, err := r.db.Exec(`
		INSERT INTO feeds (name, block_id, source, layout_mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			block_id = excluded.block_id,
			source = excluded.source,
			layout_mode = excluded.layout_mode,
			updated_at = excluded.updated_at
	`, feedName, blockID, source, layoutMode, now, now)

	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

// UpdateFetchTimes records a refresh and schedules the next one
func (r *SQLFeedRepository) UpdateFetchTimes(feedName string, fetchedAt, nextFetch time.Time) error {
	result, err := r.db.Exec(`
		UPDATE feeds
		SET last_fetched_at = ?, next_fetch_at = ?, updated_at = ?
		WHERE name = ?
	`, toMillis(fetchedAt), toMillis(nextFetch), toMillis(time.Now()), feedName)

	if err != nil {
		return fmt.Errorf("failed to update fetch times: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feed '%s' is not registered", feedName)
	}

	return nil
}

// GetFeed retrieves a feed by name, returning nil when it is not registered
func (r *SQLFeedRepository) GetFeed(feedName string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE name = ?`, feedName)

	feed, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

// GetFeedsDueForRefresh returns feeds never fetched or whose next fetch is due
func (r *SQLFeedRepository) GetFeedsDueForRefresh(now time.Time) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE next_fetch_at IS NULL OR next_fetch_at <= ?
		ORDER BY COALESCE(next_fetch_at, 0), name
		LIMIT 50
	`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds due for refresh: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *SQLFeedRepository) GetFeedCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var feed Feed
	var lastFetched, nextFetch sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&feed.Name, &feed.BlockID, &feed.Source, &feed.LayoutMode,
		&lastFetched, &nextFetch, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.LastFetchedAt = nullMillis(lastFetched)
	feed.NextFetchAt = nullMillis(nextFetch)
	feed.CreatedAt = fromMillis(createdAt)
	feed.UpdatedAt = fromMillis(updatedAt)

	return &feed, nil
}
