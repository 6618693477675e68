package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/feed"
)

// RefreshFeedTask fetches the first page of a feed headlessly and stores it
// as the feed's hydration snapshot.
type RefreshFeedTask struct {
	Task
	FeedConfig   *feed.Config
	pipeline     *feed.Pipeline
	feedRepo     database.FeedRepository
	snapshotRepo database.SnapshotRepository
}

func NewRefreshFeedTask(feedName string, feedConfig *feed.Config, pipeline *feed.Pipeline, feedRepo database.FeedRepository, snapshotRepo database.SnapshotRepository) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:         NewTask(TaskTypeRefreshFeed, feedName),
		FeedConfig:   feedConfig,
		pipeline:     pipeline,
		feedRepo:     feedRepo,
		snapshotRepo: snapshotRepo,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	registered, err := t.feedRepo.GetFeed(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed: %w", err)
	}
	if registered == nil {
		return fmt.Errorf("feed '%s' is not registered yet", t.FeedName)
	}

	now := time.Now().UTC()
	nextFetch := now.Add(time.Duration(t.FeedConfig.Settings.RefreshInterval) * time.Second)

	params, err := feed.BuildQuery(feed.QueryInput{Config: t.FeedConfig, Page: 1})
	if errors.Is(err, feed.ErrUnresolvedSource) {
		// Linked feeds only get a source once a control submits filters.
		slog.Debug("Feed source unresolved, no snapshot", "feed", t.FeedName)
		return t.feedRepo.UpdateFetchTimes(t.FeedName, now, nextFetch)
	}
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if t.FeedConfig.Settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.FeedConfig.Settings.Timeout)*time.Second)
		defer cancel()
	}

	frag, err := t.pipeline.Request(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	err = t.snapshotRepo.SaveSnapshot(database.Snapshot{
		FeedName:     t.FeedName,
		Query:        params.Encode(),
		Page:         1,
		RawContent:   frag.Content,
		TotalCount:   frag.Meta.TotalCount,
		DisplayCount: frag.Meta.DisplayCount,
		HasPrev:      frag.Meta.HasPrev,
		HasNext:      frag.Meta.HasNext,
		HasResults:   frag.Meta.HasResults,
		FetchedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	if err := t.feedRepo.UpdateFetchTimes(t.FeedName, now, nextFetch); err != nil {
		return fmt.Errorf("failed to update fetch times: %w", err)
	}

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed", t.FeedName,
		"has_results", frag.Meta.HasResults,
		"total_count", frag.Meta.TotalCount,
		"next_fetch_at", nextFetch,
		"duration", t.GetDuration())

	return nil
}

// SnapshotState converts a stored snapshot into the state an instance is
// hydrated with.
func SnapshotState(s *database.Snapshot) feed.State {
	return feed.State{
		Page:         s.Page,
		RawContent:   s.RawContent,
		TotalCount:   s.TotalCount,
		DisplayCount: s.DisplayCount,
		HasPrev:      s.HasPrev,
		HasNext:      s.HasNext,
		HasResults:   s.HasResults,
	}
}
