package tasks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/feed"
)

const firstPage = `<div data-has-prev="false" data-has-next="true" data-total-count="10" data-display-count="10 events"></div><article>one</article>`

type fixture struct {
	db        *database.DB
	feeds     database.FeedRepository
	snapshots database.SnapshotRepository
	pipeline  *feed.Pipeline
	requests  *atomic.Int32
}

func newFixture(t *testing.T, status int, body string) *fixture {
	t.Helper()

	requests := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	db, err := database.Open(filepath.Join(t.TempDir(), "feedsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	pipeline, err := feed.NewPipeline(srv.Client(), srv.URL, "feedsync-test", 5*time.Second)
	require.NoError(t, err)

	return &fixture{
		db:        db,
		feeds:     database.NewFeedRepository(db),
		snapshots: database.NewSnapshotRepository(db),
		pipeline:  pipeline,
		requests:  requests,
	}
}

func eventsConfig() *feed.Config {
	return &feed.Config{
		Name:         "events",
		ID:           "events-feed",
		Source:       feed.SourceExplicitFilters,
		PostType:     "event",
		PostsPerPage: 12,
		Pagination:   feed.PaginationPrevNext,
		LayoutMode:   feed.LayoutGrid,
		Settings: feed.ConfigSettings{
			Enabled:         true,
			RefreshInterval: 600,
			Timeout:         5,
		},
	}
}

func TestNewTaskID(t *testing.T) {
	a := NewTask(TaskTypeRefreshFeed, "events")
	b := NewTask(TaskTypeRefreshFeed, "events")

	_, err := ulid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, DefaultMaxRetries, a.GetMaxRetries())
	assert.True(t, a.CanRetry())
	assert.Zero(t, a.GetDuration())
}

func TestSyncFeedConfigTask(t *testing.T) {
	f := newFixture(t, http.StatusOK, firstPage)
	cfg := eventsConfig()

	task := NewSyncFeedConfigTask(cfg.Name, cfg, f.feeds)
	task.Start()
	require.NoError(t, task.Execute(context.Background()))

	registered, err := f.feeds.GetFeed("events")
	require.NoError(t, err)
	require.NotNil(t, registered)
	assert.Equal(t, "events-feed", registered.BlockID)
	assert.Equal(t, "explicit-filters", registered.Source)
}

func TestRefreshFeedTaskStoresSnapshot(t *testing.T) {
	f := newFixture(t, http.StatusOK, firstPage)
	cfg := eventsConfig()
	require.NoError(t, f.feeds.UpsertFeed(cfg.Name, cfg.ID, string(cfg.Source), string(cfg.LayoutMode)))

	task := NewRefreshFeedTask(cfg.Name, cfg, f.pipeline, f.feeds, f.snapshots)
	task.Start()
	require.NoError(t, task.Execute(context.Background()))

	snapshot, err := f.snapshots.GetSnapshot("events")
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "action=post_feed_query&type=event&pg=1&limit=12", snapshot.Query)
	assert.Equal(t, "<article>one</article>", snapshot.RawContent)

	state := SnapshotState(snapshot)
	assert.Equal(t, feed.State{
		Page:         1,
		RawContent:   "<article>one</article>",
		TotalCount:   10,
		DisplayCount: "10 events",
		HasNext:      true,
		HasResults:   true,
	}, state)

	registered, err := f.feeds.GetFeed("events")
	require.NoError(t, err)
	require.NotNil(t, registered.NextFetchAt)
	require.NotNil(t, registered.LastFetchedAt)
	assert.Equal(t, 600*time.Second, registered.NextFetchAt.Sub(*registered.LastFetchedAt))
}

func TestRefreshFeedTaskRequiresRegistration(t *testing.T) {
	f := newFixture(t, http.StatusOK, firstPage)
	cfg := eventsConfig()

	task := NewRefreshFeedTask(cfg.Name, cfg, f.pipeline, f.feeds, f.snapshots)
	assert.Error(t, task.Execute(context.Background()))
	assert.Zero(t, f.requests.Load())
}

func TestRefreshFeedTaskHTTPError(t *testing.T) {
	f := newFixture(t, http.StatusServiceUnavailable, "")
	cfg := eventsConfig()
	require.NoError(t, f.feeds.UpsertFeed(cfg.Name, cfg.ID, string(cfg.Source), string(cfg.LayoutMode)))

	task := NewRefreshFeedTask(cfg.Name, cfg, f.pipeline, f.feeds, f.snapshots)
	err := task.Execute(context.Background())
	require.Error(t, err)

	snapshot, err := f.snapshots.GetSnapshot("events")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestRefreshFeedTaskUnresolvedSource(t *testing.T) {
	f := newFixture(t, http.StatusOK, firstPage)
	cfg := eventsConfig()
	cfg.Source = feed.SourceLinkedControl
	cfg.PostType = ""
	require.NoError(t, f.feeds.UpsertFeed(cfg.Name, cfg.ID, string(cfg.Source), string(cfg.LayoutMode)))

	task := NewRefreshFeedTask(cfg.Name, cfg, f.pipeline, f.feeds, f.snapshots)
	require.NoError(t, task.Execute(context.Background()))

	assert.Zero(t, f.requests.Load())
	registered, err := f.feeds.GetFeed("events")
	require.NoError(t, err)
	assert.NotNil(t, registered.NextFetchAt)
}

func TestRefreshFeedTaskDisabled(t *testing.T) {
	f := newFixture(t, http.StatusOK, firstPage)
	cfg := eventsConfig()
	cfg.Settings.Enabled = false

	task := NewRefreshFeedTask(cfg.Name, cfg, f.pipeline, f.feeds, f.snapshots)
	require.NoError(t, task.Execute(context.Background()))
	assert.Zero(t, f.requests.Load())
}

func TestSchedulerRunsStartupTasks(t *testing.T) {
	f := newFixture(t, http.StatusOK, firstPage)

	feedsDir := t.TempDir()
	content := `
id: "events-feed"
source: "explicit-filters"
post_type: "event"
settings:
  enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(feedsDir, "events.yml"), []byte(content), 0644))
	configCache := feed.NewConfigCache(feedsDir)
	require.NoError(t, configCache.Run())

	scheduler := NewScheduler(configCache, f.feeds, f.snapshots, f.pipeline, 1, time.Hour)
	scheduler.Start()
	defer scheduler.Stop()

	assert.Eventually(t, func() bool {
		snapshot, err := f.snapshots.GetSnapshot("events")
		return err == nil && snapshot != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSchedulerQueueFull(t *testing.T) {
	scheduler := NewScheduler(feed.NewConfigCache(t.TempDir()), nil, nil, nil, 1, time.Hour)
	defer scheduler.Stop()

	for i := 0; i < cap(scheduler.taskQueue); i++ {
		require.NoError(t, scheduler.EnqueueTask(NewSyncFeedConfigTask("x", eventsConfig(), nil)))
	}
	assert.Error(t, scheduler.EnqueueTask(NewSyncFeedConfigTask("x", eventsConfig(), nil)))
}
