package api

import (
	"encoding/json"
	"time"

	"github.com/lysyi3m/feedsync/app/bus"
	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/dom"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/tasks"
)

type Handler struct {
	registry    *feed.Registry
	configCache *feed.ConfigCache
	feedRepo    database.FeedRepository
	scheduler   tasks.TaskSchedulerInterface
	page        *dom.Page
	bus         *bus.Bus
	startedAt   time.Time
}

type feedSummary struct {
	Name          string          `json:"name"`
	ID            string          `json:"id"`
	Source        feed.Source     `json:"source"`
	Pagination    feed.Pagination `json:"pagination"`
	LayoutMode    feed.LayoutMode `json:"layoutMode"`
	Page          int             `json:"page"`
	Loading       bool            `json:"loading"`
	HasResults    bool            `json:"hasResults"`
	LastFetchedAt *time.Time      `json:"lastFetchedAt,omitempty"`
	NextFetchAt   *time.Time      `json:"nextFetchAt,omitempty"`
}

type feedDetails struct {
	Name  string     `json:"name"`
	ID    string     `json:"id"`
	State feed.State `json:"state"`
}

type transitionResponse struct {
	Applied bool       `json:"applied"`
	State   feed.State `json:"state"`
}

type hoverRequest struct {
	Hovered bool `json:"hovered"`
}

// wsMessage is the envelope of every frame on the bus websocket.
type wsMessage struct {
	Type      bus.Kind `json:"type"`
	Timestamp string   `json:"timestamp,omitempty"`
	Data      any      `json:"data"`
}

type wsInbound struct {
	Type bus.Kind        `json:"type"`
	Data json.RawMessage `json:"data"`
}
