package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/feedsync/app/bus"
	"github.com/lysyi3m/feedsync/app/carousel"
	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/dom"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/tasks"
)

func NewHandler(registry *feed.Registry, configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	scheduler tasks.TaskSchedulerInterface, page *dom.Page, eventBus *bus.Bus) *Handler {
	return &Handler{
		registry:    registry,
		configCache: configCache,
		feedRepo:    feedRepo,
		scheduler:   scheduler,
		page:        page,
		bus:         eventBus,
		startedAt:   time.Now(),
	}
}

func (h *Handler) instance(c *gin.Context) (*feed.Instance, bool) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return nil, false
	}

	inst, ok := h.registry.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}

	return inst, true
}

func (h *Handler) ListFeeds(c *gin.Context) {
	names := h.registry.Names()
	feeds := make([]feedSummary, 0, len(names))

	for _, name := range names {
		inst, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		feedConfig := inst.Config()
		state := inst.State()

		summary := feedSummary{
			Name:       name,
			ID:         feedConfig.ID,
			Source:     feedConfig.Source,
			Pagination: feedConfig.Pagination,
			LayoutMode: feedConfig.LayoutMode,
			Page:       state.Page,
			Loading:    state.Loading,
			HasResults: state.HasResults,
		}

		if h.feedRepo != nil {
			if registered, err := h.feedRepo.GetFeed(name); err == nil && registered != nil {
				summary.LastFetchedAt = registered.LastFetchedAt
				summary.NextFetchAt = registered.NextFetchAt
			}
		}

		feeds = append(feeds, summary)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) GetFeed(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	feedConfig := inst.Config()
	c.JSON(http.StatusOK, feedDetails{
		Name:  feedConfig.Name,
		ID:    feedConfig.ID,
		State: inst.State(),
	})
}

// GetFeedHTML serves the block as it currently exists on the shared page.
func (h *Handler) GetFeedHTML(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	id := inst.Config().ID
	var markup string
	var err error
	h.page.Do(func(doc *goquery.Document) {
		block := dom.ByID(doc, id)
		if block.Length() == 0 {
			return
		}
		markup, err = goquery.OuterHtml(block.First())
	})

	if err != nil {
		slog.Error("Render error", "feed", inst.Config().Name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if markup == "" {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("X-Feed-Id", id)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(markup))
}

func (h *Handler) Advance(c *gin.Context) {
	h.transition(c, (*feed.Instance).Advance)
}

func (h *Handler) Retreat(c *gin.Context) {
	h.transition(c, (*feed.Instance).Retreat)
}

func (h *Handler) LoadMore(c *gin.Context) {
	h.transition(c, (*feed.Instance).LoadMore)
}

// transition answers 409 when the move was not legal in the current state.
func (h *Handler) transition(c *gin.Context, move func(*feed.Instance, context.Context) bool) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	applied := move(inst, c.Request.Context())
	status := http.StatusOK
	if !applied {
		status = http.StatusConflict
	}

	c.JSON(status, transitionResponse{Applied: applied, State: inst.State()})
}

func (h *Handler) ClearFilters(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	if err := inst.ClearFilters(c.Request.Context()); err != nil {
		slog.Warn("Fetch after clearing filters failed", "feed", inst.Config().Name, "error", err)
	}

	c.JSON(http.StatusOK, transitionResponse{Applied: true, State: inst.State()})
}

func (h *Handler) ScrollCarousel(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	dir, ok := carousel.ParseDirection(c.Param("dir"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Direction must be 'prev' or 'next'"})
		return
	}

	ctrl := inst.Carousel()
	if ctrl == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Feed is not rendered as a carousel"})
		return
	}

	ctrl.Scroll(dir)
	c.JSON(http.StatusOK, gin.H{
		"direction":   dir.String(),
		"overflowing": ctrl.Overflowing(),
	})
}

func (h *Handler) SetHover(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}

	var req hoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctrl := inst.Carousel()
	if ctrl == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Feed is not rendered as a carousel"})
		return
	}

	if req.Hovered {
		ctrl.HoverEnter()
	} else {
		ctrl.HoverLeave()
	}
	c.JSON(http.StatusOK, gin.H{"hovered": ctrl.Hovered()})
}

// ReloadFeed re-reads the feed's configuration file and applies it to the
// mounted instance.
func (h *Handler) ReloadFeed(c *gin.Context) {
	inst, ok := h.instance(c)
	if !ok {
		return
	}
	name := inst.Config().Name

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	if err := inst.Reconfigure(c.Request.Context(), feedConfig); err != nil {
		slog.Warn("Fetch after reconfiguration failed", "feed", name, "error", err)
	}

	response := gin.H{
		"success": true,
		"state":   inst.State(),
	}

	if h.scheduler != nil && h.feedRepo != nil {
		syncFeedTask := tasks.NewSyncFeedConfigTask(name, feedConfig, h.feedRepo)
		if err := h.scheduler.EnqueueTask(syncFeedTask); err != nil {
			slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		} else {
			response["task"] = gin.H{"id": syncFeedTask.ID, "type": syncFeedTask.Type}
		}
	}

	c.JSON(http.StatusOK, response)
}

// SubmitFilters publishes a filters-submitted event as a search control
// would.
func (h *Handler) SubmitFilters(c *gin.Context) {
	var event bus.FiltersSubmitted
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if event.TargetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetId is required"})
		return
	}

	h.bus.Publish(event)
	c.JSON(http.StatusAccepted, gin.H{"published": event.Kind()})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":      time.Now().In(time.Local).Format(time.RFC3339),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"instances":      h.registry.Len(),
	}

	if h.feedRepo != nil {
		if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
			health["feeds"] = feedCount
		}
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}
