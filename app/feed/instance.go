package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/feedsync/app/assets"
	"github.com/lysyi3m/feedsync/app/bus"
	"github.com/lysyi3m/feedsync/app/carousel"
	"github.com/lysyi3m/feedsync/app/dom"
)

const defaultSettleDelay = 100 * time.Millisecond

// Presenter receives view hints that have no effect on state.
type Presenter interface {
	ScrollIntoView(id string)
}

type logPresenter struct{}

func (logPresenter) ScrollIntoView(id string) {
	slog.Debug("Scroll into view", "id", id)
}

type FetchRequest struct {
	Page   int
	Append bool
	// Filters and PostType replace the bus overrides when set.
	Filters  map[string]string
	PostType string
}

type Option func(*Instance)

// WithSnapshot seeds the instance with a previously committed state. A
// hydrated instance skips its initial fetch.
func WithSnapshot(state State) Option {
	return func(i *Instance) {
		state.Loading = false
		if state.Page < 1 {
			state.Page = 1
		}
		i.state = state
		i.hydrated = true
	}
}

func WithPresenter(p Presenter) Option {
	return func(i *Instance) { i.presenter = p }
}

// WithLive enables bus publishing and marker extraction.
func WithLive(live bool) Option {
	return func(i *Instance) { i.live = live }
}

func WithSettleDelay(d time.Duration) Option {
	return func(i *Instance) { i.settleDelay = d }
}

func WithCarouselFrames(f carousel.Frames) Option {
	return func(i *Instance) { i.frames = f }
}

func WithCarouselClock(c carousel.Clock) Option {
	return func(i *Instance) { i.clock = c }
}

// Instance is one mounted feed block: its render state, the paging
// transitions and the fetches that move between them.
type Instance struct {
	mu       sync.Mutex
	cfg      *Config
	state    State
	hydrated bool
	live     bool

	page      *dom.Page
	assets    *assets.Cache
	pipeline  *Pipeline
	bus       *bus.Bus
	renderer  *Renderer
	presenter Presenter

	settleDelay time.Duration
	scrollTimer *time.Timer

	overrideFilters      map[string]string
	overridePostType     string
	hasMapWidget         bool
	mapAdditionalMarkers string

	// seq identifies the latest fetch; older responses are discarded.
	seq uint64
	// owed is the config of a live fetch whose LoadingStarted has not been
	// answered by a LoadingFinished yet.
	owed *Config

	carousel *carousel.Controller
	track    *carousel.Track
	frames   carousel.Frames
	clock    carousel.Clock

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	inflight    sync.WaitGroup
}

func NewInstance(cfg *Config, page *dom.Page, cache *assets.Cache, pipeline *Pipeline, eventBus *bus.Bus, opts ...Option) *Instance {
	i := &Instance{
		cfg:         cfg,
		state:       InitialState(),
		page:        page,
		assets:      cache,
		pipeline:    pipeline,
		bus:         eventBus,
		renderer:    NewRenderer(),
		presenter:   logPresenter{},
		settleDelay: defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Mount renders the block into the page, subscribes to filter submissions
// and starts the initial fetch unless the instance was hydrated.
func (i *Instance) Mount(ctx context.Context) {
	i.mu.Lock()
	i.ctx, i.cancel = context.WithCancel(ctx)
	cfg := i.cfg
	hydrated := i.hydrated
	i.page.Do(func(doc *goquery.Document) {
		i.renderBlock(doc)
	})
	i.mu.Unlock()

	i.unsubscribe = bus.On(i.bus, i.onFiltersSubmitted)

	if hydrated {
		i.assets.SyncScripts(cfg.ContentID())
	}
	i.mountCarousel(cfg)

	slog.Info("Feed mounted", "feed", cfg.Name, "id", cfg.ID, "hydrated", hydrated)

	if !hydrated {
		i.background(FetchRequest{Page: 1})
	}
}

// Unmount stops timers, drops the bus subscription and waits for
// background fetches.
func (i *Instance) Unmount() {
	if i.unsubscribe != nil {
		i.unsubscribe()
	}

	i.mu.Lock()
	if i.cancel != nil {
		i.cancel()
	}
	if i.scrollTimer != nil {
		i.scrollTimer.Stop()
	}
	ctrl := i.carousel
	i.mu.Unlock()

	if ctrl != nil {
		ctrl.Unmount()
	}
	i.inflight.Wait()
}

// Wait blocks until background fetches started so far have finished.
func (i *Instance) Wait() {
	i.inflight.Wait()
}

func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *Instance) Config() *Config {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cfg
}

// Carousel returns the scroll controller, or nil outside carousel layout.
func (i *Instance) Carousel() *carousel.Controller {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.carousel
}

// Advance moves to the next page in prev-next mode. It reports false and
// does nothing when the move is not currently possible.
func (i *Instance) Advance(ctx context.Context) bool {
	return i.step(ctx, PaginationPrevNext, func(s State) (int, bool) {
		return s.Page + 1, s.HasNext
	}, false)
}

// Retreat moves to the previous page in prev-next mode.
func (i *Instance) Retreat(ctx context.Context) bool {
	return i.step(ctx, PaginationPrevNext, func(s State) (int, bool) {
		return s.Page - 1, s.HasPrev && s.Page > 1
	}, false)
}

// LoadMore appends the next page in load-more mode.
func (i *Instance) LoadMore(ctx context.Context) bool {
	return i.step(ctx, PaginationLoadMore, func(s State) (int, bool) {
		return s.Page + 1, s.HasNext
	}, true)
}

func (i *Instance) step(ctx context.Context, mode Pagination, next func(State) (int, bool), appendMode bool) bool {
	i.mu.Lock()
	if i.cfg.Pagination != mode || i.state.Loading || i.state.Unconfigured {
		i.mu.Unlock()
		return false
	}
	page, ok := next(i.state)
	if !ok || page < 1 {
		i.mu.Unlock()
		return false
	}

	run, owed, err := i.beginLocked(FetchRequest{Page: page, Append: appendMode})
	if err != nil {
		i.mu.Unlock()
		i.settle(owed)
		return false
	}
	if !appendMode {
		i.scheduleScrollLocked()
	}
	i.mu.Unlock()

	_ = i.run(ctx, run)
	return true
}

func (i *Instance) scheduleScrollLocked() {
	if i.scrollTimer != nil {
		i.scrollTimer.Stop()
	}
	id := i.cfg.ID
	presenter := i.presenter
	i.scrollTimer = time.AfterFunc(i.settleDelay, func() {
		presenter.ScrollIntoView(id)
	})
}

// Fetch requests a page and commits the response. The returned error is
// informational: on failure the state is already degraded to no results.
func (i *Instance) Fetch(ctx context.Context, req FetchRequest) error {
	i.mu.Lock()
	run, owed, err := i.beginLocked(req)
	i.mu.Unlock()
	if err != nil {
		i.settle(owed)
		return err
	}
	return i.run(ctx, run)
}

// settle answers the LoadingStarted of a live fetch that was superseded by
// a request that is never sent.
func (i *Instance) settle(owed *Config) {
	if owed == nil {
		return
	}
	i.bus.Publish(bus.LoadingFinished{SourceID: owed.ID, SearchFormID: owed.LinkedControl.ID})
}

// ClearFilters drops the filters received over the bus, announces it to
// the linked control and refetches the first page.
func (i *Instance) ClearFilters(ctx context.Context) error {
	i.mu.Lock()
	i.overrideFilters = nil
	i.overridePostType = ""
	i.hasMapWidget = false
	i.mapAdditionalMarkers = ""
	cfg := i.cfg
	live := i.live
	i.mu.Unlock()

	if live {
		i.bus.Publish(bus.FiltersCleared{
			PostType:     firstNonEmpty(cfg.LinkedControl.PostType, cfg.PostType),
			SearchFormID: cfg.LinkedControl.ID,
		})
	}

	return i.Fetch(ctx, FetchRequest{Page: 1})
}

// Reconfigure swaps the block configuration, re-renders and refetches the
// first page. The block id is kept when the new config has none.
func (i *Instance) Reconfigure(ctx context.Context, cfg *Config) error {
	i.mu.Lock()
	if cfg.ID == "" {
		cfg.ID = i.cfg.ID
	}
	prev := i.cfg
	i.cfg = cfg
	i.state = InitialState()
	i.hydrated = false
	// Responses requested under the old config must not land in the new
	// block.
	i.seq++
	old := i.carousel
	reuse := old != nil && keepsCarousel(prev, cfg)
	if reuse {
		i.track.SetItemCount(0)
		i.track.SetClientWidth(float64(cfg.Carousel.ViewportWidth))
	} else {
		i.carousel = nil
		i.track = nil
	}
	i.page.Do(func(doc *goquery.Document) {
		i.renderBlock(doc)
	})
	i.mu.Unlock()

	switch {
	case reuse:
		old.Configure(carouselOptions(cfg))
	default:
		if old != nil {
			old.Unmount()
		}
		i.mountCarousel(cfg)
	}

	slog.Info("Feed reconfigured", "feed", cfg.Name, "id", cfg.ID)

	return i.Fetch(ctx, FetchRequest{Page: 1})
}

func (i *Instance) onFiltersSubmitted(e bus.FiltersSubmitted) {
	i.mu.Lock()
	if e.TargetID != i.cfg.ID {
		i.mu.Unlock()
		return
	}
	i.hasMapWidget = e.HasMapWidget
	i.mapAdditionalMarkers = e.MapAdditionalMarkers
	i.mu.Unlock()

	filters := copyFilters(e.Filters)
	if filters == nil {
		filters = map[string]string{}
	}
	i.background(FetchRequest{Page: 1, Filters: filters, PostType: e.PostType})
}

func (i *Instance) background(req FetchRequest) {
	i.mu.Lock()
	ctx := i.ctx
	i.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	i.inflight.Add(1)
	go func() {
		defer i.inflight.Done()
		err := i.Fetch(ctx, req)
		if errors.Is(err, ErrUnresolvedSource) {
			slog.Debug("Feed source unresolved, skipping request", "feed", i.Config().Name)
		}
	}()
}

type fetchRun struct {
	seq        uint64
	cfg        *Config
	params     Params
	page       int
	appendMode bool
	live       bool
}

// beginLocked starts a new fetch cycle. When the request cannot be sent it
// returns the config of a superseded live fetch still owing its
// LoadingFinished, if any.
func (i *Instance) beginLocked(req FetchRequest) (*fetchRun, *Config, error) {
	if req.Filters != nil {
		i.overrideFilters = copyFilters(req.Filters)
	}
	if req.PostType != "" {
		i.overridePostType = req.PostType
	}

	params, err := BuildQuery(QueryInput{
		Config:               i.cfg,
		Page:                 req.Page,
		Filters:              i.overrideFilters,
		PostType:             i.overridePostType,
		HasMapWidget:         i.hasMapWidget,
		MapAdditionalMarkers: i.mapAdditionalMarkers,
	})

	// Any new request supersedes the one in flight, including one that
	// is never sent.
	i.seq++

	if err != nil {
		owed := i.owed
		i.owed = nil
		if errors.Is(err, ErrUnresolvedSource) {
			i.state.Loading = false
			i.state.Unconfigured = true
			i.state.HasResults = false
			i.state.RawContent = ""
			i.page.Do(func(doc *goquery.Document) {
				i.renderContent(doc)
				i.renderStatus(doc)
			})
		}
		return nil, owed, err
	}

	i.state.Loading = true
	i.state.Unconfigured = false
	i.page.Do(func(doc *goquery.Document) {
		i.renderStatus(doc)
	})

	return &fetchRun{
		seq:        i.seq,
		cfg:        i.cfg,
		params:     params,
		page:       sanitizePage(req.Page),
		appendMode: req.Append,
		live:       i.live,
	}, nil, nil
}

func (i *Instance) run(ctx context.Context, r *fetchRun) error {
	if r.live {
		i.bus.Publish(bus.LoadingStarted{SourceID: r.cfg.ID, SearchFormID: r.cfg.LinkedControl.ID})

		i.mu.Lock()
		current := r.seq == i.seq
		if current {
			i.owed = r.cfg
		}
		i.mu.Unlock()
		if !current {
			// Superseded before the request went out.
			i.settle(r.cfg)
			return nil
		}
	}

	frag, err := i.pipeline.Request(ctx, r.params)
	if err == nil {
		err = i.assets.SyncStyles(ctx, frag.Styles)
	}
	if err != nil {
		return i.fail(r, err)
	}

	return i.commit(r, frag)
}

func (i *Instance) fail(r *fetchRun, cause error) error {
	i.mu.Lock()
	if r.seq != i.seq {
		i.mu.Unlock()
		slog.Debug("Discarding stale fetch failure", "feed", r.cfg.Name, "page", r.page, "error", cause)
		return cause
	}
	i.state.Loading = false
	i.state.HasResults = false
	i.state.RawContent = ""
	i.owed = nil
	i.page.Do(func(doc *goquery.Document) {
		i.renderContent(doc)
		i.renderStatus(doc)
	})
	i.mu.Unlock()

	slog.Error("Feed fetch failed", "feed", r.cfg.Name, "page", r.page, "error", cause)

	if r.live {
		i.bus.Publish(bus.LoadingFinished{SourceID: r.cfg.ID, SearchFormID: r.cfg.LinkedControl.ID})
	}

	return cause
}

func (i *Instance) commit(r *fetchRun, frag *Fragment) error {
	i.mu.Lock()
	if r.seq != i.seq {
		i.mu.Unlock()
		slog.Debug("Discarding stale fetch response", "feed", r.cfg.Name, "page", r.page)
		return nil
	}

	i.owed = nil
	st := &i.state
	st.Loading = false
	st.Page = r.page
	st.HasPrev = frag.Meta.HasPrev
	st.HasNext = frag.Meta.HasNext
	st.HasResults = frag.Meta.HasResults
	st.TotalCount = frag.Meta.TotalCount
	st.DisplayCount = frag.Meta.DisplayCount
	switch {
	case !st.HasResults:
		st.RawContent = ""
	case r.appendMode:
		st.RawContent = joinContent(st.RawContent, frag.Content)
	default:
		st.RawContent = frag.Content
	}

	var markers []Marker
	i.page.Do(func(doc *goquery.Document) {
		content := i.commitNodes(doc, frag.Nodes, r.appendMode)
		i.renderStatus(doc)
		if r.live && r.cfg.FilterLinked() {
			markers = ExtractMarkers(content)
		}
	})
	track := i.track
	ctrl := i.carousel
	i.mu.Unlock()

	i.assets.SyncScripts(r.cfg.ContentID())

	if track != nil && ctrl != nil {
		track.SetItemCount(i.itemCount(r.cfg))
		ctrl.Resize()
	}

	slog.Debug("Feed page committed", "feed", r.cfg.Name, "page", r.page, "append", r.appendMode, "has_results", frag.Meta.HasResults)

	if r.live {
		i.bus.Publish(bus.LoadingFinished{SourceID: r.cfg.ID, SearchFormID: r.cfg.LinkedControl.ID})
		if len(markers) > 0 {
			i.bus.Publish(bus.MarkersFound{SourceBlockID: r.cfg.ID, Markers: toBusMarkers(markers)})
		}
	}

	return nil
}

func (i *Instance) mountCarousel(cfg *Config) {
	if cfg.LayoutMode != LayoutCarousel {
		return
	}

	track := carousel.NewTrack(float64(cfg.Carousel.ItemWidth), float64(cfg.Carousel.ViewportWidth))
	track.SetItemCount(i.itemCount(cfg))
	controls := dom.NewClassToggle(i.page, "is-disabled", cfg.PrevNavID(), cfg.NextNavID())
	ctrl := carousel.NewController(track, controls, carouselOptions(cfg))
	if i.frames != nil {
		ctrl.WithFrames(i.frames)
	}
	if i.clock != nil {
		ctrl.WithClock(i.clock)
	}

	i.mu.Lock()
	i.track = track
	i.carousel = ctrl
	i.mu.Unlock()

	ctrl.Mount()
}

func carouselOptions(cfg *Config) carousel.Options {
	return carousel.Options{
		Autoplay: cfg.Carousel.AutoSlide,
		Interval: cfg.GetAutoSlideInterval(),
	}
}

// keepsCarousel reports whether a reconfiguration only touches settings
// the running controller can take over.
func keepsCarousel(prev, next *Config) bool {
	return prev.LayoutMode == LayoutCarousel &&
		next.LayoutMode == LayoutCarousel &&
		prev.ID == next.ID &&
		prev.Carousel.ItemWidth == next.Carousel.ItemWidth
}

func joinContent(existing, added string) string {
	switch {
	case existing == "":
		return added
	case added == "":
		return existing
	default:
		return existing + "\n" + added
	}
}
