package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/feedsync/app/assets"
	"github.com/lysyi3m/feedsync/app/bus"
	"github.com/lysyi3m/feedsync/app/dom"
)

type endpoint struct {
	mu      sync.Mutex
	queries []url.Values
	respond func(q url.Values) (int, string)
}

func (e *endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, ".css") {
		w.Header().Set("Content-Type", "text/css")
		io.WriteString(w, "article{}")
		return
	}

	q := r.URL.Query()
	e.mu.Lock()
	e.queries = append(e.queries, q)
	e.mu.Unlock()

	status, body := e.respond(q)
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (e *endpoint) requests() []url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]url.Values(nil), e.queries...)
}

func (e *endpoint) last() url.Values {
	reqs := e.requests()
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

type harness struct {
	inst     *Instance
	page     *dom.Page
	bus      *bus.Bus
	endpoint *endpoint
}

func newHarness(t *testing.T, cfg *Config, respond func(q url.Values) (int, string), opts ...Option) *harness {
	t.Helper()

	ep := &endpoint{respond: respond}
	srv := httptest.NewServer(ep)
	t.Cleanup(srv.Close)

	page := dom.NewPage()
	loader, err := assets.NewHTTPLoader(srv.Client(), srv.URL, "feedsync-test", time.Second)
	require.NoError(t, err)
	pipeline, err := NewPipeline(srv.Client(), srv.URL+"/search", "feedsync-test", 5*time.Second)
	require.NoError(t, err)
	eventBus := bus.New()

	inst := NewInstance(cfg, page, assets.NewCache(page, loader), pipeline, eventBus, opts...)
	t.Cleanup(inst.Unmount)

	return &harness{inst: inst, page: page, bus: eventBus, endpoint: ep}
}

func (h *harness) content(t *testing.T) string {
	t.Helper()
	var out string
	h.page.Do(func(doc *goquery.Document) {
		out = dom.InnerHTML(dom.ByID(doc, h.inst.Config().ContentID()))
	})
	return out
}

// pagedResponse serves pages 1..last with two items each.
func pagedResponse(last int) func(q url.Values) (int, string) {
	return func(q url.Values) (int, string) {
		pg, _ := strconv.Atoi(q.Get("pg"))
		return http.StatusOK, fmt.Sprintf(
			`<div data-has-prev="%t" data-has-next="%t" data-has-results="true" data-total-count="%d"></div><article>p%d-a</article><article>p%d-b</article>`,
			pg > 1, pg < last, last*2, pg, pg)
	}
}

func eventConfig(pagination Pagination) *Config {
	cfg := &Config{
		Name:         "events",
		ID:           "events-feed",
		Source:       SourceExplicitFilters,
		PostType:     "event",
		PostsPerPage: 12,
		Pagination:   pagination,
	}
	applyDefaults(cfg)
	return cfg
}

func TestInstanceExplicitFiltersScenario(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationPrevNext), func(q url.Values) (int, string) {
		return http.StatusOK, `<div data-has-prev="false" data-has-next="true" data-total-count="10"></div><article>one</article>`
	})

	h.inst.Mount(context.Background())
	h.inst.Wait()

	req := h.endpoint.last()
	require.NotNil(t, req)
	assert.Equal(t, "event", req.Get("type"))
	assert.Equal(t, "1", req.Get("pg"))
	assert.Equal(t, "12", req.Get("limit"))
	assert.Equal(t, Action, req.Get("action"))

	state := h.inst.State()
	assert.Equal(t, 1, state.Page)
	assert.False(t, state.HasPrev)
	assert.True(t, state.HasNext)
	assert.Equal(t, 10, state.TotalCount)
	assert.True(t, state.HasResults)
	assert.False(t, state.Loading)

	assert.Equal(t, "<article>one</article>", h.content(t))
}

func TestInstanceFetchFailureDegrades(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationPrevNext), func(q url.Values) (int, string) {
		return http.StatusInternalServerError, "boom"
	}, WithLive(true))

	var loadingSeen []bool
	var finished int
	var mu sync.Mutex
	bus.On(h.bus, func(bus.LoadingStarted) {
		mu.Lock()
		defer mu.Unlock()
		loadingSeen = append(loadingSeen, h.inst.State().Loading)
	})
	bus.On(h.bus, func(e bus.LoadingFinished) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "events-feed", e.SourceID)
		finished++
	})

	h.inst.Mount(context.Background())
	h.inst.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true}, loadingSeen)
	assert.Equal(t, 1, finished)

	state := h.inst.State()
	assert.False(t, state.Loading)
	assert.False(t, state.HasResults)
	assert.Contains(t, h.content(t), "No results found.")
}

func TestInstanceFetchReturnsError(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationPrevNext), func(q url.Values) (int, string) {
		return http.StatusBadGateway, ""
	})

	err := h.inst.Fetch(context.Background(), FetchRequest{Page: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error: 502 Bad Gateway")
	assert.NotContains(t, err.Error(), "502 502")
}

func TestInstancePaginationMonotonic(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationPrevNext), pagedResponse(3), WithSettleDelay(time.Millisecond))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()

	assert.False(t, h.inst.Retreat(ctx), "retreat on first page")
	assert.False(t, h.inst.LoadMore(ctx), "load more in prev-next mode")

	pages := []int{h.inst.State().Page}
	for h.inst.Advance(ctx) {
		pages = append(pages, h.inst.State().Page)
	}
	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.False(t, h.inst.State().HasNext)
	assert.Equal(t, "<article>p3-a</article><article>p3-b</article>", h.content(t))

	for h.inst.Retreat(ctx) {
		assert.GreaterOrEqual(t, h.inst.State().Page, 1)
	}
	assert.Equal(t, 1, h.inst.State().Page)
	assert.False(t, h.inst.Retreat(ctx))
}

func TestInstanceLoadMoreAppends(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationLoadMore), pagedResponse(2))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()

	assert.False(t, h.inst.Advance(ctx), "advance in load-more mode")
	require.True(t, h.inst.LoadMore(ctx))
	assert.False(t, h.inst.LoadMore(ctx), "no next page")

	state := h.inst.State()
	assert.Equal(t, 2, state.Page)
	assert.Contains(t, state.RawContent, "p1-a")
	assert.Contains(t, state.RawContent, "p2-b")
	assert.Equal(t, "<article>p1-a</article><article>p1-b</article><article>p2-a</article><article>p2-b</article>", h.content(t))
}

func TestInstanceLoadMoreWithoutResultsShowsNoResults(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationLoadMore), func(q url.Values) (int, string) {
		if q.Get("pg") == "1" {
			return http.StatusOK, `<div data-has-next="true" data-has-results="true"></div><article>a</article>`
		}
		return http.StatusOK, `<div data-has-prev="true" data-has-results="false"></div>`
	})
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()
	require.True(t, h.inst.LoadMore(ctx))

	state := h.inst.State()
	assert.Equal(t, 2, state.Page)
	assert.False(t, state.HasResults)
	assert.Empty(t, state.RawContent)
	assert.NotContains(t, h.content(t), "<article>a</article>")
	assert.Contains(t, h.content(t), "No results found.")
}

func TestInstancePaginationNone(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationNone), pagedResponse(3))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()

	assert.False(t, h.inst.Advance(ctx))
	assert.False(t, h.inst.LoadMore(ctx))
	assert.Len(t, h.endpoint.requests(), 1)
}

func TestInstanceTransitionWhileLoadingIsNoop(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	serve := pagedResponse(3)

	h := newHarness(t, eventConfig(PaginationPrevNext), func(q url.Values) (int, string) {
		if q.Get("pg") == "2" {
			started <- struct{}{}
			<-gate
		}
		return serve(q)
	}, WithSettleDelay(time.Millisecond))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()

	done := make(chan bool)
	go func() { done <- h.inst.Advance(ctx) }()

	<-started
	assert.True(t, h.inst.State().Loading)
	assert.False(t, h.inst.Advance(ctx))
	assert.False(t, h.inst.Retreat(ctx))

	close(gate)
	assert.True(t, <-done)
	assert.Equal(t, 2, h.inst.State().Page)
	assert.Len(t, h.endpoint.requests(), 2)
}

type recordingPresenter struct {
	ids chan string
}

func (p *recordingPresenter) ScrollIntoView(id string) { p.ids <- id }

func TestInstanceScrollsIntoViewAfterPageTurn(t *testing.T) {
	presenter := &recordingPresenter{ids: make(chan string, 4)}
	h := newHarness(t, eventConfig(PaginationPrevNext), pagedResponse(2),
		WithPresenter(presenter), WithSettleDelay(time.Millisecond))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()
	require.True(t, h.inst.Advance(ctx))

	select {
	case id := <-presenter.ids:
		assert.Equal(t, "events-feed", id)
	case <-time.After(time.Second):
		t.Fatal("Expected scroll into view after advance")
	}
}

func TestInstanceUnresolvedSourceSkipsRequest(t *testing.T) {
	cfg := eventConfig(PaginationPrevNext)
	cfg.Source = SourceLinkedControl
	cfg.PostType = ""

	h := newHarness(t, cfg, pagedResponse(1))

	h.inst.Mount(context.Background())
	h.inst.Wait()

	assert.Empty(t, h.endpoint.requests())
	state := h.inst.State()
	assert.True(t, state.Unconfigured)
	assert.False(t, state.Loading)
	assert.Contains(t, h.content(t), "post-feed__unconfigured")

	err := h.inst.Fetch(context.Background(), FetchRequest{Page: 1})
	assert.ErrorIs(t, err, ErrUnresolvedSource)
}

func TestInstanceFiltersSubmittedOverBus(t *testing.T) {
	cfg := eventConfig(PaginationPrevNext)
	cfg.Source = SourceLinkedControl
	cfg.PostType = ""
	cfg.LinkedControl = LinkedControl{ID: "search-form"}

	h := newHarness(t, cfg, func(q url.Values) (int, string) {
		return http.StatusOK, `<div data-has-results="true" data-total-count="3"></div>
<article data-post-id="1" data-marker-position="52.5,13.4">Berlin</article>
<article data-post-id="2" data-marker-position="48.8,2.3">Paris</article>
<article data-post-id="3" data-marker-position="somewhere">Atlantis</article>`
	}, WithLive(true))

	var markers []bus.MarkersFound
	var mu sync.Mutex
	bus.On(h.bus, func(e bus.MarkersFound) {
		mu.Lock()
		defer mu.Unlock()
		markers = append(markers, e)
	})

	h.inst.Mount(context.Background())
	h.inst.Wait()
	require.Empty(t, h.endpoint.requests())

	h.bus.Publish(bus.FiltersSubmitted{TargetID: "other-feed", PostType: "event"})
	h.inst.Wait()
	assert.Empty(t, h.endpoint.requests(), "foreign target id")

	h.bus.Publish(bus.FiltersSubmitted{
		TargetID:     "events-feed",
		PostType:     "place",
		Filters:      map[string]string{"city": "Berlin"},
		HasMapWidget: true,
	})
	h.inst.Wait()

	req := h.endpoint.last()
	require.NotNil(t, req)
	assert.Equal(t, "place", req.Get("type"))
	assert.Equal(t, "Berlin", req.Get("city"))
	assert.Equal(t, "yes", req.Get("__load_markers"))
	assert.False(t, h.inst.State().Unconfigured)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, markers, 1)
	assert.Equal(t, "events-feed", markers[0].SourceBlockID)
	assert.Len(t, markers[0].Markers, 2)
}

func TestInstanceNoMarkersOutsideLiveContext(t *testing.T) {
	cfg := eventConfig(PaginationPrevNext)
	cfg.Source = SourceLinkedControl
	cfg.LinkedControl = LinkedControl{ID: "search-form", PostType: "place"}

	h := newHarness(t, cfg, func(q url.Values) (int, string) {
		return http.StatusOK, `<div data-has-results="true"></div><article data-post-id="1" data-marker-position="1,2"></article>`
	})

	published := 0
	h.bus.Subscribe(func(bus.Event) { published++ })

	h.inst.Mount(context.Background())
	h.inst.Wait()

	assert.Zero(t, published)
	assert.True(t, h.inst.State().HasResults)
}

func TestInstanceDropsStaleResponse(t *testing.T) {
	gate := make(chan struct{})
	slowStarted := make(chan struct{})

	h := newHarness(t, eventConfig(PaginationPrevNext), func(q url.Values) (int, string) {
		city := q.Get("city")
		if city == "slow" {
			close(slowStarted)
			<-gate
		}
		return http.StatusOK, fmt.Sprintf(`<div data-has-results="true" data-total-count="1"></div><article>%s</article>`, city)
	})
	ctx := context.Background()

	slowDone := make(chan error)
	go func() {
		slowDone <- h.inst.Fetch(ctx, FetchRequest{Page: 1, Filters: map[string]string{"city": "slow"}})
	}()
	<-slowStarted

	require.NoError(t, h.inst.Fetch(ctx, FetchRequest{Page: 1, Filters: map[string]string{"city": "fast"}}))
	close(gate)
	require.NoError(t, <-slowDone)

	assert.Equal(t, "<article>fast</article>", h.inst.State().RawContent)
}

func TestInstanceHydratedFromSnapshot(t *testing.T) {
	snapshot := State{
		Page:       2,
		HasPrev:    true,
		HasResults: true,
		TotalCount: 4,
		RawContent: `<article>cached</article><script id="feed-js">init()</script>`,
	}
	h := newHarness(t, eventConfig(PaginationPrevNext), pagedResponse(2), WithSnapshot(snapshot))

	h.inst.Mount(context.Background())
	h.inst.Wait()

	assert.Empty(t, h.endpoint.requests())
	assert.Equal(t, 2, h.inst.State().Page)
	assert.Equal(t, "<article>cached</article>", h.content(t))

	var cached int
	h.page.Do(func(doc *goquery.Document) {
		cached = dom.ByID(doc, assets.ContainerID).Find("script#feed-js").Length()
	})
	assert.Equal(t, 1, cached)
}

func TestInstanceDedupsAssetsAcrossPages(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationPrevNext), func(q url.Values) (int, string) {
		pg, _ := strconv.Atoi(q.Get("pg"))
		return http.StatusOK, fmt.Sprintf(`<link rel="stylesheet" id="feed-css" href="/feed.css">
<div data-has-prev="%t" data-has-next="%t" data-has-results="true"></div>
<article>%d</article><script id="feed-js">init()</script>`, pg > 1, pg < 3, pg)
	}, WithSettleDelay(time.Millisecond))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()
	require.True(t, h.inst.Advance(ctx))
	require.True(t, h.inst.Advance(ctx))

	var styles, scripts int
	h.page.Do(func(doc *goquery.Document) {
		styles = dom.ByID(doc, "feed-css").Length()
		scripts = dom.ByID(doc, "feed-js").Length()
	})
	assert.Equal(t, 1, styles)
	assert.LessOrEqual(t, scripts, 2)
	assert.NotContains(t, h.content(t), "feed.css")
}

func TestInstanceClearFilters(t *testing.T) {
	cfg := eventConfig(PaginationPrevNext)
	cfg.Source = SourceLinkedControl
	cfg.LinkedControl = LinkedControl{ID: "search-form", PostType: "place"}

	h := newHarness(t, cfg, pagedResponse(1), WithLive(true))

	var cleared []bus.FiltersCleared
	bus.On(h.bus, func(e bus.FiltersCleared) { cleared = append(cleared, e) })

	ctx := context.Background()
	h.inst.Mount(ctx)
	h.inst.Wait()

	require.NoError(t, h.inst.Fetch(ctx, FetchRequest{Page: 1, Filters: map[string]string{"city": "Berlin"}}))
	assert.Equal(t, "Berlin", h.endpoint.last().Get("city"))

	require.NoError(t, h.inst.ClearFilters(ctx))
	assert.Empty(t, h.endpoint.last().Get("city"))
	require.Len(t, cleared, 1)
	assert.Equal(t, bus.FiltersCleared{PostType: "place", SearchFormID: "search-form"}, cleared[0])
}

func TestInstanceReconfigure(t *testing.T) {
	h := newHarness(t, eventConfig(PaginationPrevNext), pagedResponse(2))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()

	next := eventConfig(PaginationLoadMore)
	next.ID = ""
	next.PostsPerPage = 3
	require.NoError(t, h.inst.Reconfigure(ctx, next))

	assert.Equal(t, "events-feed", h.inst.Config().ID)
	assert.Equal(t, "3", h.endpoint.last().Get("limit"))
	assert.True(t, h.inst.LoadMore(ctx))
}

type manualFrames struct {
	mu      sync.Mutex
	pending []*frame
}

type frame struct {
	fn        func()
	cancelled bool
}

func (f *manualFrames) Request(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	fr := &frame{fn: fn}
	f.pending = append(f.pending, fr)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		fr.cancelled = true
	}
}

func (f *manualFrames) Flush() {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, fr := range pending {
		f.mu.Lock()
		cancelled := fr.cancelled
		f.mu.Unlock()
		if !cancelled {
			fr.fn()
		}
	}
}

func TestInstanceCarouselEnablesNavAfterMeasurement(t *testing.T) {
	cfg := eventConfig(PaginationNone)
	cfg.LayoutMode = LayoutCarousel
	cfg.Carousel.ViewportWidth = 640

	frames := &manualFrames{}
	h := newHarness(t, cfg, func(q url.Values) (int, string) {
		return http.StatusOK, `<div data-has-results="true"></div><article>1</article><article>2</article><article>3</article><article>4</article>`
	}, WithCarouselFrames(frames))

	h.inst.Mount(context.Background())
	h.inst.Wait()

	controls := dom.NewClassToggle(h.page, "is-disabled", cfg.PrevNavID(), cfg.NextNavID())
	assert.True(t, controls.HasClass(), "disabled until measured")

	frames.Flush()
	assert.False(t, controls.HasClass())

	ctrl := h.inst.Carousel()
	require.NotNil(t, ctrl)
	assert.True(t, ctrl.Overflowing())
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for channel")
		var zero T
		return zero
	}
}

// gatedEndpoint holds the first request until released and answers every
// later one immediately.
type gatedEndpoint struct {
	calls   atomic.Int32
	arrived chan struct{}
	release chan struct{}
	first   string
	rest    string
}

func newGatedEndpoint(t *testing.T, first, rest string) *gatedEndpoint {
	g := &gatedEndpoint{arrived: make(chan struct{}), release: make(chan struct{}), first: first, rest: rest}
	t.Cleanup(g.open)
	return g
}

func (g *gatedEndpoint) open() {
	select {
	case <-g.release:
	default:
		close(g.release)
	}
}

func (g *gatedEndpoint) respond(q url.Values) (int, string) {
	if g.calls.Add(1) == 1 {
		close(g.arrived)
		<-g.release
		return http.StatusOK, g.first
	}
	return http.StatusOK, g.rest
}

func TestInstanceUnresolvedBeginFinishesSupersededLoad(t *testing.T) {
	cfg := eventConfig(PaginationPrevNext)
	cfg.Source = SourceLinkedControl
	cfg.LinkedControl.ID = "search-1"

	gate := newGatedEndpoint(t, `<div data-has-results="true"></div><article>late</article>`, "")
	h := newHarness(t, cfg, gate.respond, WithLive(true))
	ctx := context.Background()

	var started, finished atomic.Int32
	bus.On(h.bus, func(bus.LoadingStarted) { started.Add(1) })
	bus.On(h.bus, func(e bus.LoadingFinished) {
		assert.Equal(t, "events-feed", e.SourceID)
		assert.Equal(t, "search-1", e.SearchFormID)
		finished.Add(1)
	})

	fetched := make(chan error, 1)
	go func() { fetched <- h.inst.Fetch(ctx, FetchRequest{Page: 1, PostType: "event"}) }()
	receive(t, gate.arrived)

	err := h.inst.ClearFilters(ctx)
	assert.ErrorIs(t, err, ErrUnresolvedSource)
	assert.EqualValues(t, 1, started.Load())
	assert.EqualValues(t, 1, finished.Load(), "loading consumers must not hang")

	gate.open()
	assert.NoError(t, receive(t, fetched))

	assert.EqualValues(t, 1, finished.Load(), "stale response publishes nothing")
	state := h.inst.State()
	assert.True(t, state.Unconfigured)
	assert.False(t, state.Loading)
	assert.NotContains(t, h.content(t), "late")
}

func TestInstanceUnresolvedWithoutPendingLoadPublishesNothing(t *testing.T) {
	cfg := eventConfig(PaginationPrevNext)
	cfg.Source = SourceLinkedControl
	h := newHarness(t, cfg, pagedResponse(1), WithLive(true))

	var finished atomic.Int32
	bus.On(h.bus, func(bus.LoadingFinished) { finished.Add(1) })

	require.NoError(t, h.inst.Fetch(context.Background(), FetchRequest{Page: 1, PostType: "event"}))
	require.EqualValues(t, 1, finished.Load())

	assert.ErrorIs(t, h.inst.ClearFilters(context.Background()), ErrUnresolvedSource)
	assert.EqualValues(t, 1, finished.Load())
}

// gateClock blocks the first autoplay start until released.
type gateClock struct {
	entered chan struct{}
	release chan struct{}
}

func (c *gateClock) Every(d time.Duration, fn func()) func() {
	close(c.entered)
	<-c.release
	return func() {}
}

func TestInstanceReconfigureDropsInFlightResponse(t *testing.T) {
	gate := newGatedEndpoint(t,
		`<div data-has-results="true"></div><article>stale</article>`,
		`<div data-has-results="true"></div><article>fresh</article>`)
	clock := &gateClock{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, eventConfig(PaginationPrevNext), gate.respond,
		WithCarouselClock(clock), WithCarouselFrames(&manualFrames{}))
	ctx := context.Background()

	fetched := make(chan error, 1)
	go func() { fetched <- h.inst.Fetch(ctx, FetchRequest{Page: 1}) }()
	receive(t, gate.arrived)

	next := eventConfig(PaginationPrevNext)
	next.LayoutMode = LayoutCarousel
	next.Carousel.AutoSlide = true
	next.Carousel.AutoSlideInterval = 1000

	reconfigured := make(chan error, 1)
	go func() { reconfigured <- h.inst.Reconfigure(ctx, next) }()

	// The new block is rendered but its first page is not requested yet.
	receive(t, clock.entered)
	gate.open()
	assert.NoError(t, receive(t, fetched))
	assert.NotContains(t, h.content(t), "stale")

	close(clock.release)
	require.NoError(t, receive(t, reconfigured))
	assert.Equal(t, "<article>fresh</article>", h.content(t))
}

func TestInstanceReconfigureKeepsCarouselController(t *testing.T) {
	cfg := eventConfig(PaginationNone)
	cfg.LayoutMode = LayoutCarousel
	cfg.Carousel.ViewportWidth = 640

	frames := &manualFrames{}
	h := newHarness(t, cfg, func(q url.Values) (int, string) {
		return http.StatusOK, `<div data-has-results="true"></div><article>1</article><article>2</article><article>3</article>`
	}, WithCarouselFrames(frames))
	ctx := context.Background()

	h.inst.Mount(ctx)
	h.inst.Wait()
	frames.Flush()
	before := h.inst.Carousel()
	require.NotNil(t, before)
	require.True(t, before.Overflowing())

	next := eventConfig(PaginationNone)
	next.LayoutMode = LayoutCarousel
	next.Carousel.ViewportWidth = 640
	next.Carousel.AutoSlide = true
	next.Carousel.AutoSlideInterval = 5000
	require.NoError(t, h.inst.Reconfigure(ctx, next))

	assert.Same(t, before, h.inst.Carousel())
	controls := dom.NewClassToggle(h.page, "is-disabled", cfg.PrevNavID(), cfg.NextNavID())
	assert.True(t, controls.HasClass(), "disabled again until measured")

	frames.Flush()
	assert.False(t, controls.HasClass())

	grid := eventConfig(PaginationNone)
	require.NoError(t, h.inst.Reconfigure(ctx, grid))
	assert.Nil(t, h.inst.Carousel())
}
