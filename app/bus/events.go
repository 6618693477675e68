package bus

// Kind is the wire name of an event on the bus.
type Kind string

const (
	KindFiltersSubmitted Kind = "filters-submitted"
	KindFiltersCleared   Kind = "filters-cleared"
	KindLoadingStarted   Kind = "feed-loading"
	KindLoadingFinished  Kind = "feed-loaded"
	KindMarkersFound     Kind = "feed-markers"
)

// Event is one of the concrete event types below. The bus carries no
// addressing, so receivers compare the correlation field themselves.
type Event interface {
	Kind() Kind
}

// FiltersSubmitted is sent by a search control to the feed whose id equals
// TargetID.
type FiltersSubmitted struct {
	TargetID             string            `json:"targetId"`
	PostType             string            `json:"postType"`
	Filters              map[string]string `json:"filters"`
	HasMapWidget         bool              `json:"hasMapWidget,omitempty"`
	MapAdditionalMarkers string            `json:"mapAdditionalMarkers,omitempty"`
}

type FiltersCleared struct {
	PostType     string `json:"postType"`
	SearchFormID string `json:"searchFormId"`
}

type LoadingStarted struct {
	SourceID     string `json:"sourceId"`
	SearchFormID string `json:"searchFormId"`
}

type LoadingFinished struct {
	SourceID     string `json:"sourceId"`
	SearchFormID string `json:"searchFormId"`
}

// Marker mirrors feed.Marker without importing the feed package.
type Marker struct {
	PostID   string  `json:"postId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Template string  `json:"template"`
}

type MarkersFound struct {
	SourceBlockID string   `json:"sourceBlockId"`
	Markers       []Marker `json:"markers"`
}

func (FiltersSubmitted) Kind() Kind { return KindFiltersSubmitted }
func (FiltersCleared) Kind() Kind   { return KindFiltersCleared }
func (LoadingStarted) Kind() Kind   { return KindLoadingStarted }
func (LoadingFinished) Kind() Kind  { return KindLoadingFinished }
func (MarkersFound) Kind() Kind     { return KindMarkersFound }
