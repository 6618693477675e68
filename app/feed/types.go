package feed

import (
	"time"
)

// Source modes

type Source string

const (
	SourceLinkedControl   Source = "linked-control"
	SourceExplicitFilters Source = "explicit-filters"
	SourceManualList      Source = "manual-list"
	SourceArchiveDefault  Source = "archive-default"
)

type Pagination string

const (
	PaginationLoadMore Pagination = "load-more"
	PaginationPrevNext Pagination = "prev-next"
	PaginationNone     Pagination = "none"
)

type LayoutMode string

const (
	LayoutGrid     LayoutMode = "grid"
	LayoutCarousel LayoutMode = "carousel"
)

// Render state

type State struct {
	Loading      bool   `json:"loading"`
	Page         int    `json:"page"`
	RawContent   string `json:"rawContent"`
	TotalCount   int    `json:"totalCount"`
	DisplayCount string `json:"displayCount"`
	HasPrev      bool   `json:"hasPrev"`
	HasNext      bool   `json:"hasNext"`
	HasResults   bool   `json:"hasResults"`
	Unconfigured bool   `json:"unconfigured"`
}

// InitialState is the state of an instance mounted without a snapshot.
func InitialState() State {
	return State{Loading: true, Page: 1}
}

type Marker struct {
	PostID   string  `json:"postId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Template string  `json:"template"`
}

// Configuration types

type Config struct {
	Name           string            // Derived from filename (without .yml extension)
	ID             string            `yaml:"id"`
	Source         Source            `yaml:"source"`
	PostType       string            `yaml:"post_type"`
	LinkedControl  LinkedControl     `yaml:"linked_control"`
	Pagination     Pagination        `yaml:"pagination"`
	PostsPerPage   int               `yaml:"posts_per_page"`
	LayoutMode     LayoutMode        `yaml:"layout_mode"`
	Carousel       CarouselSettings  `yaml:"carousel"`
	DisplayDetails bool              `yaml:"display_details"`
	NoResultsLabel string            `yaml:"no_results_label"`
	Locale         string            `yaml:"locale"`
	Filters        map[string]string `yaml:"filters"`
	PostIDs        []string          `yaml:"post_ids"`
	Exclude        []string          `yaml:"exclude"`
	PriorityMin    *int              `yaml:"priority_min"`
	PriorityMax    *int              `yaml:"priority_max"`
	Offset         int               `yaml:"offset"`
	TemplateID     string            `yaml:"template_id"`
	Settings       ConfigSettings    `yaml:"settings"`
}

// LinkedControl names the search form driving a linked-control feed. An
// empty PostType means the control could not be resolved on this page.
type LinkedControl struct {
	ID       string `yaml:"id"`
	PostType string `yaml:"post_type"`
}

type CarouselSettings struct {
	AutoSlide         bool `yaml:"auto_slide"`
	AutoSlideInterval int  `yaml:"auto_slide_interval"` // milliseconds
	ItemWidth         int  `yaml:"item_width"`          // pixels
	ViewportWidth     int  `yaml:"viewport_width"`      // pixels
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	Timeout         int  `yaml:"timeout"`          // seconds
}

func (c *Config) GetAutoSlideInterval() time.Duration {
	return time.Duration(c.Carousel.AutoSlideInterval) * time.Millisecond
}

// FilterLinked reports whether the feed takes its filters from a search
// control on the page.
func (c *Config) FilterLinked() bool {
	return c.Source == SourceLinkedControl
}

// Element ids derived from the block id.

func (c *Config) ContentID() string     { return c.ID + "-content" }
func (c *Config) StatusID() string      { return c.ID + "-status" }
func (c *Config) PrevNavID() string     { return c.ID + "-carousel-prev" }
func (c *Config) NextNavID() string     { return c.ID + "-carousel-next" }
