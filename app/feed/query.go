package feed

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Action is the fixed discriminator the content-search endpoint routes on.
const Action = "post_feed_query"

// ErrUnresolvedSource is returned when a linked-control feed has no
// resolvable control. Callers skip the request instead of fetching with an
// empty content type.
var ErrUnresolvedSource = errors.New("feed source could not be resolved")

const defaultPostType = "post"

type Param struct {
	Key   string
	Value string
}

// Params keeps insertion order, which is also the encoded order.
type Params []Param

// Add appends key=value unless value is empty.
func (p *Params) Add(key, value string) {
	if value == "" {
		return
	}
	*p = append(*p, Param{Key: key, Value: value})
}

func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

func (p Params) Encode() string {
	var b strings.Builder
	for i, param := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(param.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(param.Value))
	}
	return b.String()
}

// QueryInput is everything the request depends on. Overrides come from
// the event bus and win over the block configuration.
type QueryInput struct {
	Config               *Config
	Page                 int
	Filters              map[string]string
	PostType             string
	HasMapWidget         bool
	MapAdditionalMarkers string
}

// BuildQuery maps the feed configuration and paging cursor to request
// parameters. It performs no I/O.
func BuildQuery(in QueryInput) (Params, error) {
	c := in.Config
	var postType string
	var filters map[string]string

	switch c.Source {
	case SourceLinkedControl:
		postType = firstNonEmpty(in.PostType, c.LinkedControl.PostType)
		if postType == "" {
			return nil, ErrUnresolvedSource
		}
		filters = MergeFilters(c.Filters, in.Filters)
	case SourceExplicitFilters:
		postType = firstNonEmpty(in.PostType, c.PostType, defaultPostType)
		filters = MergeFilters(c.Filters, in.Filters)
	case SourceManualList:
		postType = firstNonEmpty(c.PostType, "any")
	default:
		postType = firstNonEmpty(c.PostType, defaultPostType)
		filters = MergeFilters(c.Filters, nil)
	}

	var params Params
	params.Add("action", Action)
	params.Add("type", postType)
	params.Add("pg", strconv.Itoa(sanitizePage(in.Page)))
	if c.PostsPerPage > 0 {
		params.Add("limit", strconv.Itoa(c.PostsPerPage))
	}
	if c.DisplayDetails {
		params.Add("__get_total_count", "yes")
	}
	if c.Source == SourceManualList {
		params.Add("post__in", joinNonEmpty(c.PostIDs))
	}
	params.Add("exclude", joinNonEmpty(c.Exclude))
	if c.PriorityMin != nil {
		params.Add("priority_min", strconv.Itoa(*c.PriorityMin))
	}
	if c.PriorityMax != nil {
		params.Add("priority_max", strconv.Itoa(*c.PriorityMax))
	}
	if c.Offset > 0 {
		params.Add("offset", strconv.Itoa(c.Offset))
	}
	params.Add("__template_id", c.TemplateID)
	if in.HasMapWidget {
		params.Add("__load_markers", "yes")
		params.Add("__load_additional_markers", in.MapAdditionalMarkers)
	}

	for _, key := range sortedKeys(filters) {
		params.Add(key, filters[key])
	}

	return params, nil
}

func sanitizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ",")
}
