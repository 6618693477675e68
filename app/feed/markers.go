package feed

import (
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/feedsync/app/bus"
	"github.com/lysyi3m/feedsync/app/dom"
)

const markerSelector = "[data-marker-position]"

// ExtractMarkers collects every marker element below s whose position is a
// pair of finite numbers. The marker's inner markup is passed through as
// its template.
func ExtractMarkers(s *goquery.Selection) []Marker {
	var markers []Marker

	s.Find(markerSelector).Each(func(_ int, el *goquery.Selection) {
		lat, lng, ok := parsePosition(el.AttrOr("data-marker-position", ""))
		if !ok {
			return
		}
		markers = append(markers, Marker{
			PostID:   strings.TrimSpace(el.AttrOr("data-post-id", "")),
			Lat:      lat,
			Lng:      lng,
			Template: strings.TrimSpace(dom.InnerHTML(el)),
		})
	})

	return markers
}

func parsePosition(value string) (float64, float64, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, false
	}

	return lat, lng, true
}

func toBusMarkers(markers []Marker) []bus.Marker {
	out := make([]bus.Marker, len(markers))
	for i, m := range markers {
		out[i] = bus.Marker(m)
	}
	return out
}
