package feed

import (
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var reservedParams = map[string]bool{
	"action":                    true,
	"type":                      true,
	"pg":                        true,
	"limit":                     true,
	"__get_total_count":         true,
	"post__in":                  true,
	"exclude":                   true,
	"priority_min":              true,
	"priority_max":              true,
	"offset":                    true,
	"__template_id":             true,
	"__load_markers":            true,
	"__load_additional_markers": true,
}

func isReservedParam(key string) bool {
	return reservedParams[key]
}

// MergeFilters layers override on top of local. Keys and values are
// trimmed and NFC-normalized, empty values are dropped and keys that would
// shadow a request parameter are ignored.
func MergeFilters(local, override map[string]string) map[string]string {
	merged := make(map[string]string, len(local)+len(override))

	apply := func(src map[string]string) {
		for key, value := range src {
			key = normalizeFilter(key)
			if key == "" {
				continue
			}
			if isReservedParam(key) {
				slog.Debug("Ignoring reserved filter key", "key", key)
				continue
			}
			value = normalizeFilter(value)
			if value == "" {
				delete(merged, key)
				continue
			}
			merged[key] = value
		}
	}

	apply(local)
	apply(override)

	return merged
}

func normalizeFilter(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyFilters(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
