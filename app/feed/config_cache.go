package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const minAutoSlideInterval = 20 // milliseconds

type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive feed name from filename (remove .yml extension)
		fileName := filepath.Base(file)
		feedName := fileName[:len(fileName)-4]

		config, err := cc.LoadConfig(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "feed", feedName, "id", config.ID, "source", config.Source, "layout", config.LayoutMode)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile := cc.getConfigFilePath(feedName)
	feedConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	feedConfig.Name = feedName
	if feedConfig.ID == "" {
		feedConfig.ID = cc.existingID(feedName)
	}

	if err := cc.validateConfig(feedConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[feedConfig.Name] = feedConfig

	return feedConfig, nil
}

// existingID keeps a generated block id stable across reloads.
func (cc *ConfigCache) existingID(feedName string) string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	if existing, ok := cc.cache[feedName]; ok && existing.ID != "" {
		return existing.ID
	}
	return "feed-" + uuid.NewString()
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
	}
	return feedConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (cc *ConfigCache) GetEnabledConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

// GetNames returns the configured feed names in sorted order.
func (cc *ConfigCache) GetNames() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	names := make([]string, 0, len(cc.cache))
	for name := range cc.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var feedConfig Config
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&feedConfig)

	return &feedConfig, nil
}

func applyDefaults(feedConfig *Config) {
	if feedConfig.Source == "" {
		feedConfig.Source = SourceArchiveDefault
	}
	if feedConfig.Pagination == "" {
		feedConfig.Pagination = PaginationPrevNext
	}
	if feedConfig.LayoutMode == "" {
		feedConfig.LayoutMode = LayoutGrid
	}
	if feedConfig.PostsPerPage == 0 {
		feedConfig.PostsPerPage = 12
	}
	if feedConfig.NoResultsLabel == "" {
		feedConfig.NoResultsLabel = "No results found."
	}
	if feedConfig.Locale == "" {
		feedConfig.Locale = "en"
	}
	if feedConfig.Carousel.ItemWidth == 0 {
		feedConfig.Carousel.ItemWidth = 320
	}
	if feedConfig.Settings.RefreshInterval == 0 {
		feedConfig.Settings.RefreshInterval = 3600
	}
	if feedConfig.Settings.Timeout == 0 {
		feedConfig.Settings.Timeout = 30
	}
}

func (cc *ConfigCache) validateConfig(feedConfig *Config) error {
	if feedConfig == nil {
		return fmt.Errorf("feedConfig is nil")
	}

	requiredFeedFields := map[string]string{
		"feed name": feedConfig.Name,
		"feed id":   feedConfig.ID,
	}

	for fieldName, fieldValue := range requiredFeedFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"posts per page":      feedConfig.PostsPerPage,
		"offset":              feedConfig.Offset,
		"auto slide interval": feedConfig.Carousel.AutoSlideInterval,
		"item width":          feedConfig.Carousel.ItemWidth,
		"viewport width":      feedConfig.Carousel.ViewportWidth,
		"refresh interval":    feedConfig.Settings.RefreshInterval,
		"timeout":             feedConfig.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	switch feedConfig.Source {
	case SourceLinkedControl, SourceExplicitFilters, SourceManualList, SourceArchiveDefault:
	default:
		return fmt.Errorf("invalid source: %s", feedConfig.Source)
	}

	switch feedConfig.Pagination {
	case PaginationLoadMore, PaginationPrevNext, PaginationNone:
	default:
		return fmt.Errorf("invalid pagination: %s", feedConfig.Pagination)
	}

	switch feedConfig.LayoutMode {
	case LayoutGrid, LayoutCarousel:
	default:
		return fmt.Errorf("invalid layout mode: %s", feedConfig.LayoutMode)
	}

	if feedConfig.PriorityMin != nil && feedConfig.PriorityMax != nil && *feedConfig.PriorityMin > *feedConfig.PriorityMax {
		return fmt.Errorf("priority_min must not exceed priority_max")
	}

	// Intervals below the minimum disable autoplay instead of failing.
	if feedConfig.Carousel.AutoSlide && feedConfig.Carousel.AutoSlideInterval < minAutoSlideInterval {
		slog.Warn("Auto slide interval below minimum, autoplay disabled", "feed", feedConfig.Name, "interval_ms", feedConfig.Carousel.AutoSlideInterval)
	}

	for key := range feedConfig.Filters {
		if isReservedParam(key) {
			return fmt.Errorf("filter key '%s' collides with a request parameter", key)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(feedName string) string {
	return filepath.Join(cc.feedsDir, feedName+".yml")
}
