package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPLoader fetches a stylesheet and treats a complete 2xx body as loaded.
type HTTPLoader struct {
	client    *http.Client
	base      *url.URL
	userAgent string
	timeout   time.Duration
}

func NewHTTPLoader(client *http.Client, baseURL string, userAgent string, timeout time.Duration) (*HTTPLoader, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	return &HTTPLoader{
		client:    client,
		base:      base,
		userAgent: userAgent,
		timeout:   timeout,
	}, nil
}

func (l *HTTPLoader) Load(ctx context.Context, href string) error {
	ref, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("failed to parse stylesheet URL: %w", err)
	}
	target := l.base.ResolveReference(ref)

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch stylesheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to read stylesheet body: %w", err)
	}

	return nil
}
