package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Pipeline performs the request half of a fetch: build URL, GET, parse.
type Pipeline struct {
	httpClient *http.Client
	endpoint   *url.URL
	userAgent  string
	timeout    time.Duration
}

func NewPipeline(httpClient *http.Client, endpoint string, userAgent string, timeout time.Duration) (*Pipeline, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute URL: %s", endpoint)
	}
	return &Pipeline{
		httpClient: httpClient,
		endpoint:   u,
		userAgent:  userAgent,
		timeout:    timeout,
	}, nil
}

// Endpoint returns the endpoint URL, used to resolve relative asset links.
func (p *Pipeline) Endpoint() string {
	return p.endpoint.String()
}

// URL returns the request URL for params. Params already present in the
// endpoint's own query string are kept in front.
func (p *Pipeline) URL(params Params) string {
	u := *p.endpoint
	encoded := params.Encode()
	if u.RawQuery != "" && encoded != "" {
		u.RawQuery = u.RawQuery + "&" + encoded
	} else if encoded != "" {
		u.RawQuery = encoded
	}
	return u.String()
}

func (p *Pipeline) Request(ctx context.Context, params Params) (*Fragment, error) {
	data, err := p.fetch(ctx, p.URL(params))
	if err != nil {
		return nil, err
	}

	frag, err := ParseFragment(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return frag, nil
}

func (p *Pipeline) fetch(ctx context.Context, target string) ([]byte, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
