package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/pipeline"
)

const (
	targetPlaceholder = "{target}"
	maxPayloadBytes   = 8 << 20
)

var _ pipeline.Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher fetches payloads for a target from the endpoint described by a
// Source.
type HTTPFetcher struct {
	source     *feed.Source
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxBytes   int64
}

// NewHTTPFetcher returns a fetcher for source. A nil limiter disables pacing.
func NewHTTPFetcher(source *feed.Source, httpClient *http.Client, limiter *rate.Limiter, userAgent string) *HTTPFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPFetcher{
		source:     source,
		httpClient: httpClient,
		limiter:    limiter,
		userAgent:  userAgent,
		maxBytes:   maxPayloadBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req pipeline.FetchRequest) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
	}

	if f.source.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(f.source.Timeout)*time.Second)
		defer cancel()
	}

	httpReq, err := f.buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		slog.Warn("Fetch failed", "source", f.source.Name, "target", req.TargetID, "request_id", req.ID, "error", err)
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Fetch returned unexpected status", "source", f.source.Name, "target", req.TargetID, "request_id", req.ID, "status", resp.StatusCode)
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		slog.Warn("Fetch payload too large", "source", f.source.Name, "target", req.TargetID, "request_id", req.ID, "limit", f.maxBytes)
		return nil, fmt.Errorf("response body exceeds %d bytes", f.maxBytes)
	}

	slog.Debug("Fetch completed", "source", f.source.Name, "target", req.TargetID, "request_id", req.ID, "bytes", len(data))

	return data, nil
}

func (f *HTTPFetcher) buildRequest(ctx context.Context, req pipeline.FetchRequest) (*http.Request, error) {
	target := strconv.Itoa(req.TargetID)

	endpoint, err := url.Parse(strings.ReplaceAll(f.source.URL, targetPlaceholder, target))
	if err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}

	values := url.Values{}
	for key, value := range f.source.Params {
		values.Set(key, strings.ReplaceAll(value, targetPlaceholder, target))
	}
	for key, value := range req.Params {
		values.Set(key, value)
	}

	var httpReq *http.Request
	switch f.source.Method {
	case http.MethodPost:
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		query := endpoint.Query()
		for key, vs := range values {
			query[key] = vs
		}
		endpoint.RawQuery = query.Encode()

		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, err
		}
	}

	for key, value := range f.source.Headers {
		httpReq.Header.Set(key, value)
	}
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}

	return httpReq, nil
}
