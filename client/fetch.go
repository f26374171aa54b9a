package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"realtime-service/internal/models"
)

// FetchResult is one incremental fetch page plus the scope metadata that
// rides along with it.
type FetchResult struct {
	Messages []models.Message
	Topic    *string
	Mentors  []string
}

// Fetcher issues "messages after cursor" requests. Both the poller and the
// initial catch-up go through it, so the two transports share one contract.
type Fetcher interface {
	Fetch(ctx context.Context, scope models.Scope, after string) (FetchResult, error)
}

// HTTPFetcher talks to the service's fetch endpoint.
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPFetcher constructs an HTTPFetcher. baseURL is the service root,
// e.g. "http://localhost:8083".
func NewHTTPFetcher(baseURL, token string) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch performs one incremental fetch. A non-2xx status or a malformed body
// is an error: the caller keeps its cursor and nothing is partially applied.
func (f *HTTPFetcher) Fetch(ctx context.Context, scope models.Scope, after string) (FetchResult, error) {
	endpoint := fmt.Sprintf("%s/scopes/%s/messages", f.baseURL, scope.Key())
	if after != "" {
		endpoint += "?after=" + url.QueryEscape(after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("fetch %s: status %d", scope.Key(), resp.StatusCode)
	}

	var page models.FetchPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: decode: %w", scope.Key(), err)
	}
	return FetchResult{Messages: page.Messages, Topic: page.Topic, Mentors: page.Mentors}, nil
}
