package odds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUpstreamUnavailable = errors.New("odds: upstream unavailable")
	ErrQuotaExceeded       = errors.New("odds: quota exceeded")
)

type cacheEntry struct {
	data      any
	fetchedAt time.Time
	ttl       time.Duration
}

func (e cacheEntry) valid(now time.Time) bool {
	return now.Sub(e.fetchedAt) < e.ttl
}

// Client is the low-level The Odds API client. Responses are cached in
// memory per endpoint key with distinct TTLs, and concurrent fills for the
// same key are coalesced so a burst of requests costs one upstream call.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	sportsTTL time.Duration
	eventsTTL time.Duration

	mu        sync.RWMutex
	cache     map[string]cacheEntry
	remaining int // -1 until first upstream response

	group singleflight.Group
}

func NewClient(baseURL, apiKey string, sportsTTL, eventsTTL time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.the-odds-api.com/v4"
	}
	if sportsTTL <= 0 {
		sportsTTL = time.Hour
	}
	if eventsTTL <= 0 {
		eventsTTL = 30 * time.Minute
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 15 * time.Second},
		sportsTTL: sportsTTL,
		eventsTTL: eventsTTL,
		cache:     make(map[string]cacheEntry),
		remaining: -1,
	}
}

// RemainingRequests reports the provider's remaining quota as of the last
// upstream response, or -1 when no call has been made yet.
func (c *Client) RemainingRequests() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remaining
}

func (c *Client) cached(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[key]
	if !ok || !e.valid(time.Now()) {
		return nil, false
	}
	return e.data, true
}

func (c *Client) store(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{data: data, fetchedAt: time.Now(), ttl: ttl}
}

func (c *Client) updateUsage(resp *http.Response) {
	v := resp.Header.Get("X-Requests-Remaining")
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		c.mu.Lock()
		c.remaining = n
		c.mu.Unlock()
	}
}

// fetch performs one GET against the provider, mapping quota responses to
// ErrQuotaExceeded and everything else that fails to ErrUpstreamUnavailable.
func (c *Client) fetch(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("apiKey", c.apiKey)
	u := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	c.updateUsage(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests:
		// the provider reports exhausted quota as 401, throttling as 429
		return fmt.Errorf("%w: status %d", ErrQuotaExceeded, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

// getCached answers from cache when fresh, otherwise fills through
// singleflight so only one upstream call per key is in flight.
func (c *Client) getCached(ctx context.Context, key string, ttl time.Duration, fill func(context.Context) (any, error)) (any, error) {
	if data, ok := c.cached(key); ok {
		return data, nil
	}
	data, err, _ := c.group.Do(key, func() (any, error) {
		// re-check: another caller may have filled while we queued
		if data, ok := c.cached(key); ok {
			return data, nil
		}
		data, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, data, ttl)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Sports returns the provider's sport catalog, cached for sportsTTL.
func (c *Client) Sports(ctx context.Context) ([]Sport, error) {
	data, err := c.getCached(ctx, "sports", c.sportsTTL, func(ctx context.Context) (any, error) {
		var sports []Sport
		if err := c.fetch(ctx, "/sports", url.Values{}, &sports); err != nil {
			return nil, err
		}
		return sports, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]Sport), nil
}

// Events returns upcoming events with odds for one sport, cached for
// eventsTTL.
func (c *Client) Events(ctx context.Context, sportKey string, markets []string) ([]Event, error) {
	key := "events:" + sportKey + ":" + strings.Join(markets, ",")
	data, err := c.getCached(ctx, key, c.eventsTTL, func(ctx context.Context) (any, error) {
		params := url.Values{}
		params.Set("regions", "us")
		params.Set("markets", strings.Join(markets, ","))
		params.Set("oddsFormat", "american")
		params.Set("dateFormat", "iso")

		var events []Event
		if err := c.fetch(ctx, "/sports/"+sportKey+"/odds", params, &events); err != nil {
			return nil, err
		}
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]Event), nil
}

// ClearCache drops every cached entry.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}
