package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftkiller/backend/internal/store/redisstore"
)

// ErrLimitExceeded is returned by Allow when an anonymous session has used
// up its free requests for the current window.
var ErrLimitExceeded = errors.New("request limit exceeded")

// Event is the wire form of one tracked request, published to the usage
// queue and drained into usage_records by the worker.
type Event struct {
	EventID   string     `json:"event_id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	SessionID *string    `json:"session_id,omitempty"`
	Endpoint  string     `json:"endpoint"`
	UserAgent string     `json:"user_agent"`
	IPAddress string     `json:"ip_address"`
	At        time.Time  `json:"at"`
}

// Publisher delivers usage events to the queue.
type Publisher interface {
	PublishUsage(ctx context.Context, ev Event) error
}

// Tracker enforces the anonymous request quota and records request events.
// Counting runs against Redis with a fixed window; recording is fire and
// forget through the queue, falling back to a direct insert when the broker
// is down.
type Tracker struct {
	limit  int
	window time.Duration

	store     *redisstore.Store
	publisher Publisher
	fallback  *Repo
	log       *zap.Logger
}

type TrackerOptions struct {
	Limit     int
	Window    time.Duration
	Store     *redisstore.Store
	Publisher Publisher
	Fallback  *Repo
	Log       *zap.Logger
}

func NewTracker(opts TrackerOptions) *Tracker {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Tracker{
		limit:     opts.Limit,
		window:    opts.Window,
		store:     opts.Store,
		publisher: opts.Publisher,
		fallback:  opts.Fallback,
		log:       opts.Log,
	}
}

func (t *Tracker) Limit() int { return t.limit }

// Allow consumes one request from the session's window. It returns the
// remaining count, or ErrLimitExceeded with remaining 0 once the window is
// spent. When Redis is unreachable, requests are allowed through rather
// than blocking the product on the counter.
func (t *Tracker) Allow(ctx context.Context, sessionID string) (int, error) {
	if t.store == nil {
		return t.limit, nil
	}
	key := "quota:anon:" + sessionID
	count, err := t.store.IncrWithTTL(ctx, key, t.window)
	if err != nil {
		t.log.Warn("quota counter unavailable, allowing request", zap.Error(err))
		return t.limit, nil
	}
	remaining := t.limit - int(count)
	if remaining < 0 {
		return 0, ErrLimitExceeded
	}
	return remaining, nil
}

// Track records one request. Publish errors degrade to a direct database
// insert so analytics survive a broker outage.
func (t *Tracker) Track(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if t.publisher != nil {
		err := t.publisher.PublishUsage(ctx, ev)
		if err == nil {
			return
		}
		t.log.Warn("usage publish failed, falling back to direct insert", zap.Error(err))
	}
	if t.fallback == nil {
		return
	}
	if err := t.fallback.InsertFromEvent(ctx, ev); err != nil {
		t.log.Error("usage record insert failed", zap.Error(err))
	}
}
