package httpx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/lanoire/lanoire-web/internal/service"
)

const defaultFeedIdle = 15 * time.Minute

// ToastFeedsOptions configures ToastFeeds.
type ToastFeedsOptions struct {
	Service   *service.NotificationService
	Transport ports.Transport
	PageSize  int
	// Idle is how long an unused feed is kept.
	Idle   time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// ToastFeeds keeps one notification poller per browser session so each
// browser is told about a notification once.
type ToastFeeds struct {
	opts ToastFeedsOptions

	mu    sync.Mutex
	feeds map[string]*toastFeed
}

type toastFeed struct {
	poller   *service.Poller
	lastUsed time.Time
}

// NewToastFeeds creates an empty feed registry.
func NewToastFeeds(opts ToastFeedsOptions) *ToastFeeds {
	if opts.Idle <= 0 {
		opts.Idle = defaultFeedIdle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ToastFeeds{opts: opts, feeds: make(map[string]*toastFeed)}
}

// Check returns notifications new to the session since its previous check.
// The first check of a session only records what exists. ok is false when
// the backend could not be listed.
func (f *ToastFeeds) Check(ctx context.Context, sess *BrowserSession) ([]service.Notification, bool) {
	feed, err := f.feed(sess)
	if err != nil {
		return nil, false
	}
	return feed.poller.Check(ctx)
}

func (f *ToastFeeds) feed(sess *BrowserSession) (*toastFeed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.opts.Now()
	for id, feed := range f.feeds {
		if now.Sub(feed.lastUsed) > f.opts.Idle {
			delete(f.feeds, id)
		}
	}

	if feed, ok := f.feeds[sess.ID]; ok {
		feed.lastUsed = now
		return feed, nil
	}
	poller, err := service.NewPoller(service.PollerOptions{
		Service:  f.opts.Service,
		API:      f.opts.Transport.WithSession(sess.Store),
		PageSize: f.opts.PageSize,
		Logger:   f.opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	feed := &toastFeed{poller: poller, lastUsed: now}
	f.feeds[sess.ID] = feed
	return feed, nil
}

// Drop forgets a session's feed.
func (f *ToastFeeds) Drop(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.feeds, sessionID)
}

// Len reports how many sessions have a feed.
func (f *ToastFeeds) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feeds)
}
