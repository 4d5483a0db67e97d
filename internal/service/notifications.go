package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/lanoire/lanoire-web/internal/ports"
	"github.com/mitchellh/mapstructure"
	"github.com/robfig/cron/v3"
)

// PathNotifications is the notification collection resource.
const PathNotifications = "investigation/notifications/"

const (
	// DefaultListExpr extracts rows from a paginated list payload.
	DefaultListExpr        = "results"
	defaultPollInterval    = 5 * time.Second
	defaultPollPageSize    = 20
	summaryLimit           = 80
	defaultSummaryFallback = "New notification"
)

// ErrInvalidNotificationID is returned when marking a notification without an ID.
var ErrInvalidNotificationID = errors.New("notification id is required")

// Notification is one row of the investigation notification feed.
type Notification struct {
	ID        string         `mapstructure:"id"         json:"id"`
	Type      string         `mapstructure:"type"       json:"type,omitempty"`
	Message   string         `mapstructure:"message"    json:"message,omitempty"`
	CreatedAt string         `mapstructure:"created_at" json:"created_at,omitempty"`
	ReadAt    string         `mapstructure:"read_at"    json:"read_at,omitempty"`
	Extra     map[string]any `mapstructure:",remain"    json:"-"`
}

// Unread reports whether the notification has no read timestamp.
func (n Notification) Unread() bool { return n.ReadAt == "" }

// Summary is the one-line text shown in an alert: "[type] message", with the
// message cut to 80 characters.
func (n Notification) Summary() string {
	msg := n.Message
	if msg == "" {
		msg = defaultSummaryFallback
	}
	if utf8.RuneCountInString(msg) > summaryLimit {
		msg = string([]rune(msg)[:summaryLimit]) + "…"
	}
	if n.Type != "" {
		return "[" + n.Type + "] " + msg
	}
	return msg
}

// NotificationServiceOptions groups dependencies for NotificationService.
type NotificationServiceOptions struct {
	// ListExpr is a JMESPath expression applied to object-shaped list payloads.
	ListExpr string
}

// NotificationService reads and acknowledges investigation notifications.
type NotificationService struct {
	expr string
}

// NewNotificationService compiles the list expression and builds the service.
func NewNotificationService(opts NotificationServiceOptions) (*NotificationService, error) {
	raw := strings.TrimSpace(opts.ListExpr)
	if raw == "" {
		raw = DefaultListExpr
	}
	if _, err := jmespath.Compile(raw); err != nil {
		return nil, fmt.Errorf("compile notification list expression %q: %w", raw, err)
	}
	return &NotificationService{expr: raw}, nil
}

// ListInput selects a page of notifications. Zero values are omitted from the query.
type ListInput struct {
	Page     int
	PageSize int
}

// List fetches one page of notifications for the signed-in user.
func (s *NotificationService) List(ctx context.Context, api ports.API, in ListInput) ([]Notification, error) {
	q := url.Values{}
	if in.Page > 0 {
		q.Set("page", strconv.Itoa(in.Page))
	}
	if in.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(in.PageSize))
	}
	path := PathNotifications
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	payload, err := api.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return s.decodeList(payload)
}

// decodeList accepts a bare array, or an object from which the list
// expression selects the rows. Any other shape is an empty list.
func (s *NotificationService) decodeList(payload json.RawMessage) ([]Notification, error) {
	var data any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("decode notifications: %w", err)
		}
	}

	var rows []any
	switch v := data.(type) {
	case []any:
		rows = v
	case map[string]any:
		selected, err := jmespath.Search(s.expr, v)
		if err != nil {
			return nil, fmt.Errorf("select notification rows: %w", err)
		}
		rows, _ = selected.([]any)
	}

	out := make([]Notification, 0, len(rows))
	for i, row := range rows {
		n, err := decodeNotification(row)
		if err != nil {
			return nil, fmt.Errorf("decode notification %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func decodeNotification(row any) (Notification, error) {
	var n Notification
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &n,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return n, err
	}
	if err := dec.Decode(row); err != nil {
		return n, err
	}
	return n, nil
}

// MarkRead records that the signed-in user has read a notification.
func (s *NotificationService) MarkRead(ctx context.Context, api ports.API, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidNotificationID
	}
	path := PathNotifications + url.PathEscape(id) + "/reads/"
	if _, err := api.Post(ctx, path, map[string]any{}); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

// NotificationSink receives notifications the poller has not reported before.
// Pollers without a sink are driven through Check.
type NotificationSink func(ctx context.Context, fresh []Notification)

// PollerOptions configures a Poller.
type PollerOptions struct {
	Service  *NotificationService
	API      ports.API
	Sink     NotificationSink
	Interval time.Duration
	PageSize int
	Logger   *slog.Logger
}

// Poller periodically lists notifications and reports new unread ones. The
// first successful poll only records what already exists. Failures are logged
// at debug level and never retried before the next tick.
type Poller struct {
	svc      *NotificationService
	api      ports.API
	sink     NotificationSink
	interval time.Duration
	pageSize int
	logger   *slog.Logger

	mu          sync.Mutex
	seen        map[string]struct{}
	initialized bool
}

// NewPoller validates opts and builds a Poller.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Service == nil || opts.API == nil {
		return nil, errors.New("poller: service and API are required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPollPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		svc:      opts.Service,
		api:      opts.API,
		sink:     opts.Sink,
		interval: interval,
		pageSize: pageSize,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}, nil
}

// Check lists the first page and returns the unread rows not reported
// before. The first successful check only records what already exists.
// ok is false when the listing failed.
func (p *Poller) Check(ctx context.Context) (fresh []Notification, ok bool) {
	rows, err := p.svc.List(ctx, p.api, ListInput{Page: 1, PageSize: p.pageSize})
	if err != nil {
		p.logger.DebugContext(ctx, "notification poll failed", "error", err)
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		for _, n := range rows {
			p.seen[n.ID] = struct{}{}
		}
		p.initialized = true
		return nil, true
	}
	for _, n := range rows {
		if _, dup := p.seen[n.ID]; dup || !n.Unread() {
			continue
		}
		p.seen[n.ID] = struct{}{}
		fresh = append(fresh, n)
	}
	return fresh, true
}

// Poll runs one check and hands new rows to the sink. It reports whether the listing succeeded.
func (p *Poller) Poll(ctx context.Context) bool {
	fresh, ok := p.Check(ctx)
	if len(fresh) > 0 && p.sink != nil {
		p.sink(ctx, fresh)
	}
	return ok
}

// Run polls immediately and then on every interval until ctx is done.
// Overlapping runs are skipped rather than queued.
func (p *Poller) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+p.interval.String(), func() { p.Poll(ctx) }); err != nil {
		return fmt.Errorf("schedule notification poll: %w", err)
	}

	p.Poll(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
