package config

import (
	"strings"
	"time"
)

const (
	minPollInterval  = time.Second
	maxNotifPageSize = 100
)

// NotificationsConfig controls notification polling for toasts and the CLI watcher.
type NotificationsConfig struct {
	PollInterval time.Duration `env:"NOTIFICATIONS_POLL_INTERVAL" envDefault:"5s"`
	PageSize     int           `env:"NOTIFICATIONS_PAGE_SIZE"     envDefault:"20"`
	// ListExpr is a JMESPath expression selecting rows from object-shaped list payloads.
	ListExpr string `env:"NOTIFICATIONS_LIST_EXPR"`
}

// Sanitize clamps the interval and page size.
func (n *NotificationsConfig) Sanitize() {
	if n.PollInterval < minPollInterval {
		n.PollInterval = minPollInterval
	}
	if n.PageSize <= 0 {
		n.PageSize = 20
	}
	if n.PageSize > maxNotifPageSize {
		n.PageSize = maxNotifPageSize
	}
	n.ListExpr = strings.TrimSpace(n.ListExpr)
}
