// Package errors names transport failures for metric tags and logs.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"
	"syscall"
)

// Classify returns a short, stable name for err suitable for tagging metrics.
// Well-known transport failures get fixed names; anything else is named after
// its innermost concrete type in snake case.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, syscall.ECONNREFUSED):
		return "connection_refused"
	case goerrors.Is(err, syscall.ECONNRESET):
		return "connection_reset"
	case goerrors.As(err, &dnsErr):
		return "dns"
	case goerrors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
