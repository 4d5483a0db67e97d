//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` or run through
// `go run` and are not tracked in go.mod since they are development tools,
// not runtime dependencies.
package tools

// Development tools:
//
// Air - Live reload for the web server (pairs with DEV=true, which re-reads
// web/templates and web/static from disk)
//   Install: go install github.com/air-verse/air@v1.63.0
//   Run:     air --build.cmd "go build -o ./tmp/lanoire-web ./cmd/lanoire-web" --build.bin ./tmp/lanoire-web
//
// mockgen - Regenerates internal/mocks from the ports
//   Run: go generate ./internal/mocks
