// Package lanoire provides embedded web assets for production builds.
package lanoire

import "embed"

// In dev mode (IsDev=true) templates and static files are read from disk
// instead so edits show without a rebuild.

//go:embed all:web/templates
var TemplateFS embed.FS

//go:embed all:web/static
var StaticFS embed.FS
