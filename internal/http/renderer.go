package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
)

const (
	layoutFile   = "layout.tmpl"
	pagesPattern = "pages/*.tmpl"
)

// TemplateRenderer renders the HTML pages. Each page file defines "content"
// and is parsed together with the shared layout.
type TemplateRenderer struct {
	fsys    fs.FS
	devMode bool
	logger  *slog.Logger

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS // required
	// DevMode re-parses templates on every render so edits show without a restart.
	DevMode bool
	Logger  *slog.Logger
}

// NewTemplateRenderer parses the layout and every page template.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &TemplateRenderer{fsys: cfg.TemplateFS, devMode: cfg.DevMode, logger: logger}
	pages, err := r.parse()
	if err != nil {
		logger.Error("template parsing failed", slog.Any("error", err), slog.String("phase", "initialization"))
		return nil, err
	}
	r.pages = pages
	return r, nil
}

func (r *TemplateRenderer) parse() (map[string]*template.Template, error) {
	files, err := fs.Glob(r.fsys, pagesPattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page templates match %s", pagesPattern)
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".tmpl")
		t, err := template.New(layoutFile).Funcs(templateFuncs()).ParseFS(r.fsys, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return pages, nil
}

func (r *TemplateRenderer) page(name string) (*template.Template, error) {
	if r.devMode {
		pages, err := r.parse()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.pages = pages
		r.mu.Unlock()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page template %q", name)
	}
	return t, nil
}

// RenderParams selects the page, status, and data for Render.
type RenderParams struct {
	Page   string
	Status int
	Data   PageData
}

// Render writes a page. htmx requests receive only the content fragment.
func (r *TemplateRenderer) Render(w http.ResponseWriter, req *http.Request, p RenderParams) error {
	t, err := r.page(p.Page)
	if err != nil {
		r.logger.Error("template lookup failed", slog.String("template", p.Page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	name := "layout"
	if WantsPartial(req) {
		name = "content"
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, p.Data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("template", p.Page),
			slog.Any("error", err),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	status := p.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		r.logger.Error("failed to write rendered template",
			slog.String("template", p.Page),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
		"active": func(current, candidate string) bool {
			return current == candidate || (candidate != "/" && strings.HasPrefix(current, candidate+"/"))
		},
		"value": func(form map[string]string, key string) string { return form[key] },
	}
}
