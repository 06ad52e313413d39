package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/conneroisu/weft/internal/data"
	"github.com/conneroisu/weft/internal/middleware"
	"github.com/conneroisu/weft/internal/registry"
	"github.com/conneroisu/weft/internal/version"
	"github.com/conneroisu/weft/pkg/plan"
	"github.com/conneroisu/weft/pkg/render"
	"github.com/conneroisu/weft/pkg/weft"
)

// Handler returns the server's routes wrapped in its middleware.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /render/{name...}", s.handleRender)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("GET /api/cache", s.handleCache)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/ws", s.hub)

	return middleware.Chain(mux,
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.NoCache,
	)
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.GetAll()
	page := indexPage{
		Version:   version.GetShortVersion(),
		Root:      s.scanner.Root(),
		Templates: make([]templateRow, 0, len(entries)),
	}
	for _, e := range entries {
		row := templateRow{
			Name:  e.Name,
			Title: displayTitle(e.Name),
			Path:  e.Path,
			Hash:  e.Hash,
			OK:    e.OK(),
		}
		if e.Err != nil {
			row.Error = e.Err.Error()
		}
		page.Templates = append(page.Templates, row)
	}

	s.writePage(w, r, "", "weft preview", s.index, page)
}

func (s *PreviewServer) handleRender(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	entry, ok := s.registry.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !entry.OK() {
		w.Header().Set("Content-Type", weft.ContentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<pre>"+render.EscapeText(entry.Err.Error())+"</pre>")
		return
	}

	if r.URL.Query().Get("raw") == "1" {
		weft.TemplateHandler(entry.Template, s.dataFor(entry), s.logger).ServeHTTP(w, r)
		return
	}

	value, err := s.dataFor(entry)(r)
	if err != nil {
		s.logger.Error(r.Context(), err, "Loading template data failed", "template", name)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writePage(w, r, name, displayTitle(name), entry.Template, value)
}

// dataFor returns the data source for entry: its sibling data file when
// one exists, otherwise mock values for the names the template uses. A
// props query parameter, YAML or JSON, is merged on top.
func (s *PreviewServer) dataFor(entry *registry.Entry) weft.DataFunc {
	return func(r *http.Request) (any, error) {
		var value any
		if file, ok := data.Sibling(entry.Path); ok {
			v, err := data.Load(file)
			if err != nil {
				return nil, err
			}
			value = v
		} else {
			value = s.mock.ForPlan(entry.Template.Plan())
		}

		if props := r.URL.Query().Get("props"); props != "" {
			over, err := data.Parse(props)
			if err != nil {
				return nil, err
			}
			value = data.Merge(value, over)
		}

		return value, nil
	}
}

// writePage renders t into the preview shell. Output is buffered so a
// render error yields a 500 instead of a truncated page.
func (s *PreviewServer) writePage(w http.ResponseWriter, r *http.Request, target, title string, t *weft.Template, value any) {
	buf := render.GetBuffer()
	defer render.PutBuffer(buf)

	if err := t.Render(buf, value); err != nil {
		s.logger.Error(r.Context(), err, "Render failed", "template", t.Name())
		w.Header().Set("Content-Type", weft.ContentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<pre>"+render.EscapeText(err.Error())+"</pre>")
		return
	}

	w.Header().Set("Content-Type", weft.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, pageHead)
	if target != "" {
		_, _ = io.WriteString(w, ` data-weft-template="`+render.EscapeAttr(target)+`"`)
	}
	_, _ = io.WriteString(w, pageMid+render.EscapeText(title)+pageBody)
	_, _ = buf.WriteTo(w)
	_, _ = io.WriteString(w, pageTail)
}

// templateInfo is the JSON form of a registry entry.
type templateInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Hash     string    `json:"hash"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Names    []string  `json:"names,omitempty"`
}

func (s *PreviewServer) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.GetAll()
	out := make([]templateInfo, 0, len(entries))
	for _, e := range entries {
		info := templateInfo{
			Name:     e.Name,
			Path:     e.Path,
			Hash:     e.Hash,
			Size:     e.Size,
			Modified: e.ModTime,
			OK:       e.OK(),
		}
		if e.Err != nil {
			info.Error = e.Err.Error()
		}
		if e.OK() {
			info.Names = plan.Names(e.Template.Plan())
		}
		out = append(out, info)
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *PreviewServer) handleCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version.GetVersion(),
		"templates": s.registry.Count(),
		"failed":    len(s.registry.Failed()),
		"clients":   s.hub.Count(),
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
