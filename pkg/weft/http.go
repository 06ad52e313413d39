package weft

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/conneroisu/weft/pkg/logging"
	"github.com/conneroisu/weft/pkg/render"
)

// ContentType is the media type of rendered output.
const ContentType = "text/html; charset=utf-8"

// Component adapts r to a templ.Component so weft output can be used with
// templ's handlers and composed into templ pages.
func Component(r render.Renderable) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return render.ToWriter(r, w)
	})
}

// Handler serves r as an HTML response. Output is buffered, so a render
// error produces a 500 response instead of a truncated page.
func Handler(r render.Renderable, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("http")

	return templ.Handler(Component(r),
		templ.WithContentType(ContentType),
		templ.WithErrorHandler(func(req *http.Request, err error) http.Handler {
			logger.Error(req.Context(), err, "Render failed", "path", req.URL.Path)
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			})
		}),
	)
}

// DataFunc supplies the data for one request.
type DataFunc func(r *http.Request) (any, error)

// TemplateHandler renders t with the data data returns for each request.
// A data error or render error produces a 500 response.
func TemplateHandler(t *Template, data DataFunc, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("http").With("template", t.Name())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var value any
		if data != nil {
			v, err := data(r)
			if err != nil {
				logger.Error(r.Context(), err, "Loading template data failed", "path", r.URL.Path)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			value = v
		}

		buf := render.GetBuffer()
		defer render.PutBuffer(buf)

		if err := t.Render(buf, value); err != nil {
			logger.Error(r.Context(), err, "Render failed", "path", r.URL.Path)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	})
}
