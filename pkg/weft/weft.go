// Package weft compiles attribute-directive HTML templates once and renders
// them many times.
//
// A template is ordinary HTML. Four reserved attributes shape its output:
//
//	weft-replace="expr"   replace the element with the value of expr
//	weft-content="expr"   keep the element, replace its children
//	weft-if="expr"        emit the element only when expr is true
//	weft-for="x in expr"  emit the element once per item of expr
//
// Text and attribute values may contain {{ expr }} placeholders. Values are
// always escaped; attribute placeholders are stringified and never render
// markup.
package weft

import (
	"io"
	"io/fs"

	"github.com/conneroisu/weft/pkg/compiler"
	"github.com/conneroisu/weft/pkg/interp"
	"github.com/conneroisu/weft/pkg/logging"
	"github.com/conneroisu/weft/pkg/plan"
	"github.com/conneroisu/weft/pkg/render"
)

// Source identifies template markup; see compiler.Source.
type Source = compiler.Source

type options struct {
	name     string
	root     string
	selector string
	strict   bool
	fsys     fs.FS
	logger   logging.Logger
}

// Option configures compilation.
type Option func(*options)

// WithName sets the template's name. It defaults to the source path.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithRootDir sets the directory relative template paths resolve against.
func WithRootDir(dir string) Option {
	return func(o *options) { o.root = dir }
}

// WithFS reads template files from fsys.
func WithFS(fsys fs.FS) Option {
	return func(o *options) { o.fsys = fsys }
}

// WithSelector restricts the template to the children of the single element
// matching selector, unless the source sets its own selector.
func WithSelector(selector string) Option {
	return func(o *options) { o.selector = selector }
}

// WithStrictDirectives rejects elements that repeat a directive or combine
// weft-replace with weft-content.
func WithStrictDirectives() Option {
	return func(o *options) { o.strict = true }
}

// WithLogger sets the logger for compile diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Template is a compiled template. It is immutable and safe for concurrent
// use.
type Template struct {
	name   string
	source Source
	plan   *plan.Plan
}

// Compile loads and compiles src.
func Compile(src Source, opts ...Option) (*Template, error) {
	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if src.Selector == "" {
		src.Selector = o.selector
	}

	c := compiler.New(compiler.WithStrict(o.strict), compiler.WithLogger(o.logger))
	loaderOpts := []compiler.LoaderOption{
		compiler.WithCompiler(c),
		compiler.WithLoaderLogger(o.logger),
	}
	if o.fsys != nil {
		loaderOpts = append(loaderOpts, compiler.WithFS(o.fsys))
	}

	p, err := compiler.NewLoader(o.root, loaderOpts...).Load(src)
	if err != nil {
		return nil, err
	}

	name := o.name
	if name == "" {
		name = src.Name()
	}

	return &Template{name: name, source: src, plan: p}, nil
}

// Parse compiles inline markup.
func Parse(markup string, opts ...Option) (*Template, error) {
	return Compile(Source{Inline: markup}, opts...)
}

// ParseFile compiles the template file at path.
func ParseFile(path string, opts ...Option) (*Template, error) {
	return Compile(Source{Path: path}, opts...)
}

// FromPlan wraps an already compiled plan.
func FromPlan(name string, p *plan.Plan) *Template {
	return &Template{name: name, source: Source{}, plan: p}
}

// Must panics if err is non-nil. It is intended for package-level template
// variables.
func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}

	return t
}

// Name returns the template's name.
func (t *Template) Name() string { return t.name }

// Source returns the source the template was compiled from.
func (t *Template) Source() Source { return t.source }

// Plan returns the compiled plan.
func (t *Template) Plan() *plan.Plan { return t.plan }

// Bind pairs the template with data, producing a value that renders
// anywhere a Renderable is accepted, including inside other templates.
func (t *Template) Bind(data any) render.Renderable {
	return interp.Bind(t.plan, data)
}

// Render writes the template, rendered with data, to target.
func (t *Template) Render(target render.Target, data any) error {
	return interp.Execute(t.plan, data, target)
}

// Execute streams the rendered template to w.
func (t *Template) Execute(w io.Writer, data any) error {
	return t.Render(render.NewWriterTarget(w), data)
}

// RenderString renders the template into a string.
func (t *Template) RenderString(data any) (string, error) {
	return RenderToString(t.Bind(data))
}

// RenderToString renders any Renderable into a string.
func RenderToString(r render.Renderable) (string, error) {
	return render.ToString(r)
}

// RenderWriter streams any Renderable to w.
func RenderWriter(r render.Renderable, w io.Writer) error {
	return render.ToWriter(r, w)
}
