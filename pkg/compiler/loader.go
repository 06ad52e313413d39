package compiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/logging"
	"github.com/conneroisu/weft/pkg/plan"
)

// Source locates template markup. Exactly one of Path and Inline is set.
type Source struct {
	// Path is resolved against the loader's root directory unless absolute.
	Path string
	// Inline is the markup itself.
	Inline string
	// Selector, when set, picks the one element whose children form the
	// template. The element's own tag is not part of the output.
	Selector string
}

// Name returns a short description of the source for diagnostics.
func (s Source) Name() string {
	if s.Path != "" {
		return s.Path
	}

	return "inline"
}

func (s Source) validate() error {
	switch {
	case s.Path != "" && s.Inline != "":
		return weferrors.NewConfigError(weferrors.ErrCodeInvalidSource,
			"template source sets both path and inline markup", nil)
	case s.Path == "" && s.Inline == "":
		return weferrors.NewConfigError(weferrors.ErrCodeInvalidSource,
			"template source sets neither path nor inline markup", nil)
	}

	return nil
}

// Loader reads and compiles template sources.
type Loader struct {
	root     string
	fsys     fs.FS
	compiler *Compiler
	logger   logging.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS reads templates from fsys instead of the operating system. Paths
// are then slash-separated and relative to the root of fsys.
func WithFS(fsys fs.FS) LoaderOption {
	return func(l *Loader) { l.fsys = fsys }
}

// WithCompiler sets the compiler used for loaded templates.
func WithCompiler(c *Compiler) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.compiler = c
		}
	}
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(lg logging.Logger) LoaderOption {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// NewLoader returns a loader that resolves relative paths against root. An
// empty root means the working directory.
func NewLoader(root string, opts ...LoaderOption) *Loader {
	l := &Loader{root: root, logger: logging.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	if l.compiler == nil {
		l.compiler = New(WithLogger(l.logger))
	}
	l.logger = l.logger.WithComponent("loader")

	return l
}

// Root returns the configured root directory.
func (l *Loader) Root() string { return l.root }

// Resolve returns the location a template path is read from.
func (l *Loader) Resolve(p string) string {
	if l.fsys != nil {
		return path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "/"))
	}
	if filepath.IsAbs(p) || l.root == "" {
		return filepath.Clean(p)
	}

	return filepath.Join(l.root, p)
}

// Read returns the markup for src.
func (l *Loader) Read(src Source) (string, error) {
	if err := src.validate(); err != nil {
		return "", err
	}
	if src.Inline != "" {
		return src.Inline, nil
	}

	resolved := l.Resolve(src.Path)

	var (
		data []byte
		err  error
	)
	if l.fsys != nil {
		data, err = fs.ReadFile(l.fsys, resolved)
	} else {
		data, err = os.ReadFile(resolved)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", weferrors.NewTemplateNotFound(resolved, err)
		}
		return "", weferrors.NewIOError("reading template", err).WithFile(resolved)
	}

	return string(data), nil
}

// Load reads, parses and compiles src.
func (l *Loader) Load(src Source) (*plan.Plan, error) {
	ctx := context.Background()

	markup, err := l.Read(src)
	if err != nil {
		return nil, err
	}

	nodes, err := Parse(markup, src.Selector)
	if err != nil {
		return nil, withFile(err, src)
	}

	p, err := l.compiler.Compile(nodes)
	if err != nil {
		return nil, withFile(err, src)
	}

	l.logger.Debug(ctx, "compiled template",
		"source", src.Name(), "selector", src.Selector, "instructions", p.Len())

	return p, nil
}

func withFile(err error, src Source) error {
	var we *weferrors.WeftError
	if src.Path != "" && errors.As(err, &we) && we.FilePath == "" {
		we.FilePath = src.Path
	}

	return err
}

// Parse parses markup into the nodes a template compiles. Without a selector
// markup is parsed as a fragment of <body>. With one it is parsed as a full
// document and the children of the single matching element are returned.
func Parse(markup, selector string) ([]*html.Node, error) {
	if selector == "" {
		body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		nodes, err := html.ParseFragment(strings.NewReader(markup), body)
		if err != nil {
			return nil, weferrors.NewIOError("parsing markup", err)
		}
		return nodes, nil
	}

	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, weferrors.NewDirectiveParseError(weferrors.ErrCodeBadSelector,
			fmt.Sprintf("invalid selector %q", selector), err)
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, weferrors.NewIOError("parsing markup", err)
	}

	matches := sel.MatchAll(doc)
	if len(matches) != 1 {
		return nil, weferrors.NewSelectorAmbiguity(selector, len(matches))
	}

	var children []*html.Node
	for c := matches[0].FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}

	return children, nil
}
