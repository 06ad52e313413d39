// Package compiler turns parsed markup into a render plan.
package compiler

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/weft/pkg/directive"
	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/inline"
	"github.com/conneroisu/weft/pkg/logging"
	"github.com/conneroisu/weft/pkg/plan"
)

// Compiler compiles node trees. It holds only configuration, so one
// Compiler may be used for any number of templates.
type Compiler struct {
	strict bool
	logger logging.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithStrict makes repeated or conflicting directives a compile error.
func WithStrict(strict bool) Option {
	return func(c *Compiler) { c.strict = strict }
}

// WithLogger sets the logger used for compile diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{logger: logging.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("compiler")

	return c
}

// Compile compiles nodes, in order, into one plan.
func Compile(nodes []*html.Node, opts ...Option) (*plan.Plan, error) {
	return New(opts...).Compile(nodes)
}

// Compile compiles nodes, in order, into one plan. Compilation either
// succeeds completely or returns a compile error naming the element at
// fault.
func (c *Compiler) Compile(nodes []*html.Node) (*plan.Plan, error) {
	body, err := c.nodes(nodes, nil)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{Body: body}, nil
}

func (c *Compiler) nodes(nodes []*html.Node, path []string) ([]plan.Instruction, error) {
	var out []plan.Instruction
	for _, n := range nodes {
		ins, err := c.node(n, path)
		if err != nil {
			return nil, err
		}
		out = append(out, ins...)
	}

	return out, nil
}

func (c *Compiler) children(n *html.Node, path []string) ([]plan.Instruction, error) {
	var kids []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		kids = append(kids, child)
	}

	return c.nodes(kids, path)
}

func (c *Compiler) node(n *html.Node, path []string) ([]plan.Instruction, error) {
	switch n.Type {
	case html.DocumentNode:
		return c.children(n, path)
	case html.ElementNode:
		ins, err := c.element(n, path)
		if err != nil {
			return nil, err
		}
		return []plan.Instruction{ins}, nil
	case html.TextNode:
		return c.text(n.Data, path)
	default:
		c.logger.Debug(context.Background(), "skipping node",
			"kind", nodeKind(n.Type), "path", pathString(path))
		return nil, nil
	}
}

func (c *Compiler) element(n *html.Node, parent []string) (plan.Instruction, error) {
	path := append(parent[:len(parent):len(parent)], label(n))

	d, err := directive.Extract(n.Attr, directive.Options{Strict: c.strict})
	if err != nil {
		return nil, compileError(path, attributeOf(err), err)
	}

	attrs := make([]plan.Attribute, 0, len(d.Attrs))
	for _, a := range d.Attrs {
		value, err := inline.Scan(a.Value)
		if err != nil {
			return nil, compileError(path, a.Name, err)
		}
		attrs = append(attrs, plan.Attribute{Name: a.Name, Value: value})
	}

	var ins plan.Instruction
	switch {
	case d.Replace != nil:
		ins = plan.Interpolate{Expr: *d.Replace}
	case d.Content != nil:
		ins = plan.Element{Name: n.Data, Attrs: attrs, Body: []plan.Instruction{
			plan.Interpolate{Expr: *d.Content},
		}}
	default:
		body, err := c.children(n, path)
		if err != nil {
			return nil, err
		}
		ins = plan.Element{Name: n.Data, Attrs: attrs, Body: body}
	}

	if d.For != nil {
		ins = plan.For{Binding: d.For.Binding, Iterable: d.For.Iterable, Body: []plan.Instruction{ins}}
	}
	if d.If != nil {
		ins = plan.If{Cond: *d.If, Body: []plan.Instruction{ins}}
	}

	return ins, nil
}

func (c *Compiler) text(data string, path []string) ([]plan.Instruction, error) {
	segments, err := inline.Scan(data)
	if err != nil {
		return nil, compileError(append(path[:len(path):len(path)], "#text"), "", err)
	}

	out := make([]plan.Instruction, 0, len(segments))
	for _, seg := range segments {
		if seg.IsLiteral() {
			out = append(out, plan.Literal{Text: seg.Text})
			continue
		}
		out = append(out, plan.Interpolate{Expr: *seg.Expr})
	}

	return out, nil
}

func compileError(path []string, attribute string, err error) error {
	return weferrors.NewCompileError(pathString(path), attribute, err)
}

func attributeOf(err error) string {
	var we *weferrors.WeftError
	if errors.As(err, &we) {
		return we.Attribute
	}

	return ""
}

// label names an element for diagnostics: its tag plus #id when present.
func label(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "id" && a.Val != "" && !strings.Contains(a.Val, "{{") {
			return n.Data + "#" + a.Val
		}
	}

	return n.Data
}

func pathString(path []string) string {
	return strings.Join(path, " > ")
}

func nodeKind(t html.NodeType) string {
	switch t {
	case html.CommentNode:
		return "comment"
	case html.DoctypeNode:
		return "doctype"
	case html.ErrorNode:
		return "error"
	case html.RawNode:
		return "raw"
	default:
		return "unknown"
	}
}
