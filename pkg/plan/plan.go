// Package plan defines the immutable instruction tree a template compiles to.
package plan

import (
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/weft/pkg/expr"
	"github.com/conneroisu/weft/pkg/inline"
)

// Instruction is one node of a compiled plan. The set of implementations is
// closed: Literal, Interpolate, Element, If and For.
type Instruction interface {
	instruction()
}

// Literal emits its text, escaped.
type Literal struct {
	Text string
}

// Interpolate evaluates Expr and renders the result.
type Interpolate struct {
	Expr expr.Expr
}

// Attribute is a plain attribute whose value may contain placeholders.
type Attribute struct {
	Name  string
	Value inline.Template
}

// Element emits a start tag, its body, then the end tag.
type Element struct {
	Name  string
	Attrs []Attribute
	Body  []Instruction
}

// If executes Body only when Cond evaluates to true.
type If struct {
	Cond expr.Expr
	Body []Instruction
}

// For executes Body once per element of Iterable with Binding set to it.
type For struct {
	Binding  string
	Iterable expr.Expr
	Body     []Instruction
}

func (Literal) instruction()     {}
func (Interpolate) instruction() {}
func (Element) instruction()     {}
func (If) instruction()          {}
func (For) instruction()         {}

// Plan is the compiled form of one template. It is never modified after
// compilation and may be shared across goroutines.
type Plan struct {
	Body []Instruction
}

// Len returns the number of instructions in the plan, counting nested ones.
func (p *Plan) Len() int {
	n := 0
	Walk(p, func(Instruction, int) bool {
		n++
		return true
	})

	return n
}

// Walk visits every instruction depth-first in source order. depth is 0 for
// top-level instructions. Returning false from fn skips the node's body.
func Walk(p *Plan, fn func(in Instruction, depth int) bool) {
	if p == nil {
		return
	}
	walk(p.Body, 0, fn)
}

func walk(body []Instruction, depth int, fn func(Instruction, int) bool) {
	for _, in := range body {
		if !fn(in, depth) {
			continue
		}
		switch n := in.(type) {
		case Element:
			walk(n.Body, depth+1, fn)
		case If:
			walk(n.Body, depth+1, fn)
		case For:
			walk(n.Body, depth+1, fn)
		}
	}
}

// Dump writes an indented listing of the plan to w.
func Dump(w io.Writer, p *Plan) error {
	var err error
	Walk(p, func(in Instruction, depth int) bool {
		if err != nil {
			return false
		}
		indent := strings.Repeat("  ", depth)
		switch n := in.(type) {
		case Literal:
			_, err = fmt.Fprintf(w, "%sliteral %q\n", indent, n.Text)
		case Interpolate:
			_, err = fmt.Fprintf(w, "%sinterpolate %s\n", indent, n.Expr.Source())
		case Element:
			_, err = fmt.Fprintf(w, "%selement %s", indent, n.Name)
			for _, a := range n.Attrs {
				if err == nil {
					_, err = fmt.Fprintf(w, " %s=%q", a.Name, a.Value.String())
				}
			}
			if err == nil {
				_, err = io.WriteString(w, "\n")
			}
		case If:
			_, err = fmt.Fprintf(w, "%sif %s\n", indent, n.Cond.Source())
		case For:
			_, err = fmt.Fprintf(w, "%sfor %s in %s\n", indent, n.Binding, n.Iterable.Source())
		}
		return true
	})

	return err
}
