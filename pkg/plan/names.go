package plan

import (
	"github.com/conneroisu/weft/pkg/expr"
	"github.com/conneroisu/weft/pkg/inline"
)

// Names returns the identifiers p reads from its data, in first-use order.
// Loop bindings inside their loops and the self name are excluded.
func Names(p *Plan) []string {
	if p == nil {
		return nil
	}

	c := &nameCollector{seen: make(map[string]bool)}
	c.body(p.Body, nil)

	return c.names
}

type nameCollector struct {
	seen  map[string]bool
	names []string
}

func (c *nameCollector) body(body []Instruction, bound []string) {
	for _, in := range body {
		switch n := in.(type) {
		case Interpolate:
			c.expr(n.Expr, bound)
		case Element:
			for _, a := range n.Attrs {
				c.template(a.Value, bound)
			}
			c.body(n.Body, bound)
		case If:
			c.expr(n.Cond, bound)
			c.body(n.Body, bound)
		case For:
			c.expr(n.Iterable, bound)
			c.body(n.Body, append(bound[:len(bound):len(bound)], n.Binding))
		}
	}
}

func (c *nameCollector) template(t inline.Template, bound []string) {
	for _, seg := range t {
		if seg.Expr != nil {
			c.expr(*seg.Expr, bound)
		}
	}
}

func (c *nameCollector) expr(e expr.Expr, bound []string) {
	for _, name := range e.Names() {
		if name == expr.SelfName || c.seen[name] || isBound(name, bound) {
			continue
		}
		c.seen[name] = true
		c.names = append(c.names, name)
	}
}

func isBound(name string, bound []string) bool {
	for _, b := range bound {
		if b == name {
			return true
		}
	}

	return false
}
