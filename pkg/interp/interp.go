// Package interp executes render plans against data.
package interp

import (
	"fmt"
	"reflect"
	"strings"

	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/expr"
	"github.com/conneroisu/weft/pkg/inline"
	"github.com/conneroisu/weft/pkg/plan"
	"github.com/conneroisu/weft/pkg/render"
)

// Execute renders p with value bound as self. It keeps no state outside the
// call, so any number of goroutines may execute the same plan, each with its
// own target. On error the target holds whatever was written before it.
func Execute(p *plan.Plan, value any, t render.Target) error {
	if p == nil {
		return nil
	}

	return run(p.Body, expr.NewScope(value), t)
}

// Bound is a plan paired with its data. It renders like any other value, so
// templates nest inside each other through placeholders and directives.
type Bound struct {
	Plan  *plan.Plan
	Value any
}

// Bind pairs p with value.
func Bind(p *plan.Plan, value any) Bound {
	return Bound{Plan: p, Value: value}
}

// RenderTo executes the plan into t.
func (b Bound) RenderTo(t render.Target) error {
	return Execute(b.Plan, b.Value, t)
}

func run(body []plan.Instruction, scope *expr.Scope, t render.Target) error {
	for _, in := range body {
		if err := step(in, scope, t); err != nil {
			return err
		}
	}

	return nil
}

func step(in plan.Instruction, scope *expr.Scope, t render.Target) error {
	switch n := in.(type) {
	case plan.Literal:
		return t.Text(n.Text)

	case plan.Interpolate:
		v, err := n.Expr.Eval(scope)
		if err != nil {
			return err
		}
		return render.Value(v, t)

	case plan.Element:
		attrs, err := attributes(n.Attrs, scope)
		if err != nil {
			return err
		}
		if err := t.StartElement(n.Name, attrs); err != nil {
			return err
		}
		if err := run(n.Body, scope, t); err != nil {
			return err
		}
		return t.EndElement(n.Name)

	case plan.If:
		ok, err := n.Cond.EvalBool(scope)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return run(n.Body, scope, t)

	case plan.For:
		v, err := n.Iterable.Eval(scope)
		if err != nil {
			return err
		}
		return each(v, n.Iterable.Source(), func(item any) error {
			return run(n.Body, scope.Child(n.Binding, item), t)
		})
	}

	return fmt.Errorf("interp: unknown instruction %T", in)
}

func attributes(attrs []plan.Attribute, scope *expr.Scope) ([]render.Attr, error) {
	if len(attrs) == 0 {
		return nil, nil
	}

	out := make([]render.Attr, 0, len(attrs))
	for _, a := range attrs {
		value, err := Text(a.Value, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, render.Attr{Name: a.Name, Value: value})
	}

	return out, nil
}

// Text evaluates tmpl to plain text. Placeholder values are stringified,
// never rendered as markup.
func Text(tmpl inline.Template, scope *expr.Scope) (string, error) {
	switch len(tmpl) {
	case 0:
		return "", nil
	case 1:
		if tmpl[0].IsLiteral() {
			return tmpl[0].Text, nil
		}
	}

	var b strings.Builder
	for _, seg := range tmpl {
		if seg.IsLiteral() {
			b.WriteString(seg.Text)
			continue
		}
		v, err := seg.Expr.Eval(scope)
		if err != nil {
			return "", err
		}
		s, err := render.Stringify(v)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}

	return b.String(), nil
}

// each calls fn for every element of v in its natural order. Slices, arrays
// and iter.Seq-shaped functions are sequences; nil is empty.
func each(v any, src string, fn func(any) error) error {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := fn(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil

	case reflect.Func:
		if rv.IsNil() {
			return nil
		}
		if !isSeq(rv.Type()) {
			break
		}
		var err error
		for item := range rv.Seq() {
			if err = fn(item.Interface()); err != nil {
				break
			}
		}
		return err
	}

	return weferrors.NewEvaluationError(weferrors.ErrCodeTypeMismatch,
		fmt.Sprintf("%q evaluated to %T, which is not an ordered sequence", src, v), nil)
}

// isSeq reports whether t has the shape func(yield func(V) bool).
func isSeq(t reflect.Type) bool {
	if t.NumIn() != 1 || t.NumOut() != 0 {
		return false
	}
	yield := t.In(0)

	return yield.Kind() == reflect.Func &&
		yield.NumIn() == 1 &&
		yield.NumOut() == 1 &&
		yield.Out(0).Kind() == reflect.Bool
}
