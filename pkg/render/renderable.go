package render

import (
	"fmt"
	"reflect"
	"strconv"

	weferrors "github.com/conneroisu/weft/pkg/errors"
)

// Renderable is implemented by values that write themselves to a Target.
type Renderable interface {
	RenderTo(t Target) error
}

// PlainTexter is implemented by values that have a plain-text form for use
// inside attribute values. Renderables that produce markup should not
// implement it.
type PlainTexter interface {
	PlainText() (string, error)
}

// Func adapts a callback to Renderable.
type Func func(t Target) error

// RenderTo calls f.
func (f Func) RenderTo(t Target) error {
	if f == nil {
		return nil
	}

	return f(t)
}

// Text renders as escaped text.
type Text string

// RenderTo writes the text.
func (s Text) RenderTo(t Target) error { return t.Text(string(s)) }

// PlainText returns the text unchanged.
func (s Text) PlainText() (string, error) { return string(s), nil }

// Nodes renders heterogeneous children in order.
type Nodes []Renderable

// RenderTo renders each child in turn and stops at the first error.
func (n Nodes) RenderTo(t Target) error {
	for _, child := range n {
		if child == nil {
			continue
		}
		if err := child.RenderTo(t); err != nil {
			return err
		}
	}

	return nil
}

// Optional holds a value that may be absent. An absent Optional renders
// nothing.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, ok: true} }

// None returns an absent Optional.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// RenderTo renders the value when present.
func (o Optional[T]) RenderTo(t Target) error {
	if !o.ok {
		return nil
	}

	return Value(o.value, t)
}

// PlainText stringifies the value when present.
func (o Optional[T]) PlainText() (string, error) {
	if !o.ok {
		return "", nil
	}

	return Stringify(o.value)
}

// Element renders a single element around children. Attribute values are
// escaped; the name is written as given.
func Element(name string, attrs []Attr, children ...Renderable) Renderable {
	return Func(func(t Target) error {
		if err := t.StartElement(name, attrs); err != nil {
			return err
		}
		if err := Nodes(children).RenderTo(t); err != nil {
			return err
		}

		return t.EndElement(name)
	})
}

// Value renders an arbitrary value: Renderables delegate, text-like and
// scalar values render as escaped text, pointers forward to their target,
// nil renders nothing. Other values are an evaluation error.
func Value(v any, t Target) error {
	if v == nil {
		return nil
	}

	switch x := v.(type) {
	case Renderable:
		if isNilPointer(v) {
			return nil
		}
		return x.RenderTo(t)
	case string:
		return t.Text(x)
	case []byte:
		return t.Text(string(x))
	case []Renderable:
		return Nodes(x).RenderTo(t)
	case fmt.Stringer:
		if isNilPointer(v) {
			return nil
		}
		return t.Text(x.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Value(rv.Elem().Interface(), t)
	}

	if s, ok := scalarText(rv); ok {
		return t.Text(s)
	}

	return notRenderable(v)
}

// Stringify converts v to the plain text used for attribute values. Unlike
// Value it never produces markup: Renderables without a plain-text form are
// rejected.
func Stringify(v any) (string, error) {
	if v == nil {
		return "", nil
	}

	switch x := v.(type) {
	case PlainTexter:
		if isNilPointer(v) {
			return "", nil
		}
		return x.PlainText()
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		if isNilPointer(v) {
			return "", nil
		}
		return x.String(), nil
	case Renderable:
		return "", weferrors.NewEvaluationError(weferrors.ErrCodeNotRenderable,
			fmt.Sprintf("%T renders markup and cannot be used as attribute text", v), nil)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", nil
		}
		return Stringify(rv.Elem().Interface())
	}

	if s, ok := scalarText(rv); ok {
		return s, nil
	}

	return "", weferrors.NewEvaluationError(weferrors.ErrCodeNotRenderable,
		fmt.Sprintf("%T has no plain-text form", v), nil)
}

func scalarText(rv reflect.Value) (string, bool) {
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	}

	return "", false
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func notRenderable(v any) error {
	return weferrors.NewEvaluationError(weferrors.ErrCodeNotRenderable,
		fmt.Sprintf("value of type %T is not renderable", v), nil)
}
