package expr

import (
	"reflect"
)

// SelfName is the identifier bound to the value a template is rendered with.
const SelfName = "self"

// Scope resolves identifiers during evaluation. Each loop iteration gets a
// child scope whose binding shadows every outer name. Scopes are immutable
// once built, so one root may be shared by concurrent children.
type Scope struct {
	parent *Scope
	name   string
	value  any
	vars   map[string]any
}

// NewScope builds the root scope for rendering self. "self" names the value
// itself; the exported fields of a struct (or the keys of a string-keyed map)
// are also visible by name.
func NewScope(self any) *Scope {
	s := &Scope{name: SelfName, value: self, vars: map[string]any{}}

	rv := reflect.ValueOf(self)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return s
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		rt := rv.Type()
		for _, f := range reflect.VisibleFields(rt) {
			if !f.IsExported() || f.Anonymous {
				continue
			}
			fv, err := rv.FieldByIndexErr(f.Index)
			if err != nil {
				// promoted through a nil embedded pointer
				continue
			}
			s.vars[f.Name] = fv.Interface()
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		iter := rv.MapRange()
		for iter.Next() {
			s.vars[iter.Key().String()] = iter.Value().Interface()
		}
	}

	return s
}

// Child returns a scope that binds name to value on top of s.
func (s *Scope) Child(name string, value any) *Scope {
	return &Scope{parent: s, name: name, value: value}
}

// Lookup resolves name, innermost binding first.
func (s *Scope) Lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
		if cur.vars != nil {
			if v, ok := cur.vars[name]; ok {
				return v, true
			}
		}
	}

	return nil, false
}

// Self returns the value the root scope was built from.
func (s *Scope) Self() any {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}

	return cur.value
}
