// Package directive separates an element's reserved weft-* attributes from
// its plain attributes.
package directive

import (
	"fmt"
	"regexp"

	"golang.org/x/net/html"

	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/expr"
)

// Reserved attribute names. Matching is case-sensitive.
const (
	Replace = "weft-replace"
	Content = "weft-content"
	If      = "weft-if"
	For     = "weft-for"
)

// IsReserved reports whether name is one of the four directive attributes.
func IsReserved(name string) bool {
	switch name {
	case Replace, Content, If, For:
		return true
	}

	return false
}

// Iterator is a parsed "binding in iterable" pair.
type Iterator struct {
	Binding  string
	Iterable expr.Expr
}

// Attr is a plain attribute, in source order.
type Attr struct {
	Name  string
	Value string
}

// Directives is the classified attribute list of one element.
type Directives struct {
	Replace *expr.Expr
	Content *expr.Expr
	If      *expr.Expr
	For     *Iterator
	Attrs   []Attr
}

// Options controls extraction.
type Options struct {
	// Strict rejects repeated directives and replace combined with content.
	// Otherwise the last parsed value wins.
	Strict bool
}

var iteratorPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s+in\s+(.+?)\s*$`)

// ParseIterator parses the value of a weft-for attribute.
func ParseIterator(value string) (Iterator, error) {
	m := iteratorPattern.FindStringSubmatch(value)
	if m == nil {
		return Iterator{}, weferrors.NewDirectiveParseError(
			weferrors.ErrCodeBadIterator,
			fmt.Sprintf("iterator %q is not of the form \"binding in expression\"", value), nil)
	}

	iterable, err := expr.Compile(m[2])
	if err != nil {
		return Iterator{}, err
	}

	return Iterator{Binding: m[1], Iterable: iterable}, nil
}

// Extract classifies attrs. Namespaced attributes keep their prefix
// ("xlink:href").
func Extract(attrs []html.Attribute, opts Options) (Directives, error) {
	var d Directives
	seen := make(map[string]bool, 4)

	for _, a := range attrs {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}

		if !IsReserved(name) {
			d.Attrs = append(d.Attrs, Attr{Name: name, Value: a.Val})
			continue
		}

		if opts.Strict && seen[name] {
			return Directives{}, attrError(name, weferrors.NewDirectiveParseError(
				weferrors.ErrCodeDuplicate,
				fmt.Sprintf("directive %s given more than once", name), nil))
		}
		seen[name] = true

		if name == For {
			it, err := ParseIterator(a.Val)
			if err != nil {
				return Directives{}, attrError(name, err)
			}
			d.For = &it
			continue
		}

		e, err := expr.Compile(a.Val)
		if err != nil {
			return Directives{}, attrError(name, err)
		}

		switch name {
		case Replace:
			d.Replace = &e
		case Content:
			d.Content = &e
		case If:
			d.If = &e
		}
	}

	if opts.Strict && d.Replace != nil && d.Content != nil {
		return Directives{}, attrError(Content, weferrors.NewDirectiveParseError(
			weferrors.ErrCodeConflict,
			fmt.Sprintf("%s and %s cannot be combined", Replace, Content), nil))
	}

	return d, nil
}

func attrError(name string, err error) error {
	if we, ok := err.(*weferrors.WeftError); ok && we.Attribute == "" {
		we.Attribute = name
		return we
	}

	return err
}
