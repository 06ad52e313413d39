// Package inline splits text into literal runs and {{ expr }} placeholders.
package inline

import (
	"strings"

	"github.com/conneroisu/weft/pkg/expr"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Segment is one piece of a scanned string: literal text when Expr is nil,
// otherwise a compiled placeholder expression.
type Segment struct {
	Text string
	Expr *expr.Expr
}

// IsLiteral reports whether the segment is literal text.
func (s Segment) IsLiteral() bool { return s.Expr == nil }

// Literal returns a literal segment.
func Literal(text string) Segment { return Segment{Text: text} }

// Expression returns a placeholder segment.
func Expression(e expr.Expr) Segment { return Segment{Expr: &e} }

// Template is the ordered segment list for one string. A nil or empty
// Template stands for the empty string.
type Template []Segment

// IsStatic reports whether the template contains no placeholders.
func (t Template) IsStatic() bool {
	for _, s := range t {
		if !s.IsLiteral() {
			return false
		}
	}

	return true
}

// String reassembles the template source, trimming placeholder interiors.
func (t Template) String() string {
	var b strings.Builder
	for _, s := range t {
		if s.IsLiteral() {
			b.WriteString(s.Text)
			continue
		}
		b.WriteString(openDelim + " " + s.Expr.Source() + " " + closeDelim)
	}

	return b.String()
}

// Scan splits s into segments. A placeholder runs from "{{" to the first
// following "}}"; its interior is trimmed and compiled. Empty literal runs
// are dropped. An unterminated "{{" is literal text. There is no escape for a
// literal "{{".
func Scan(s string) (Template, error) {
	var out Template

	rest := s
	for rest != "" {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			break
		}
		end += start + len(openDelim)

		if start > 0 {
			out = append(out, Literal(rest[:start]))
		}

		e, err := expr.Compile(rest[start+len(openDelim) : end])
		if err != nil {
			return nil, err
		}
		out = append(out, Expression(e))

		rest = rest[end+len(closeDelim):]
	}

	if rest != "" {
		out = append(out, Literal(rest))
	}

	return out, nil
}

// MustScan is like Scan but panics on error.
func MustScan(s string) Template {
	t, err := Scan(s)
	if err != nil {
		panic(err)
	}

	return t
}
