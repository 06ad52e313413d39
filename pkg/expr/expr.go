// Package expr implements the bounded expression language used inside
// {{ }} placeholders and directive values.
//
// Expressions are parsed by expr-lang and checked against an allowlist of
// node kinds before being compiled: field and index access, method calls on
// values, literals, boolean, comparison and arithmetic operators, the ternary
// operator, and a small set of functions. Closures, variable declarations and
// unlisted builtins are rejected at compile time.
package expr

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	weferrors "github.com/conneroisu/weft/pkg/errors"
)

// Expr is a compiled expression. The zero value is not usable; obtain one
// from Compile.
type Expr struct {
	source  string
	names   []string
	program *vm.Program
}

// Compile parses and validates src and prepares it for repeated evaluation.
// Leading and trailing whitespace is ignored.
func Compile(src string) (Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return Expr{}, weferrors.NewDirectiveParseError(
			weferrors.ErrCodeBadExpression, "empty expression", nil)
	}

	tree, err := parser.Parse(src)
	if err != nil {
		return Expr{}, weferrors.NewDirectiveParseError(
			weferrors.ErrCodeBadExpression,
			fmt.Sprintf("invalid expression %q", src), err)
	}

	names, err := validate(&tree.Node)
	if err != nil {
		return Expr{}, weferrors.NewDirectiveParseError(
			weferrors.ErrCodeBadExpression,
			fmt.Sprintf("unsupported expression %q", src), err)
	}

	program, err := expr.Compile(src, compileOptions()...)
	if err != nil {
		return Expr{}, weferrors.NewDirectiveParseError(
			weferrors.ErrCodeBadExpression,
			fmt.Sprintf("invalid expression %q", src), err)
	}

	return Expr{source: src, names: names, program: program}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}

	return e
}

// Source returns the trimmed source text.
func (e Expr) Source() string { return e.source }

// String implements fmt.Stringer.
func (e Expr) String() string { return e.source }

// Names returns the free identifiers the expression reads, in first-use
// order.
func (e Expr) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)

	return out
}

// Equal reports whether two expressions were compiled from the same source.
func (e Expr) Equal(other Expr) bool { return e.source == other.source }

// Valid reports whether e came from a successful Compile.
func (e Expr) Valid() bool { return e.program != nil }

// Eval evaluates the expression against scope. Every free identifier must
// resolve in the scope.
func (e Expr) Eval(scope *Scope) (any, error) {
	if e.program == nil {
		return nil, weferrors.NewEvaluationError(
			weferrors.ErrCodeRuntime, "expression was not compiled", nil)
	}

	env := make(map[string]any, len(e.names))
	for _, name := range e.names {
		v, ok := scope.Lookup(name)
		if !ok {
			return nil, weferrors.NewEvaluationError(
				weferrors.ErrCodeUndefinedName,
				fmt.Sprintf("undefined name %q in %q", name, e.source), nil).
				WithContext("name", name)
		}
		env[name] = v
	}

	out, err := expr.Run(e.program, env)
	if err != nil {
		return nil, weferrors.NewEvaluationError(
			weferrors.ErrCodeRuntime,
			fmt.Sprintf("evaluating %q", e.source), err)
	}

	return out, nil
}

// EvalBool evaluates the expression and requires a boolean result.
func (e Expr) EvalBool(scope *Scope) (bool, error) {
	v, err := e.Eval(scope)
	if err != nil {
		return false, err
	}

	b, ok := v.(bool)
	if !ok {
		return false, weferrors.NewEvaluationError(
			weferrors.ErrCodeTypeMismatch,
			fmt.Sprintf("%q evaluated to %T, want bool", e.source, v), nil)
	}

	return b, nil
}
