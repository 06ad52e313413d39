package expr

import (
	"fmt"

	"github.com/expr-lang/expr/ast"
)

// allowedBuiltins are the expr-lang builtins callable from templates.
var allowedBuiltins = map[string]bool{
	"len":    true,
	"upper":  true,
	"lower":  true,
	"trim":   true,
	"string": true,
	"join":   true,
	"abs":    true,
	"int":    true,
	"float":  true,
}

var allowedOperators = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "and": true, "or": true,
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"in": true, "not in": true, "??": true,
	"contains": true, "startsWith": true, "endsWith": true,
}

var allowedUnary = map[string]bool{
	"!": true, "not": true, "-": true, "+": true,
}

// validate walks the tree and returns the free identifiers it reads, or the
// first disallowed construct.
func validate(root *ast.Node) ([]string, error) {
	v := &validator{seen: make(map[string]bool), calls: make(map[string]bool)}
	ast.Walk(root, v)
	if v.err != nil {
		return nil, v.err
	}

	names := make([]string, 0, len(v.idents))
	for _, name := range v.idents {
		if !v.calls[name] {
			names = append(names, name)
		}
	}

	return names, nil
}

type validator struct {
	err    error
	idents []string
	seen   map[string]bool
	calls  map[string]bool
}

func (v *validator) fail(format string, args ...any) {
	if v.err == nil {
		v.err = fmt.Errorf(format, args...)
	}
}

// Visit is called after a node's children have been visited.
func (v *validator) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.NilNode, *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode,
		*ast.StringNode, *ast.ConstantNode, *ast.ChainNode, *ast.MemberNode,
		*ast.SliceNode, *ast.ConditionalNode, *ast.ArrayNode, *ast.MapNode,
		*ast.PairNode:
	case *ast.IdentifierNode:
		if !v.seen[n.Value] {
			v.seen[n.Value] = true
			v.idents = append(v.idents, n.Value)
		}
	case *ast.UnaryNode:
		if !allowedUnary[n.Operator] {
			v.fail("operator %q is not allowed", n.Operator)
		}
	case *ast.BinaryNode:
		if !allowedOperators[n.Operator] {
			v.fail("operator %q is not allowed", n.Operator)
		}
	case *ast.BuiltinNode:
		if !allowedBuiltins[n.Name] {
			v.fail("function %q is not allowed", n.Name)
		}
	case *ast.CallNode:
		switch callee := n.Callee.(type) {
		case *ast.IdentifierNode:
			if _, ok := functions[callee.Value]; !ok {
				v.fail("function %q is not allowed", callee.Value)
				return
			}
			v.calls[callee.Value] = true
		case *ast.MemberNode:
			// method call on a value
		default:
			v.fail("unsupported call target %T", callee)
		}
	case *ast.ClosureNode, *ast.PointerNode:
		v.fail("closures are not allowed")
	case *ast.VariableDeclaratorNode:
		v.fail("variable declarations are not allowed")
	default:
		v.fail("unsupported construct %T", n)
	}
}
