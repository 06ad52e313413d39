package expr

import (
	"fmt"

	"github.com/expr-lang/expr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type function func(params ...any) (any, error)

// functions are the non-builtin calls available to templates.
var functions = map[string]function{
	"display":   display,
	"titlecase": titlecase,
}

// display formats any value with its default textual form.
func display(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("display: want 1 argument, got %d", len(params))
	}

	return fmt.Sprint(params[0]), nil
}

func titlecase(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("titlecase: want 1 argument, got %d", len(params))
	}
	s, ok := params[0].(string)
	if !ok {
		s = fmt.Sprint(params[0])
	}

	// Casers are stateful, so each call gets its own.
	return cases.Title(language.Und).String(s), nil
}

func compileOptions() []expr.Option {
	opts := make([]expr.Option, 0, len(functions)+1)
	opts = append(opts, expr.Optimize(true))
	for name, fn := range functions {
		opts = append(opts, expr.Function(name, fn))
	}

	return opts
}
