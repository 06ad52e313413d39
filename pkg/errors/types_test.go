package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeftErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *WeftError
		contains []string
	}{
		{
			name:     "not found carries path",
			err:      NewTemplateNotFound("views/index.html", errors.New("no such file")),
			contains: []string{ErrCodeTemplateNotFound, "views/index.html", "no such file"},
		},
		{
			name: "compile error carries element and attribute",
			err: NewCompileError("body > ul > li", "weft-for",
				NewDirectiveParseError(ErrCodeBadIterator, "bad iterator", nil)),
			contains: []string{"element:body > ul > li[weft-for]", "bad iterator"},
		},
		{
			name:     "selector ambiguity counts matches",
			err:      NewSelectorAmbiguity("p", 3),
			contains: []string{ErrCodeManyMatches, "matched 3 elements"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				assert.Contains(t, msg, want)
			}
		})
	}
}

func TestSelectorAmbiguityCodes(t *testing.T) {
	assert.Equal(t, ErrCodeNoMatch, NewSelectorAmbiguity("main", 0).Code)
	assert.Equal(t, ErrCodeManyMatches, NewSelectorAmbiguity("main", 2).Code)
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	parse := NewDirectiveParseError(ErrCodeBadExpression, "invalid expression", nil)
	compile := NewCompileError("p", "title", parse)
	wrapped := fmt.Errorf("loading index: %w", compile)

	assert.True(t, IsCompile(wrapped))
	assert.True(t, IsDirectiveParse(wrapped))
	assert.False(t, IsEvaluation(wrapped))
	assert.False(t, IsTemplateNotFound(wrapped))
	assert.Equal(t, ErrorTypeCompile, TypeOf(wrapped))
}

func TestPredicatesOnForeignErrors(t *testing.T) {
	err := errors.New("plain")

	assert.False(t, IsIO(err))
	assert.False(t, IsCompile(nil))
	assert.Equal(t, ErrorType(""), TypeOf(err))
}

func TestIsComparesTypeAndCode(t *testing.T) {
	a := NewEvaluationError(ErrCodeUndefinedName, "undefined name x", nil)
	b := NewEvaluationError(ErrCodeUndefinedName, "undefined name y", nil)
	c := NewEvaluationError(ErrCodeTypeMismatch, "want bool", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestWithContext(t *testing.T) {
	err := NewIOError("write failed", errors.New("broken pipe")).
		WithContext("bytes", 12).
		WithFile("page.html")

	require.NotNil(t, err.Context)
	assert.Equal(t, 12, err.Context["bytes"])
	assert.Equal(t, "page.html", err.FilePath)
	assert.EqualError(t, errors.Unwrap(err), "broken pipe")
}

func TestSuggest(t *testing.T) {
	err := NewCompileError("ul > li", "weft-for",
		NewDirectiveParseError(ErrCodeBadIterator, "bad iterator", nil))

	s, ok := Suggest(fmt.Errorf("loading: %w", err))
	require.True(t, ok)
	assert.Contains(t, s.Example, `weft-for="item in Items"`)

	_, ok = Suggest(errors.New("plain"))
	assert.False(t, ok)

	_, ok = Suggest(NewIOError("write", nil))
	assert.False(t, ok)
}
