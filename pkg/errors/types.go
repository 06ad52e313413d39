// Package errors defines the structured error type shared by the weft
// compiler, loader, and renderer.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeTemplateNotFound  ErrorType = "template_not_found"
	ErrorTypeSelectorAmbiguity ErrorType = "selector_ambiguity"
	ErrorTypeDirectiveParse    ErrorType = "directive_parse"
	ErrorTypeCompile           ErrorType = "compile"
	ErrorTypeIO                ErrorType = "io"
	ErrorTypeEvaluation        ErrorType = "evaluation"
	ErrorTypeConfig            ErrorType = "config"
)

// Common error codes.
const (
	ErrCodeTemplateNotFound = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeNoMatch          = "ERR_SELECTOR_NO_MATCH"
	ErrCodeManyMatches      = "ERR_SELECTOR_MANY_MATCHES"
	ErrCodeBadSelector      = "ERR_SELECTOR_INVALID"
	ErrCodeBadExpression    = "ERR_EXPRESSION_INVALID"
	ErrCodeBadIterator      = "ERR_ITERATOR_INVALID"
	ErrCodeDuplicate        = "ERR_DIRECTIVE_DUPLICATE"
	ErrCodeConflict         = "ERR_DIRECTIVE_CONFLICT"
	ErrCodeCompileFailed    = "ERR_COMPILE_FAILED"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeUndefinedName    = "ERR_UNDEFINED_NAME"
	ErrCodeTypeMismatch     = "ERR_TYPE_MISMATCH"
	ErrCodeRuntime          = "ERR_RUNTIME"
	ErrCodeNotRenderable    = "ERR_NOT_RENDERABLE"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInvalidSource    = "ERR_SOURCE_INVALID"
)

// WeftError is a structured error type with context.
type WeftError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Element   string
	Attribute string
	FilePath  string
}

// Error implements the error interface.
func (e *WeftError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	if e.Element != "" {
		location := "element:" + e.Element
		if e.Attribute != "" {
			location += "[" + e.Attribute + "]"
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *WeftError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *WeftError) Is(target error) bool {
	var t *WeftError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *WeftError) WithContext(key string, value interface{}) *WeftError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithElement records the element path and, optionally, the attribute the
// error occurred on.
func (e *WeftError) WithElement(element, attribute string) *WeftError {
	e.Element = element
	e.Attribute = attribute

	return e
}

// WithFile adds the template file path.
func (e *WeftError) WithFile(path string) *WeftError {
	e.FilePath = path

	return e
}

// NewTemplateNotFound creates an error for an unresolved template source.
func NewTemplateNotFound(path string, cause error) *WeftError {
	return &WeftError{
		Type:     ErrorTypeTemplateNotFound,
		Code:     ErrCodeTemplateNotFound,
		Message:  "template not found",
		Cause:    cause,
		FilePath: path,
	}
}

// NewSelectorAmbiguity creates an error for a selector that did not match
// exactly one element.
func NewSelectorAmbiguity(selector string, matches int) *WeftError {
	code := ErrCodeManyMatches
	if matches == 0 {
		code = ErrCodeNoMatch
	}

	return &WeftError{
		Type:    ErrorTypeSelectorAmbiguity,
		Code:    code,
		Message: fmt.Sprintf("selector %q matched %d elements, want exactly 1", selector, matches),
		Context: map[string]interface{}{"selector": selector, "matches": matches},
	}
}

// NewDirectiveParseError creates an error for a malformed directive or
// placeholder expression.
func NewDirectiveParseError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:    ErrorTypeDirectiveParse,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewCompileError wraps a failure with the element it occurred on.
func NewCompileError(element, attribute string, cause error) *WeftError {
	return &WeftError{
		Type:      ErrorTypeCompile,
		Code:      ErrCodeCompileFailed,
		Message:   "compile failed",
		Cause:     cause,
		Element:   element,
		Attribute: attribute,
	}
}

// NewIOError creates an I/O error.
func NewIOError(message string, cause error) *WeftError {
	return &WeftError{
		Type:    ErrorTypeIO,
		Code:    ErrCodeWriteFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewEvaluationError creates an error for an expression that failed at render
// time.
func NewEvaluationError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:    ErrorTypeEvaluation,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func hasType(err error, typ ErrorType) bool {
	for err != nil {
		var we *WeftError
		if !errors.As(err, &we) {
			return false
		}
		if we.Type == typ {
			return true
		}
		err = we.Cause
	}

	return false
}

// IsTemplateNotFound reports whether err, or any error it wraps, is a
// TemplateNotFound error.
func IsTemplateNotFound(err error) bool { return hasType(err, ErrorTypeTemplateNotFound) }

// IsSelectorAmbiguity reports whether err wraps a SelectorAmbiguity error.
func IsSelectorAmbiguity(err error) bool { return hasType(err, ErrorTypeSelectorAmbiguity) }

// IsDirectiveParse reports whether err wraps a DirectiveParseError.
func IsDirectiveParse(err error) bool { return hasType(err, ErrorTypeDirectiveParse) }

// IsCompile reports whether err wraps a CompileError.
func IsCompile(err error) bool { return hasType(err, ErrorTypeCompile) }

// IsIO reports whether err wraps an IoError.
func IsIO(err error) bool { return hasType(err, ErrorTypeIO) }

// IsEvaluation reports whether err wraps an EvaluationError.
func IsEvaluation(err error) bool { return hasType(err, ErrorTypeEvaluation) }

// IsConfig reports whether err wraps a configuration error.
func IsConfig(err error) bool { return hasType(err, ErrorTypeConfig) }

// TypeOf returns the type of the outermost WeftError in err's chain, or the
// empty string.
func TypeOf(err error) ErrorType {
	var we *WeftError
	if errors.As(err, &we) {
		return we.Type
	}

	return ""
}
