package errors

import "errors"

// Suggestion is a hint for fixing an error.
type Suggestion struct {
	Title   string
	Example string
}

var suggestions = map[string]Suggestion{
	ErrCodeTemplateNotFound: {
		Title:   "Check the path is relative to the template root directory",
		Example: "weft --root views render index.html",
	},
	ErrCodeNoMatch: {
		Title:   "The selector matched no element; check it against the markup",
		Example: `weft render page.html --selector main`,
	},
	ErrCodeManyMatches: {
		Title:   "The selector must match exactly one element; make it more specific",
		Example: `#content instead of div`,
	},
	ErrCodeBadSelector: {
		Title:   "Use a CSS selector",
		Example: `main > section.intro`,
	},
	ErrCodeBadExpression: {
		Title:   "Expressions allow names, member access, literals, operators and display/titlecase/len",
		Example: `{{ user.Name }}  {{ len(Items) > 0 }}  {{ titlecase(title) }}`,
	},
	ErrCodeBadIterator: {
		Title:   "weft-for takes a binding name and an iterable",
		Example: `<li weft-for="item in Items">{{ item }}</li>`,
	},
	ErrCodeDuplicate: {
		Title:   "Give each directive once per element",
		Example: `<p weft-if="Shown">...</p>`,
	},
	ErrCodeConflict: {
		Title:   "weft-replace drops the element; use weft-content to keep it",
		Example: `<p weft-content="Body"></p>`,
	},
	ErrCodeUndefinedName: {
		Title:   "Add the name to the template data, or read it through self",
		Example: `{{ self.Name }}`,
	},
	ErrCodeTypeMismatch: {
		Title:   "weft-if needs a bool and weft-for an ordered sequence",
		Example: `<p weft-if="len(Items) > 0">`,
	},
	ErrCodeNotRenderable: {
		Title:   "Render a field of the value, or pass a string, number or sub-template",
		Example: `{{ user.Name }}`,
	},
	ErrCodeConfigInvalid: {
		Title:   "Check .weft.yml and WEFT_* environment variables",
		Example: "templates:\n  root_dir: views\n  scan_paths: [\".\"]",
	},
}

// Suggest returns a fixing hint for err, taken from the innermost error
// in its chain that has one.
func Suggest(err error) (Suggestion, bool) {
	var found Suggestion
	ok := false
	for err != nil {
		var we *WeftError
		if !errors.As(err, &we) {
			break
		}
		if s, has := suggestions[we.Code]; has {
			found, ok = s, true
		}
		err = we.Cause
	}

	return found, ok
}
