package render

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EscapeText escapes s for an HTML text context.
func EscapeText(s string) string {
	return html.EscapeString(s)
}

// EscapeAttr escapes s for a double-quoted attribute value.
func EscapeAttr(s string) string {
	return html.EscapeString(s)
}

var voidElements = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Base:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Keygen: true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Param:  true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

// IsVoid reports whether name is an HTML void element, which has no end tag.
func IsVoid(name string) bool {
	return voidElements[atom.Lookup([]byte(name))]
}
