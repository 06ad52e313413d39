// Package mockdata generates placeholder data for previewing templates
// that have no data file, based on the names the template reads.
package mockdata

import (
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/conneroisu/weft/pkg/plan"
)

// Generator produces mock values. Values depend only on the name, so a
// template previews the same way on every reload.
type Generator struct {
	// ListLen is the length of generated lists.
	ListLen int
}

// NewGenerator creates a generator producing three-item lists.
func NewGenerator() *Generator {
	return &Generator{ListLen: 3}
}

// ForPlan returns a map with a mock value for every name p reads.
func (g *Generator) ForPlan(p *plan.Plan) map[string]any {
	data := make(map[string]any)
	for _, name := range plan.Names(p) {
		data[name] = g.Value(name)
	}

	return data
}

// Value returns a mock value suggested by name.
func (g *Generator) Value(name string) any {
	lower := strings.ToLower(name)

	switch {
	case hasPrefixAny(lower, "is", "has", "show", "can") ||
		containsAny(lower, "enabled", "active", "visible", "selected", "featured"):
		return pick(name, true, false)
	case isPlural(lower):
		return g.list(strings.TrimSuffix(name, "s"))
	case containsAny(lower, "email", "mail"):
		return fmt.Sprintf("%s@example.com", pick(name, usernames...))
	case containsAny(lower, "url", "link", "href", "src", "image", "avatar"):
		return fmt.Sprintf("https://example.com/%s/%d", strings.ToLower(pick(name, nouns...)), index(name, 1000))
	case containsAny(lower, "title", "heading", "header"):
		return pick(name, adjectives...) + " " + pick(name+"#", nouns...)
	case containsAny(lower, "description", "content", "text", "body", "message", "summary"):
		return pick(name, sentences...)
	case containsAny(lower, "date", "created", "updated", "modified"):
		return fmt.Sprintf("2026-%02d-%02d", index(name, 12)+1, index(name+"#", 28)+1)
	case containsAny(lower, "count", "number", "total", "age", "amount", "quantity"):
		return index(name, 100) + 1
	case containsAny(lower, "price", "cost"):
		return float64(index(name, 10000)) / 100
	case containsAny(lower, "id", "key", "uuid"):
		return fmt.Sprintf("%s-%04d", lower, index(name, 10000))
	case containsAny(lower, "color", "colour", "theme"):
		return pick(name, colors...)
	case containsAny(lower, "name", "author", "user"):
		return pick(name, firstNames...) + " " + pick(name+"#", lastNames...)
	}

	return "Sample " + name
}

func (g *Generator) list(item string) []any {
	n := g.ListLen
	if n <= 0 {
		n = 3
	}

	out := make([]any, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %d", item, i+1)
	}

	return out
}

func isPlural(s string) bool {
	if strings.HasSuffix(s, "ss") || strings.HasSuffix(s, "us") || strings.HasSuffix(s, "status") {
		return false
	}

	return strings.HasSuffix(s, "s") || containsAny(s, "list", "items")
}

func index(name string, n int) int {
	return int(crc32.ChecksumIEEE([]byte(name)) % uint32(n))
}

func pick[T any](name string, options ...T) T {
	return options[index(name, len(options))]
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

func hasPrefixAny(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) && len(s) > len(p) {
			return true
		}
	}

	return false
}

var (
	firstNames = []string{"Ada", "Grace", "Linus", "Barbara", "Ken", "Margaret"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Liskov", "Thompson", "Hamilton"}
	usernames  = []string{"ada", "grace", "linus", "barbara", "ken", "margaret"}
	adjectives = []string{"Quiet", "Bright", "Simple", "Bold", "Modern", "Classic"}
	nouns      = []string{"Garden", "Harbor", "Bridge", "Lantern", "Meadow", "Summit"}
	colors     = []string{"#007acc", "#28a745", "#dc3545", "#ffc107", "#6f42c1"}
	sentences  = []string{
		"A short paragraph of placeholder text.",
		"Everything rendered here comes from generated data.",
		"Add a data file next to the template to preview real content.",
	}
)
