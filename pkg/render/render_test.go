package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	weferrors "github.com/conneroisu/weft/pkg/errors"
)

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("disk full")
	}
	f.after--
	return len(p), nil
}

type celsius float64

type point struct{ X, Y int }

func (p point) String() string { return "(" + strings.Repeat("*", p.X) + ")" }

func TestWriterTarget(t *testing.T) {
	var buf bytes.Buffer
	target := NewWriterTarget(&buf)

	require.NoError(t, target.StartElement("a", []Attr{{Name: "href", Value: "/x?a=1&b=2"}, {Name: "title", Value: `say "hi"`}}))
	require.NoError(t, target.Text("1 < 2 & 3 > 2"))
	require.NoError(t, target.EndElement("a"))

	assert.Equal(t, `<a href="/x?a=1&amp;b=2" title="say &#34;hi&#34;">1 &lt; 2 &amp; 3 &gt; 2</a>`, buf.String())
}

func TestWriterTargetIOError(t *testing.T) {
	target := NewWriterTarget(&failingWriter{after: 2})

	require.NoError(t, target.StartElement("p", nil))
	err := target.Text("boom")
	require.Error(t, err)
	assert.True(t, weferrors.IsIO(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestVoidElements(t *testing.T) {
	b := NewBufferTarget()
	require.NoError(t, b.StartElement("br", nil))
	require.NoError(t, b.EndElement("br"))
	require.NoError(t, b.StartElement("input", []Attr{{Name: "disabled", Value: ""}}))
	require.NoError(t, b.EndElement("input"))

	assert.Equal(t, `<br><input disabled="">`, b.String())
	assert.True(t, IsVoid("img"))
	assert.False(t, IsVoid("div"))
	assert.False(t, IsVoid("my-widget"))
}

func TestBufferTargetReuse(t *testing.T) {
	b := NewBufferTarget()
	require.NoError(t, b.Text(strings.Repeat("x", 2048)))
	capacity := b.Cap()

	b.Reset()
	assert.Equal(t, 0, b.Len())
	require.NoError(t, b.Text("short"))
	assert.Equal(t, "short", b.String())
	assert.Equal(t, capacity, b.Cap())

	var out bytes.Buffer
	n, err := b.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "short", b.String(), "WriteTo does not consume")
}

func TestEscapingNeverLeaksMarkup(t *testing.T) {
	b := NewBufferTarget()
	require.NoError(t, b.Text("<script>alert(1)</script>"))
	assert.NotContains(t, b.String(), "<script")

	b.Reset()
	require.NoError(t, b.StartElement("div", []Attr{{Name: "class", Value: `x" onclick="evil()`}}))
	assert.Equal(t, `<div class="x&#34; onclick=&#34;evil()">`, b.String())
}

func TestValue(t *testing.T) {
	name := "Ann"
	var nilPtr *string

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "<b>", "&lt;b&gt;"},
		{"bytes", []byte("a&b"), "a&amp;b"},
		{"int", 42, "42"},
		{"uint", uint8(7), "7"},
		{"float", 2.5, "2.5"},
		{"named float", celsius(21.5), "21.5"},
		{"bool", true, "true"},
		{"stringer", point{X: 2}, "(**)"},
		{"pointer", &name, "Ann"},
		{"nil pointer", nilPtr, ""},
		{"text", Text("<i>"), "&lt;i&gt;"},
		{"some", Some("yes"), "yes"},
		{"none", None[string](), ""},
		{"nodes", Nodes{Text("a"), nil, Some(1), Element("em", nil, Text("b"))}, "a1<em>b</em>"},
		{"renderable slice", []Renderable{Text("x"), Text("y")}, "xy"},
		{"func", Func(func(t Target) error { return t.Text("fn") }), "fn"},
		{"nil func", Func(nil), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBufferTarget()
			require.NoError(t, Value(tt.value, b))
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestValueRejectsUnknown(t *testing.T) {
	err := Value(struct{ A int }{1}, NewBufferTarget())
	require.Error(t, err)
	assert.True(t, weferrors.IsEvaluation(err))

	err = Value(map[string]int{}, NewBufferTarget())
	assert.True(t, weferrors.IsEvaluation(err))
}

func TestStringify(t *testing.T) {
	name := "Ann"

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, ""},
		{"string keeps markup as text", `<b class="x">`, `<b class="x">`},
		{"int", -3, "-3"},
		{"bool", false, "false"},
		{"pointer", &name, "Ann"},
		{"stringer", point{X: 1}, "(*)"},
		{"text", Text("t"), "t"},
		{"some", Some(5), "5"},
		{"none", None[int](), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Stringify(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringifyRejectsMarkup(t *testing.T) {
	for name, v := range map[string]any{
		"func":    Func(func(Target) error { return nil }),
		"nodes":   Nodes{Text("x")},
		"element": Element("b", nil),
		"struct":  struct{}{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Stringify(v)
			require.Error(t, err)
			assert.True(t, weferrors.IsEvaluation(err))
		})
	}
}

func TestToStringAndWriter(t *testing.T) {
	r := Element("p", []Attr{{Name: "id", Value: "greeting"}}, Text("Hello"))

	s, err := ToString(r)
	require.NoError(t, err)
	assert.Equal(t, `<p id="greeting">Hello</p>`, s)

	var buf bytes.Buffer
	require.NoError(t, ToWriter(r, &buf))
	assert.Equal(t, s, buf.String())

	_, err = ToString(Func(func(Target) error { return errors.New("nope") }))
	assert.EqualError(t, err, "nope")
}

func TestBufferPool(t *testing.T) {
	b := GetBuffer()
	require.NoError(t, b.Text("used"))
	PutBuffer(b)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len())
	PutBuffer(again)

	big := NewBufferTarget()
	require.NoError(t, big.Text(strings.Repeat("x", maxPooledCap+1)))
	assert.NotPanics(t, func() { PutBuffer(big) })
	assert.NotPanics(t, func() { PutBuffer(nil) })
}
