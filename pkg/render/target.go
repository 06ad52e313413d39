// Package render defines the output side of weft: the Target sink that
// writes escaped HTML and the Renderable capability values implement to
// write themselves into one.
package render

import (
	"bytes"
	"io"

	weferrors "github.com/conneroisu/weft/pkg/errors"
)

// Attr is an attribute name and its already-evaluated plain-text value.
type Attr struct {
	Name  string
	Value string
}

// Target receives rendered output. Names are written verbatim and must come
// from trusted template structure; text and attribute values are escaped.
// A Target is not safe for concurrent use.
type Target interface {
	StartElement(name string, attrs []Attr) error
	Text(content string) error
	EndElement(name string) error
}

// WriterTarget streams output to an io.Writer. Write failures are returned
// as IO errors and leave the writer partially written.
type WriterTarget struct {
	w io.StringWriter
}

type stringWriter struct{ io.Writer }

func (s stringWriter) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// NewWriterTarget returns a Target that writes to w.
func NewWriterTarget(w io.Writer) *WriterTarget {
	sw, ok := w.(io.StringWriter)
	if !ok {
		sw = stringWriter{w}
	}

	return &WriterTarget{w: sw}
}

// StartElement writes the start tag with its attributes.
func (t *WriterTarget) StartElement(name string, attrs []Attr) error {
	return ioErr(writeStart(t.w, name, attrs))
}

// Text writes content escaped for a text context.
func (t *WriterTarget) Text(content string) error {
	_, err := t.w.WriteString(EscapeText(content))
	return ioErr(err)
}

// EndElement writes the end tag. Void elements have none.
func (t *WriterTarget) EndElement(name string) error {
	return ioErr(writeEnd(t.w, name))
}

func ioErr(err error) error {
	if err == nil {
		return nil
	}

	return weferrors.NewIOError("writing output", err)
}

// BufferTarget collects output in memory. Reset clears it while keeping the
// allocated capacity, so a single BufferTarget can serve many renders.
type BufferTarget struct {
	buf bytes.Buffer
}

// NewBufferTarget returns an empty BufferTarget.
func NewBufferTarget() *BufferTarget {
	return &BufferTarget{}
}

// StartElement writes the start tag with its attributes.
func (t *BufferTarget) StartElement(name string, attrs []Attr) error {
	return writeStart(&t.buf, name, attrs)
}

// Text writes content escaped for a text context.
func (t *BufferTarget) Text(content string) error {
	_, err := t.buf.WriteString(EscapeText(content))
	return err
}

// EndElement writes the end tag. Void elements have none.
func (t *BufferTarget) EndElement(name string) error {
	return writeEnd(&t.buf, name)
}

// Reset discards the output.
func (t *BufferTarget) Reset() { t.buf.Reset() }

// Bytes returns the output. The slice is valid until the next write or Reset.
func (t *BufferTarget) Bytes() []byte { return t.buf.Bytes() }

// String returns the output as a string.
func (t *BufferTarget) String() string { return t.buf.String() }

// Len returns the number of bytes written since the last Reset.
func (t *BufferTarget) Len() int { return t.buf.Len() }

// Cap returns the capacity of the underlying buffer.
func (t *BufferTarget) Cap() int { return t.buf.Cap() }

// WriteTo copies the output to w without consuming it.
func (t *BufferTarget) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(t.buf.Bytes())
	return int64(n), err
}

func writeStart(w io.StringWriter, name string, attrs []Attr) error {
	if _, err := w.WriteString("<" + name); err != nil {
		return err
	}
	for _, a := range attrs {
		if _, err := w.WriteString(" " + a.Name + `="` + EscapeAttr(a.Value) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString(">")

	return err
}

func writeEnd(w io.StringWriter, name string) error {
	if IsVoid(name) {
		return nil
	}
	_, err := w.WriteString("</" + name + ">")

	return err
}
