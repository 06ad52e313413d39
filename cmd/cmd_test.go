package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	weferrors "github.com/conneroisu/weft/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// project creates a template tree and makes it the working directory.
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "hello.html", `<p>Hello {{ Name }}!</p>`)
	writeFile(t, dir, "hello.yaml", "Name: World\n")
	writeFile(t, dir, "list.html", `<ul><li weft-for="item in Items">{{ item }}</li></ul>`)
	t.Chdir(dir)

	return dir
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	return stdout.String(), stderr.String(), err
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := execute(t, context.Background(), args...)

	return out, err
}

func TestRender(t *testing.T) {
	dir := project(t)
	writeFile(t, dir, "fixtures/list.json", `{"Items": ["a", "b"]}`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"sibling data", []string{"render", "hello.html"}, "<p>Hello World!</p>\n"},
		{"props", []string{"render", "hello.html", "--props", `{"Name":"<Ann>"}`}, "<p>Hello &lt;Ann&gt;!</p>\n"},
		{"props file", []string{"render", "hello.html", "--props", "@" + writeFile(t, dir, "over.yaml", "Name: File\n")}, "<p>Hello File!</p>\n"},
		{"data file", []string{"render", "list.html", "--data", "fixtures/list.json"}, "<ul><li>a</li><li>b</li></ul>\n"},
		{"mock data", []string{"render", "list.html"}, "<ul><li>Item 1</li><li>Item 2</li><li>Item 3</li></ul>\n"},
		{"no mock", []string{"render", "list.html", "--mock=false", "--props", "Items: []"}, "<ul></ul>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderSelectorAndOutput(t *testing.T) {
	dir := project(t)
	writeFile(t, dir, "page.html", `<html><body><main><b>{{ self }}</b></main></body></html>`)
	target := filepath.Join(dir, "out.html")

	out, err := run(t, "render", "page.html", "--selector", "main", "--mock=false", "--props", `"x"`, "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", string(content))
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.html")
	require.NoError(t, writeOutput(target, "<p>x</p>"))
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", string(content))

	err = writeOutput(filepath.Join(dir, "missing", "out.html"), "x")
	assert.True(t, weferrors.IsIO(err))

	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}
	err = writeOutput("/dev/full", "x")
	assert.True(t, weferrors.IsIO(err))
}

func TestRenderMissingTemplate(t *testing.T) {
	project(t)
	_, err := run(t, "render", "missing.html")
	require.Error(t, err)
	assert.True(t, weferrors.IsTemplateNotFound(err))
}

func TestRenderStrict(t *testing.T) {
	dir := project(t)
	writeFile(t, dir, "dup.html", `<p weft-replace="a" weft-content="b"></p>`)

	_, err := run(t, "render", "dup.html", "--strict")
	require.Error(t, err)
	assert.True(t, weferrors.IsCompile(err))
}

func TestCheck(t *testing.T) {
	project(t)

	out, err := run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   hello.html")
	assert.Contains(t, out, "2 templates, 0 failed")

	out, err = run(t, "check", "--plan")
	require.NoError(t, err)
	assert.Contains(t, out, "element p")
	assert.Contains(t, out, "for item in Items")
}

func TestCheckFailure(t *testing.T) {
	dir := project(t)
	writeFile(t, dir, "broken.html", `<p weft-if="(">x</p>`)

	out, err := run(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 templates failed")
	assert.Contains(t, out, "FAIL broken.html")

	out, err = run(t, "check", "-f", "json")
	require.Error(t, err)
	var results []checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.Equal(t, "broken.html", results[0].Name)
	assert.False(t, results[0].OK)
}

func TestList(t *testing.T) {
	project(t)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "hello.html")

	out, err = run(t, "list", "-f", "json")
	require.NoError(t, err)
	var items []listItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, []string{"Name"}, items[0].Names)
	assert.Equal(t, []string{"Items"}, items[1].Names)

	out, err = run(t, "list", "--format", "yaml")
	require.NoError(t, err)
	var fromYAML []listItem
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Len(t, fromYAML, 2)
}

func TestListEmpty(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No templates found.")
}

func TestFormatValidation(t *testing.T) {
	project(t)

	_, err := run(t, "list", "-f", "jsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, err = run(t, "list", "-f", "tab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "table"`)
}

func TestRootFlagAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "site/a.html", `<i>a</i>`)
	writeFile(t, dir, "site/b.html", `<i>b</i>`)
	cfgPath := writeFile(t, dir, "weft.yml", "templates:\n  root_dir: "+filepath.Join(dir, "site")+"\n")
	t.Chdir(dir)

	out, err := run(t, "--config", cfgPath, "list", "-f", "json")
	require.NoError(t, err)
	var items []listItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Len(t, items, 2)

	out, err = run(t, "--root", "site", "render", "a.html")
	require.NoError(t, err)
	assert.Equal(t, "<i>a</i>\n", out)

	_, err = run(t, "--config", filepath.Join(dir, "missing.yml"), "list")
	require.Error(t, err)
	assert.True(t, weferrors.IsConfig(err))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version", "-f", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	out, err = run(t, "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of a
// running command and reads of the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch(t *testing.T) {
	dir := project(t)
	viper.Reset()
	t.Cleanup(viper.Reset)

	logs := &syncBuffer{}
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(logs)
	root.SetArgs([]string{"watch"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Watching for changes")
	}, 5*time.Second, 20*time.Millisecond)

	writeFile(t, dir, "hello.html", `<p>Hi {{ Name }}</p>`)
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Template compiled")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
