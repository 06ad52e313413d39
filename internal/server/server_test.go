package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/watcher"
	hub "github.com/conneroisu/weft/internal/websocket"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("templates.root_dir", dir)
	v.Set("server.host", "127.0.0.1")
	v.Set("server.port", 0)
	v.Set("watch.debounce", "20ms")
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)

	return cfg
}

func newServer(t *testing.T) (*PreviewServer, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "hello.html", `<p>Hello {{ Name }}!</p>`)
	writeFile(t, dir, "hello.yaml", "Name: World\n")
	writeFile(t, dir, "cards/user_card.html", `<h2 class="card">{{ title }}</h2>`)
	writeFile(t, dir, "broken.html", `<p weft-for="nope">x</p>`)

	s, err := New(testConfig(t, dir), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	_, err = s.Scan(context.Background())
	require.NoError(t, err)

	return s, dir
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	s, _ := newServer(t)
	rec := get(t, s.Handler(), "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, `<a href="/render/hello.html">Hello</a>`)
	assert.Contains(t, body, `<a href="/render/cards/user_card.html">User Card</a>`)
	assert.Contains(t, body, `<li class="failed">`)
	assert.Contains(t, body, "/ws")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestIndexEmpty(t *testing.T) {
	s, err := New(testConfig(t, t.TempDir()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	rec := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No templates found.")
}

func TestRender(t *testing.T) {
	s, _ := newServer(t)
	h := s.Handler()

	tests := []struct {
		name   string
		target string
		status int
		want   string
	}{
		{"sibling data", "/render/hello.html", http.StatusOK, "<p>Hello World!</p>"},
		{"props override", "/render/hello.html?props=" + url.QueryEscape(`{"Name":"<Ann>"}`), http.StatusOK, "<p>Hello &lt;Ann&gt;!</p>"},
		{"mock data", "/render/cards/user_card.html", http.StatusOK, `<h2 class="card">`},
		{"failed template", "/render/broken.html", http.StatusInternalServerError, "<pre>"},
		{"unknown template", "/render/missing.html", http.StatusNotFound, ""},
		{"bad props", "/render/hello.html?props=" + url.QueryEscape("{"), http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRenderShell(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s.Handler(), "/render/hello.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<html data-weft-template="hello.html">`)
	assert.Contains(t, rec.Body.String(), "<script>")

	rec = get(t, s.Handler(), "/render/hello.html?raw=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>Hello World!</p>", rec.Body.String())
}

func TestAPITemplates(t *testing.T) {
	s, _ := newServer(t)
	rec := get(t, s.Handler(), "/api/templates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var infos []templateInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 3)

	byName := map[string]templateInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, []string{"Name"}, byName["hello.html"].Names)
	assert.False(t, byName["broken.html"].OK)
	assert.NotEmpty(t, byName["broken.html"].Error)
}

func TestHealthAndCache(t *testing.T) {
	s, _ := newServer(t)

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 3, health["templates"])
	assert.EqualValues(t, 1, health["failed"])

	rec = get(t, s.Handler(), "/api/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries": 2`)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func dialHub(t *testing.T, s *PreviewServer) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) hub.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, b, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg hub.Message
	require.NoError(t, json.Unmarshal(b, &msg))

	return msg
}

func TestHandleChanges(t *testing.T) {
	s, dir := newServer(t)
	conn := dialHub(t, s)
	ctx := context.Background()

	path := writeFile(t, dir, "hello.html", `<p>Hi {{ Name }}</p>`)
	require.NoError(t, s.HandleChanges(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeModified, Path: path}}))
	msg := readMessage(t, conn)
	assert.Equal(t, hub.TypeReload, msg.Type)
	assert.Equal(t, "hello.html", msg.Target)
	assert.Contains(t, get(t, s.Handler(), "/render/hello.html?raw=1").Body.String(), "<p>Hi World</p>")

	path = writeFile(t, dir, "hello.html", `<p weft-if="(">x</p>`)
	require.NoError(t, s.HandleChanges(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeModified, Path: path}}))
	msg = readMessage(t, conn)
	assert.Equal(t, hub.TypeError, msg.Type)
	assert.NotEmpty(t, msg.Content)

	dataPath := filepath.Join(dir, "hello.yaml")
	require.NoError(t, s.HandleChanges(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeModified, Path: dataPath}}))
	msg = readMessage(t, conn)
	assert.Equal(t, hub.TypeReload, msg.Type)
	assert.Equal(t, "hello.html", msg.Target)

	require.NoError(t, os.Remove(path))
	require.NoError(t, s.HandleChanges(ctx, []watcher.ChangeEvent{{Type: watcher.EventTypeDeleted, Path: path}}))
	msg = readMessage(t, conn)
	assert.Equal(t, hub.TypeRemoved, msg.Type)
	_, ok := s.Registry().Get("hello.html")
	assert.False(t, ok)
}

func TestHandleChangesIgnoresOtherFiles(t *testing.T) {
	s, dir := newServer(t)
	path := writeFile(t, dir, "notes.txt", "x")

	require.NoError(t, s.HandleChanges(context.Background(), []watcher.ChangeEvent{{Type: watcher.EventTypeCreated, Path: path}}))
	assert.Equal(t, 3, s.Registry().Count())
}

func TestStartAndShutdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.html", `<p>{{ self }}</p>`)

	s, err := New(testConfig(t, dir), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestDisplayTitle(t *testing.T) {
	tests := map[string]string{
		"hello.html":           "Hello",
		"cards/user_card.html": "User Card",
		"nav-bar.htm":          "Nav Bar",
	}
	for in, want := range tests {
		assert.Equal(t, want, displayTitle(in), in)
	}
}
