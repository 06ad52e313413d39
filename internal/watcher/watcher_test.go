package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(time.Hour)

	d.Add(ChangeEvent{Type: EventTypeModified, Path: "b.html"})
	d.Add(ChangeEvent{Type: EventTypeCreated, Path: "a.html"})
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "a.html"})
	d.Add(ChangeEvent{Type: EventTypeDeleted, Path: "b.html"})
	d.Flush()

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 2)
		assert.Equal(t, "a.html", batch[0].Path)
		assert.Equal(t, EventTypeCreated, batch[0].Type)
		assert.Equal(t, "b.html", batch[1].Path)
		assert.Equal(t, EventTypeDeleted, batch[1].Type)
	default:
		t.Fatal("expected a batch")
	}

	d.Flush()
	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch %v", batch)
	default:
	}
	d.stop()
}

func TestDebouncerTimer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Add(ChangeEvent{Type: EventTypeModified, Path: "x.html"})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, "x.html", batch[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced batch never arrived")
	}
}

func TestChangeEventGone(t *testing.T) {
	assert.True(t, ChangeEvent{Type: EventTypeDeleted}.Gone())
	assert.True(t, ChangeEvent{Type: EventTypeRenamed}.Gone())
	assert.False(t, ChangeEvent{Type: EventTypeModified}.Gone())
}

func TestFilters(t *testing.T) {
	tmpl := TemplateFilter(".html", ".htm")

	tests := []struct {
		name   string
		filter FileFilter
		path   string
		want   bool
	}{
		{"html", tmpl, "views/a.html", true},
		{"upper", tmpl, "views/A.HTM", true},
		{"go file", tmpl, "main.go", false},
		{"hidden file", NoHiddenFilter, "views/.a.html", false},
		{"hidden dir", NoHiddenFilter, ".git/config", false},
		{"dot path", NoHiddenFilter, "./views/a.html", true},
		{"parent path", NoHiddenFilter, "../views/a.html", true},
		{"vendor", NoVendorFilter, "vendor/x/a.html", false},
		{"node modules", NoVendorFilter, "web/node_modules/a.html", false},
		{"plain", NoVendorFilter, "web/a.html", true},
		{"exclude match", ExcludeFilter("*.bak"), "a.html.bak", false},
		{"exclude dir", ExcludeFilter("drafts"), "site/drafts/a.html", false},
		{"exclude miss", ExcludeFilter("drafts"), "site/a.html", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter(tt.path))
		})
	}
}

func TestFileWatcherDeliversChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "skip"), 0o755))

	fw, err := New(30*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(TemplateFilter(".html"))
	fw.AddDirFilter(ExcludeFilter("skip"))
	require.NoError(t, fw.AddRecursive(dir))
	assert.Equal(t, []string{dir}, fw.WatchList())

	got := make(chan []ChangeEvent, 10)
	fw.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		got <- events
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("<p></p>"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-got:
			for _, ev := range batch {
				assert.Equal(t, ".html", filepath.Ext(ev.Path))
			}
			if len(batch) > 0 && batch[len(batch)-1].Path == filepath.Join(dir, "page.html") {
				return
			}
		case <-deadline:
			t.Fatal("no change event for page.html")
		}
	}
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	fw, err := New(time.Millisecond, nil)
	require.NoError(t, err)

	require.NoError(t, fw.Start(context.Background()))
	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}

func TestRelative(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "home", ".user", "site")
	f := Relative(root, NoHiddenFilter)

	assert.True(t, f(filepath.Join(root, "pages", "a.html")))
	assert.False(t, f(filepath.Join(root, ".cache", "a.html")))
	assert.False(t, f(filepath.Join(string(filepath.Separator), "elsewhere", ".x")))
}

func TestForTemplates(t *testing.T) {
	root := t.TempDir()
	fw, err := ForTemplates(root, []string{".html", ".yaml"}, []string{"*.bak", "skip"}, 10*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })

	tests := []struct {
		path string
		want bool
	}{
		{"page.html", true},
		{"page.yaml", true},
		{"page.txt", false},
		{"page.html.bak", false},
		{".hidden/page.html", false},
		{"skip/page.html", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fw.accepts(filepath.Join(root, filepath.FromSlash(tt.path))), tt.path)
	}

	assert.True(t, fw.acceptsDir(filepath.Join(root, "pages")))
	assert.False(t, fw.acceptsDir(filepath.Join(root, "node_modules")))
	assert.False(t, fw.acceptsDir(filepath.Join(root, ".git")))
}
