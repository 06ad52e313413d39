// Package scanner discovers weft template files, compiles them, and records
// the results in a registry.
//
// Templates are named by their slash-separated path relative to the scan
// root. A CRC32 content hash detects changes; unchanged content is served
// from the template cache instead of being recompiled.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/weft/internal/cache"
	"github.com/conneroisu/weft/internal/registry"
	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/logging"
	"github.com/conneroisu/weft/pkg/plan"
	"github.com/conneroisu/weft/pkg/weft"
)

// Options controls which files are scanned and how they compile.
type Options struct {
	// Root is the directory template names are relative to.
	Root string
	// Extensions lists accepted file extensions, including the dot.
	Extensions []string
	// ExcludePatterns are filepath.Match patterns tested against each
	// path element.
	ExcludePatterns []string
	// Selector restricts every template to the children of one element.
	Selector string
	Strict   bool
	// Workers bounds concurrent compilation. Zero means min(NumCPU, 8).
	Workers int
	Cache   *cache.TemplateCache
	Logger  logging.Logger
}

// Result summarizes a scan.
type Result struct {
	Scanned  int
	Compiled int
	Cached   int
	Failed   int
}

// TemplateScanner walks directories for templates.
type TemplateScanner struct {
	registry *registry.TemplateRegistry
	opts     Options
	logger   logging.Logger

	mu     sync.Mutex
	hashes map[string]string
}

// New creates a scanner that registers into reg.
func New(reg *registry.TemplateRegistry, opts Options) *TemplateScanner {
	if opts.Root == "" {
		opts.Root = "."
	}
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".html", ".htm"}
	}
	if opts.Workers <= 0 {
		opts.Workers = min(runtime.NumCPU(), 8)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	return &TemplateScanner{
		registry: reg,
		opts:     opts,
		logger:   opts.Logger.WithComponent("scanner"),
		hashes:   make(map[string]string),
	}
}

// Registry returns the registry the scanner writes to.
func (s *TemplateScanner) Registry() *registry.TemplateRegistry { return s.registry }

// Root returns the scan root.
func (s *TemplateScanner) Root() string { return s.opts.Root }

// Extensions returns the accepted file extensions.
func (s *TemplateScanner) Extensions() []string { return s.opts.Extensions }

// ScanPaths scans every path, each relative to the root unless absolute.
// Paths are template files or directories walked recursively.
// Compile failures are recorded in the registry and counted, not returned;
// only unreadable directories produce an error.
func (s *TemplateScanner) ScanPaths(ctx context.Context, paths []string) (Result, error) {
	var files []string
	seen := make(map[string]bool)
	for _, p := range paths {
		found, err := s.collect(s.resolve(p))
		if err != nil {
			return Result{}, err
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	return s.scanFiles(ctx, files)
}

// ScanDirectory scans dir recursively.
func (s *TemplateScanner) ScanDirectory(ctx context.Context, dir string) (Result, error) {
	return s.ScanPaths(ctx, []string{dir})
}

func (s *TemplateScanner) scanFiles(ctx context.Context, files []string) (Result, error) {
	var (
		mu     sync.Mutex
		result Result
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, cached, err := s.scanFile(file)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			result.Scanned++
			switch {
			case !entry.OK():
				result.Failed++
			case cached:
				result.Cached++
			default:
				result.Compiled++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	s.logger.Debug(ctx, "Scan complete",
		"scanned", result.Scanned,
		"compiled", result.Compiled,
		"cached", result.Cached,
		"failed", result.Failed)

	return result, nil
}

// ScanFile compiles one file and registers it. A compile failure is
// registered as a failed entry and returned as the error.
func (s *TemplateScanner) ScanFile(path string) (*registry.Entry, error) {
	entry, _, err := s.scanFile(path)
	if err != nil {
		return nil, err
	}

	return entry, entry.Err
}

func (s *TemplateScanner) scanFile(path string) (*registry.Entry, bool, error) {
	path = s.resolve(path)
	name, err := s.Name(path)
	if err != nil {
		return nil, false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, false, weferrors.NewTemplateNotFound(path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, weferrors.NewIOError("reading "+path, err)
	}

	hash := fmt.Sprintf("%08x", crc32.ChecksumIEEE(content))
	entry := &registry.Entry{
		Name:    name,
		Path:    path,
		Hash:    hash,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	s.mu.Lock()
	unchanged := s.hashes[path] == hash
	s.hashes[path] = hash
	s.mu.Unlock()
	if unchanged {
		if prev, ok := s.registry.Get(name); ok && prev.Hash == hash {
			return prev, true, nil
		}
	}

	key := s.cacheKey(hash)
	if s.opts.Cache != nil {
		if t, ok := s.opts.Cache.Get(key); ok {
			entry.Template = weft.FromPlan(name, t.Plan())
			s.registry.Register(entry)
			return entry, true, nil
		}
	}

	t, err := s.compile(name, content)
	if err != nil {
		entry.Err = err
		s.logger.Warn(context.Background(), err, "Template failed to compile", "template", name)
	} else {
		entry.Template = t
		if s.opts.Cache != nil {
			s.opts.Cache.Set(key, t, int64(len(content)))
		}
	}
	s.registry.Register(entry)

	return entry, false, nil
}

// RemoveFile drops the template at path from the registry.
func (s *TemplateScanner) RemoveFile(path string) {
	path = s.resolve(path)

	s.mu.Lock()
	delete(s.hashes, path)
	s.mu.Unlock()

	if name, err := s.Name(path); err == nil {
		s.registry.Remove(name)
	}
}

// Name returns the registry name for path.
func (s *TemplateScanner) Name(path string) (string, error) {
	rel, err := filepath.Rel(s.opts.Root, s.resolve(path))
	if err != nil {
		return "", weferrors.NewConfigError(weferrors.ErrCodeInvalidSource,
			fmt.Sprintf("%s is not under %s", path, s.opts.Root), err)
	}

	return filepath.ToSlash(rel), nil
}

// Matches reports whether path looks like a template the scanner accepts.
func (s *TemplateScanner) Matches(path string) bool {
	if s.excluded(path) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.opts.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}

	return false
}

func (s *TemplateScanner) collect(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, weferrors.NewTemplateNotFound(dir, err)
	}
	if !info.IsDir() {
		if s.Matches(dir) {
			return []string{dir}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && s.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, weferrors.NewIOError("walking "+dir, err)
	}

	return files, nil
}

// excluded tests the elements of path below the root.
func (s *TemplateScanner) excluded(path string) bool {
	if rel, err := filepath.Rel(s.opts.Root, s.resolve(path)); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		for _, pattern := range s.opts.ExcludePatterns {
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}

	return false
}

func (s *TemplateScanner) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(s.opts.Root, path)
}

// compile builds the template from the bytes that were hashed, so a cached
// plan always matches its key.
func (s *TemplateScanner) compile(name string, content []byte) (*weft.Template, error) {
	if len(content) == 0 {
		return weft.FromPlan(name, &plan.Plan{}), nil
	}

	t, err := weft.Parse(string(content), s.compileOptions(name)...)
	var we *weferrors.WeftError
	if errors.As(err, &we) && we.FilePath == "" {
		we.FilePath = name
	}

	return t, err
}

func (s *TemplateScanner) compileOptions(name string) []weft.Option {
	opts := []weft.Option{
		weft.WithName(name),
		weft.WithLogger(s.opts.Logger),
	}
	if s.opts.Selector != "" {
		opts = append(opts, weft.WithSelector(s.opts.Selector))
	}
	if s.opts.Strict {
		opts = append(opts, weft.WithStrictDirectives())
	}

	return opts
}

// cacheKey includes the compile settings, since the same content compiles
// differently under another selector or strictness.
func (s *TemplateScanner) cacheKey(hash string) string {
	return fmt.Sprintf("%s|%s|%t", hash, s.opts.Selector, s.opts.Strict)
}
