// Package server implements the live-reload preview server behind
// `weft serve`.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/weft/internal/cache"
	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/data"
	"github.com/conneroisu/weft/internal/mockdata"
	"github.com/conneroisu/weft/internal/registry"
	"github.com/conneroisu/weft/internal/scanner"
	"github.com/conneroisu/weft/internal/watcher"
	"github.com/conneroisu/weft/internal/websocket"
	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/logging"
	"github.com/conneroisu/weft/pkg/weft"
)

const (
	cacheSize       = 32 << 20
	shutdownTimeout = 5 * time.Second
)

// PreviewServer serves compiled templates and pushes reload messages to
// connected browsers when template files change.
type PreviewServer struct {
	cfg      *config.Config
	registry *registry.TemplateRegistry
	scanner  *scanner.TemplateScanner
	cache    *cache.TemplateCache
	hub      *websocket.Hub
	mock     *mockdata.Generator
	index    *weft.Template
	logger   logging.Logger

	mu         sync.Mutex
	httpServer *http.Server
	watcher    *watcher.FileWatcher
	addr       string
	ready      chan struct{}

	shutdownOnce sync.Once
}

// New creates a preview server for cfg.
func New(cfg *config.Config, logger logging.Logger) (*PreviewServer, error) {
	if cfg == nil {
		return nil, weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "server configuration is required", nil)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")

	index, err := weft.Parse(indexTemplate, weft.WithName("index"))
	if err != nil {
		return nil, fmt.Errorf("compiling index page: %w", err)
	}

	reg := registry.New()
	plans := cache.New(cacheSize, 0)
	sc := scanner.New(reg, scanner.Options{
		Root:            cfg.Templates.RootDir,
		Extensions:      cfg.Templates.Extensions,
		ExcludePatterns: cfg.Templates.ExcludePatterns,
		Selector:        cfg.Templates.Selector,
		Strict:          cfg.Templates.Strict,
		Cache:           plans,
		Logger:          logger,
	})

	return &PreviewServer{
		cfg:      cfg,
		registry: reg,
		scanner:  sc,
		cache:    plans,
		hub:      websocket.NewHub(logger),
		mock:     mockdata.NewGenerator(),
		index:    index,
		logger:   logger,
		ready:    make(chan struct{}),
	}, nil
}

// Registry returns the server's template registry.
func (s *PreviewServer) Registry() *registry.TemplateRegistry { return s.registry }

// Scan compiles every template under the configured scan paths.
func (s *PreviewServer) Scan(ctx context.Context) (scanner.Result, error) {
	op := logging.StartOperation(s.logger, "scan")
	res, err := s.scanner.ScanPaths(ctx, s.cfg.Templates.ScanPaths)
	if err != nil {
		op.EndWithError(ctx, err)
		return res, err
	}
	op.End(ctx)

	s.logger.Info(ctx, "Templates scanned",
		"scanned", res.Scanned,
		"compiled", res.Compiled,
		"cached", res.Cached,
		"failed", res.Failed)

	return res, nil
}

// Start scans templates, starts watching them and serves HTTP until ctx
// is cancelled.
func (s *PreviewServer) Start(ctx context.Context) error {
	if _, err := s.Scan(ctx); err != nil {
		return err
	}
	if err := s.watch(ctx); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return weferrors.NewIOError("listening on "+addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info(ctx, "Preview server listening", "url", "http://"+s.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return weferrors.NewIOError("serving "+addr, err)
	}
}

// Ready is closed once the server is accepting connections.
func (s *PreviewServer) Ready() <-chan struct{} { return s.ready }

// Addr returns the address the server listens on, or "" before Start.
func (s *PreviewServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addr
}

// Shutdown stops the watcher, disconnects browsers and drains HTTP
// requests. It is safe to call more than once.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.hub.Shutdown()

		s.mu.Lock()
		fw, srv := s.watcher, s.httpServer
		s.mu.Unlock()

		if fw != nil {
			if werr := fw.Stop(); werr != nil {
				s.logger.Warn(ctx, werr, "Stopping file watcher failed")
			}
		}
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
		s.logger.Info(ctx, "Preview server stopped")
	})

	return err
}

func (s *PreviewServer) watch(ctx context.Context) error {
	root := s.scanner.Root()
	fw, err := watcher.ForTemplates(root,
		slices.Concat(s.scanner.Extensions(), data.Extensions),
		s.cfg.Templates.ExcludePatterns,
		s.cfg.Watch.Debounce,
		s.logger)
	if err != nil {
		return err
	}
	fw.AddHandler(s.HandleChanges)

	for _, p := range s.cfg.Templates.ScanPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if err := fw.AddRecursive(p); err != nil {
			_ = fw.Stop()
			return err
		}
	}

	s.mu.Lock()
	s.watcher = fw
	s.mu.Unlock()

	return fw.Start(ctx)
}

// HandleChanges recompiles changed templates and tells browsers what
// happened to them.
func (s *PreviewServer) HandleChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, ev := range events {
		if isDataFile(ev.Path) {
			s.logger.Debug(ctx, "Data file changed", "path", ev.Path)
			s.hub.Broadcast(websocket.Message{Type: websocket.TypeReload, Target: s.templateFor(ev.Path)})
			continue
		}
		if !s.scanner.Matches(ev.Path) {
			continue
		}

		name, err := s.scanner.Name(ev.Path)
		if err != nil {
			continue
		}

		if ev.Gone() {
			s.scanner.RemoveFile(ev.Path)
			s.logger.Info(ctx, "Template removed", "template", name)
			s.hub.Broadcast(websocket.Message{Type: websocket.TypeRemoved, Target: name})
			continue
		}

		if _, err := s.scanner.ScanFile(ev.Path); err != nil {
			s.hub.Broadcast(websocket.Message{Type: websocket.TypeError, Target: name, Content: err.Error()})
			continue
		}
		s.logger.Info(ctx, "Template recompiled", "template", name, "change", ev.Type.String())
		s.hub.Broadcast(websocket.Message{Type: websocket.TypeReload, Target: name})
	}

	return nil
}

// templateFor returns the name of the template a data file belongs to,
// or "" when none is registered.
func (s *PreviewServer) templateFor(dataPath string) string {
	base := strings.TrimSuffix(dataPath, filepath.Ext(dataPath))
	for _, ext := range s.scanner.Extensions() {
		if e, ok := s.registry.GetByPath(base + ext); ok {
			return e.Name
		}
	}

	return ""
}

func isDataFile(path string) bool {
	return slices.Contains(data.Extensions, strings.ToLower(filepath.Ext(path)))
}
