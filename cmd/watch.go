package cmd

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/weft/internal/cache"
	"github.com/conneroisu/weft/internal/scanner"
	"github.com/conneroisu/weft/internal/watcher"
)

const watchCacheSize = 16 << 20

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Recompile templates as they change",
		Long: `Compile every template, then watch the scan paths and recompile
templates as they change, logging compile errors. Use serve for a browser
preview.

Examples:
  weft watch
  weft watch --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context())
		},
	}
}

func (a *app) runWatch(ctx context.Context) error {
	sc, _ := a.newScanner(cache.New(watchCacheSize, 0))

	res, err := sc.ScanPaths(ctx, a.cfg.Templates.ScanPaths)
	if err != nil {
		return err
	}
	a.logger.Info(ctx, "Templates compiled", "compiled", res.Compiled, "failed", res.Failed)

	fw, err := watcher.ForTemplates(sc.Root(), sc.Extensions(),
		a.cfg.Templates.ExcludePatterns, a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		recompile(ctx, a, sc, events)
		return nil
	})
	for _, p := range a.cfg.Templates.ScanPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(sc.Root(), p)
		}
		if err := fw.AddRecursive(p); err != nil {
			return err
		}
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	a.logger.Info(ctx, "Watching for changes", "root", sc.Root())
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}

	return ctx.Err()
}

func recompile(ctx context.Context, a *app, sc *scanner.TemplateScanner, events []watcher.ChangeEvent) {
	for _, ev := range events {
		name, err := sc.Name(ev.Path)
		if err != nil {
			continue
		}
		if ev.Gone() {
			sc.RemoveFile(ev.Path)
			a.logger.Info(ctx, "Template removed", "template", name)
			continue
		}
		if _, err := sc.ScanFile(ev.Path); err != nil {
			// The scanner already logged the compile error.
			continue
		}
		a.logger.Info(ctx, "Template compiled", "template", name, "change", ev.Type.String())
	}
}
