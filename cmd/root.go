// Package cmd provides the weft command-line interface.
//
// Configuration is read, highest priority first, from command-line flags,
// WEFT_<SECTION>_<KEY> environment variables and the config file. The file
// is --config, else WEFT_CONFIG_FILE, else .weft.yml in the working
// directory.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/weft/internal/cache"
	"github.com/conneroisu/weft/internal/config"
	"github.com/conneroisu/weft/internal/registry"
	"github.com/conneroisu/weft/internal/scanner"
	"github.com/conneroisu/weft/pkg/logging"
)

// app carries the state shared by every command once configuration has
// been loaded.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  logging.Logger
}

// NewRootCommand builds the weft command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "weft",
		Short: "Compile and preview attribute-directive HTML templates",
		Long: `weft compiles HTML templates annotated with weft-replace, weft-content,
weft-if and weft-for attributes and {{ expr }} placeholders, and renders
them against YAML or JSON data.

Quick Start:
  weft render page.html --data page.yaml   Render one template
  weft check                               Compile every template
  weft list                                List discovered templates
  weft serve                               Start the live-reload preview server`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .weft.yml, can also use WEFT_CONFIG_FILE)")
	pf.String("root", "", "template root directory (WEFT_ROOT_DIR)")
	pf.String("log-level", "info", "log level (debug, info, warn, error, off)")
	pf.String("log-format", "text", "log format (text, json)")
	bindFlags(pf, map[string]string{
		"templates.root_dir": "root",
		"log.level":          "log-level",
		"log.format":         "log-format",
	})

	root.AddCommand(
		newRenderCmd(a),
		newCheckCmd(a),
		newListCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)

	return root
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}

	return nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfgFile := a.cfgFile
	if cfgFile == "" {
		cfgFile = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
	}
	if err := config.Init(cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	if used := viper.ConfigFileUsed(); used != "" {
		a.logger.Debug(cmd.Context(), "Using config file", "path", used)
	}

	return nil
}

// newScanner returns a scanner over the configured template tree.
func (a *app) newScanner(plans *cache.TemplateCache) (*scanner.TemplateScanner, *registry.TemplateRegistry) {
	reg := registry.New()
	sc := scanner.New(reg, scanner.Options{
		Root:            a.cfg.Templates.RootDir,
		Extensions:      a.cfg.Templates.Extensions,
		ExcludePatterns: a.cfg.Templates.ExcludePatterns,
		Selector:        a.cfg.Templates.Selector,
		Strict:          a.cfg.Templates.Strict,
		Cache:           plans,
		Logger:          a.logger,
	})

	return sc, reg
}

// scan compiles the templates under paths, or the configured scan paths
// when none are given.
func (a *app) scan(ctx context.Context, paths []string) (*registry.TemplateRegistry, scanner.Result, error) {
	if len(paths) == 0 {
		paths = a.cfg.Templates.ScanPaths
	}
	sc, reg := a.newScanner(nil)

	op := logging.StartOperation(a.logger, "scan")
	res, err := sc.ScanPaths(ctx, paths)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, res, err
	}
	op.End(ctx)

	return reg, res, nil
}
