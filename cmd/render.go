package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/weft/internal/data"
	"github.com/conneroisu/weft/internal/mockdata"
	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/weft"
)

type renderOptions struct {
	data     string
	props    string
	selector string
	output   string
	strict   bool
	mock     bool
}

func newRenderCmd(a *app) *cobra.Command {
	o := &renderOptions{}

	cmd := &cobra.Command{
		Use:     "render <template>",
		Aliases: []string{"r"},
		Short:   "Compile a template and render it once",
		Long: `Compile a template and render it with data.

Data comes from --data, else from a YAML or JSON file next to the template
(page.html pairs with page.yaml), else from generated mock values. --props
is merged on top.

Examples:
  weft render page.html
  weft render page.html --data fixtures/page.json
  weft render page.html --props '{"Title":"Hello"}'
  weft render page.html --props @overrides.yaml --selector main -o out.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.data, "data", "d", "", "Data file (.yaml, .yml, .json)")
	f.StringVar(&o.props, "props", "", "Data overrides as JSON or YAML, or @file")
	f.StringVarP(&o.selector, "selector", "s", "", "Render only the children of the element matching this CSS selector")
	f.StringVarP(&o.output, "output", "o", "", "Write output to a file instead of stdout")
	f.BoolVar(&o.strict, "strict", false, "Reject repeated or conflicting directives")
	f.BoolVar(&o.mock, "mock", true, "Generate mock data when no data file is found")

	return cmd
}

func (a *app) runRender(cmd *cobra.Command, path string, o *renderOptions) error {
	opts := []weft.Option{
		weft.WithRootDir(a.cfg.Templates.RootDir),
		weft.WithLogger(a.logger),
	}
	if sel := changedString(cmd, "selector", o.selector, a.cfg.Templates.Selector); sel != "" {
		opts = append(opts, weft.WithSelector(sel))
	}
	if changedBool(cmd, "strict", o.strict, a.cfg.Templates.Strict) {
		opts = append(opts, weft.WithStrictDirectives())
	}

	t, err := weft.ParseFile(path, opts...)
	if err != nil {
		return err
	}

	value, err := a.renderData(cmd, path, t, o)
	if err != nil {
		return err
	}

	out, err := t.RenderString(value)
	if err != nil {
		return err
	}

	if o.output != "" {
		return writeOutput(o.output, out)
	}

	w := cmd.OutOrStdout()
	if _, err := io.WriteString(w, out); err != nil {
		return weferrors.NewIOError("writing output", err)
	}
	if !strings.HasSuffix(out, "\n") {
		_, _ = io.WriteString(w, "\n")
	}

	return nil
}

func writeOutput(path, out string) error {
	file, err := os.Create(path)
	if err != nil {
		return weferrors.NewIOError("creating "+path, err)
	}
	if _, err := io.WriteString(file, out); err != nil {
		_ = file.Close()
		return weferrors.NewIOError("writing output", err).WithFile(path)
	}
	if err := file.Close(); err != nil {
		return weferrors.NewIOError("closing output", err).WithFile(path)
	}

	return nil
}

func (a *app) renderData(cmd *cobra.Command, path string, t *weft.Template, o *renderOptions) (any, error) {
	var value any

	switch {
	case o.data != "":
		v, err := data.Load(o.data)
		if err != nil {
			return nil, err
		}
		value = v
	default:
		full := path
		if !filepath.IsAbs(full) && a.cfg.Templates.RootDir != "" {
			full = filepath.Join(a.cfg.Templates.RootDir, path)
		}
		if file, ok := data.Sibling(full); ok {
			a.logger.Debug(cmd.Context(), "Using sibling data file", "path", file)
			v, err := data.Load(file)
			if err != nil {
				return nil, err
			}
			value = v
		} else if o.mock {
			value = mockdata.NewGenerator().ForPlan(t.Plan())
		}
	}

	if o.props != "" {
		over, err := parseProps(o.props)
		if err != nil {
			return nil, err
		}
		value = data.Merge(value, over)
	}

	return value, nil
}

// parseProps reads inline JSON or YAML, or a data file when props starts
// with @.
func parseProps(props string) (any, error) {
	if file, ok := strings.CutPrefix(props, "@"); ok {
		v, err := data.Load(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read props file %s: %w", file, err)
		}
		return v, nil
	}

	v, err := data.Parse(props)
	if err != nil {
		return nil, fmt.Errorf("invalid props: %w", err)
	}

	return v, nil
}
