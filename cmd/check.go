package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/weft/internal/registry"
	weferrors "github.com/conneroisu/weft/pkg/errors"
	"github.com/conneroisu/weft/pkg/plan"
)

type checkOptions struct {
	format string
	plan   bool
	strict bool
}

func newCheckCmd(a *app) *cobra.Command {
	o := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Compile every template and report errors",
		Long: `Compile every template under the given paths, or the configured scan
paths, and report compile errors. The command fails if any template does
not compile.

Examples:
  weft check
  weft check pages partials --strict
  weft check --plan              # Also print each compiled plan
  weft check -f json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, args, o)
		},
	}
	addFormatFlag(cmd, &o.format, "text", "json")
	cmd.Flags().BoolVar(&o.plan, "plan", false, "Print the compiled plan of each template")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "Reject repeated or conflicting directives")

	return cmd
}

// checkResult is the JSON form of one checked template.
type checkResult struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Hint  string `json:"hint,omitempty"`
	Plan  string `json:"plan,omitempty"`
}

func (a *app) runCheck(cmd *cobra.Command, paths []string, o *checkOptions) error {
	a.cfg.Templates.Strict = changedBool(cmd, "strict", o.strict, a.cfg.Templates.Strict)

	reg, res, err := a.scan(cmd.Context(), paths)
	if err != nil {
		return err
	}

	results := make([]checkResult, 0, res.Scanned)
	for _, e := range reg.GetAll() {
		r, err := checkEntry(e, o.plan)
		if err != nil {
			return err
		}
		results = append(results, r)
	}

	out := cmd.OutOrStdout()
	switch o.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	default:
		writeCheckText(out, results)
	}

	if res.Failed > 0 {
		return fmt.Errorf("%d of %d templates failed to compile", res.Failed, res.Scanned)
	}

	return nil
}

func checkEntry(e *registry.Entry, withPlan bool) (checkResult, error) {
	r := checkResult{Name: e.Name, Path: e.Path, OK: e.OK()}
	if e.Err != nil {
		r.Error = e.Err.Error()
		if hint, ok := weferrors.Suggest(e.Err); ok {
			r.Hint = hint.Title + "\n" + hint.Example
		}
		return r, nil
	}
	if withPlan {
		var b strings.Builder
		if err := plan.Dump(&b, e.Template.Plan()); err != nil {
			return r, err
		}
		r.Plan = b.String()
	}

	return r, nil
}

func writeCheckText(w io.Writer, results []checkResult) {
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
			fmt.Fprintf(w, "FAIL %s\n     %s\n", r.Name, r.Error)
			if r.Hint != "" {
				fmt.Fprint(w, indent(r.Hint+"\n", "     hint: "))
			}
			continue
		}
		fmt.Fprintf(w, "ok   %s\n", r.Name)
		if r.Plan != "" {
			fmt.Fprint(w, indent(r.Plan, "     "))
		}
	}
	fmt.Fprintf(w, "\n%d templates, %d failed\n", len(results), failed)
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line != "" {
			b.WriteString(prefix + line)
		}
	}

	return b.String()
}
