package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/weft/internal/registry"
	"github.com/conneroisu/weft/pkg/plan"
)

func newListCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "List discovered templates",
		Long: `List every template under the configured scan paths with its status
and the data names it reads.

Examples:
  weft list
  weft list -f json
  weft list --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := a.scan(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), format, listItems(reg))
		},
	}
	addFormatFlag(cmd, &format, "table", "json", "yaml")

	return cmd
}

// listItem describes one template in list output.
type listItem struct {
	Name     string    `json:"name" yaml:"name"`
	Path     string    `json:"path" yaml:"path"`
	Hash     string    `json:"hash" yaml:"hash"`
	Size     int64     `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
	OK       bool      `json:"ok" yaml:"ok"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
	Names    []string  `json:"names,omitempty" yaml:"names,omitempty"`
}

func listItems(reg *registry.TemplateRegistry) []listItem {
	entries := reg.GetAll()
	items := make([]listItem, 0, len(entries))
	for _, e := range entries {
		item := listItem{
			Name:     e.Name,
			Path:     e.Path,
			Hash:     e.Hash,
			Size:     e.Size,
			Modified: e.ModTime,
			OK:       e.OK(),
		}
		if e.Err != nil {
			item.Error = e.Err.Error()
		} else {
			item.Names = plan.Names(e.Template.Plan())
		}
		items = append(items, item)
	}

	return items
}

func writeList(w io.Writer, format string, items []listItem) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(items)
	}

	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No templates found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tHASH\tDATA")
	for _, item := range items {
		status := "ok"
		if !item.OK {
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.Name, status, item.Hash, strings.Join(item.Names, ", "))
	}

	return tw.Flush()
}
