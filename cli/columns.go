package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/warp/requisition-engine/catalog"
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Print the column catalog",
	Long: `Print every column a template can configure, in catalog order, with
its allowed sources and the columns its formula reads.`,
	Args: cobra.NoArgs,
	RunE: runColumns,
}

func init() {
	rootCmd.AddCommand(columnsCmd)
}

type columnJSON struct {
	Name         catalog.Name     `json:"name"`
	Label        string           `json:"label"`
	Type         string           `json:"type"`
	Sources      []catalog.Source `json:"sources"`
	Options      []catalog.Option `json:"options,omitempty"`
	Dependencies []catalog.Name   `json:"dependencies,omitempty"`
	Pinned       bool             `json:"pinned"`
}

func runColumns(cmd *cobra.Command, args []string) error {
	defs := catalog.All()

	if outputFormat == "json" {
		out := make([]columnJSON, len(defs))
		for i, d := range defs {
			out[i] = columnJSON{
				Name:         d.Name,
				Label:        d.Label,
				Type:         string(d.Type),
				Sources:      d.Sources,
				Options:      d.Options,
				Dependencies: d.Dependencies,
				Pinned:       !d.CanChangeOrder,
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	t := newTable("#", "Name", "Label", "Sources", "Depends on")
	for i, d := range defs {
		name := string(d.Name)
		if !d.CanChangeOrder {
			name += " (pinned)"
		}
		t.Row(strconv.Itoa(i), name, d.Label, joinSources(d.Sources), joinNames(d.Dependencies))
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	fmt.Fprintln(cmd.OutOrStdout(), Dim.Render(fmt.Sprintf("%d columns", len(defs))))
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Dim).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Bold.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func joinSources(srcs []catalog.Source) string {
	parts := make([]string, len(srcs))
	for i, s := range srcs {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinNames(names []catalog.Name) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
