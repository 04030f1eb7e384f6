package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/warp/requisition-engine/factory"
	"github.com/warp/requisition-engine/messages"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/template"
)

var calcTemplatePath string

var calculateCmd = &cobra.Command{
	Use:   "calculate <requisition.json>",
	Short: "Recalculate a requisition document",
	Long: `Recalculate every line item of a requisition document with the
template it was created from, then validate the result.

The table shows the displayed quantity columns in template order,
followed by the line item errors. JSON output is the recalculated
requisition with an errors map keyed by line item then column.

Examples:
  reqctl calculate requisition.json --template template.json
  reqctl calculate requisition.json -t template.json -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runCalculate,
}

func init() {
	calculateCmd.Flags().StringVarP(&calcTemplatePath, "template", "t", "", "Template document the requisition uses")
	_ = calculateCmd.MarkFlagRequired("template")
	rootCmd.AddCommand(calculateCmd)
}

type calculationJSON struct {
	Requisition factory.RequisitionJSON       `json:"requisition"`
	Errors      map[string]map[string]string `json:"errors"`
}

func runCalculate(cmd *cobra.Command, args []string) error {
	tpl, err := readTemplate(calcTemplatePath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	rf := factory.NewRequisitionFactory()
	req, err := rf.ParseRequisition(data, tpl)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	requisition.NewCalculator(cfg.Engine).RecalculateAll(req)

	lookup := bundle()
	errs := make(map[string]map[string]string)
	for id, colErrs := range requisition.NewValidator(cfg.Engine).ValidateRequisition(req) {
		rendered := make(map[string]string, len(colErrs))
		for name, msg := range colErrs {
			rendered[string(name)] = messages.Render(lookup, msg)
		}
		errs[id] = rendered
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(calculationJSON{Requisition: rf.ToJSON(req), Errors: errs})
	}

	cols := quantityColumns(tpl)
	headers := []string{"Line item"}
	for _, c := range cols {
		headers = append(headers, c.Label)
	}
	t := newTable(headers...)
	for _, li := range req.LineItems {
		row := []string{li.ID}
		for _, c := range cols {
			row = append(row, formatQuantity(li, c))
		}
		if li.Skipped {
			row[0] += " (skipped)"
		}
		t.Row(row...)
	}
	fmt.Fprintf(out, "%s %s %s\n", Bold.Render("Requisition"), Info.Render(req.ID), Dim.Render("("+string(req.Status)+")"))
	fmt.Fprintln(out, t.String())

	if len(errs) == 0 {
		fmt.Fprintf(out, "%s all line items valid\n", SuccessPrefix)
		return nil
	}
	ids := make([]string, 0, len(errs))
	for id := range errs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		names := make([]string, 0, len(errs[id]))
		for name := range errs[id] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%s %s %s: %s\n", WarningPrefix, id, Info.Render(name), errs[id][name])
		}
	}
	return nil
}

// quantityColumns returns the displayed template columns that hold a line
// item quantity, in display order.
func quantityColumns(tpl *template.Template) []*template.Column {
	var probe requisition.LineItem
	var out []*template.Column
	for _, c := range tpl.Columns() {
		if _, ok := probe.Quantity(c.Name); ok && c.IsDisplayed {
			out = append(out, c)
		}
	}
	return out
}

func formatQuantity(li *requisition.LineItem, c *template.Column) string {
	v, _ := li.Quantity(c.Name)
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
