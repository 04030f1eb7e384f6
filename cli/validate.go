package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/requisition-engine/factory"
	"github.com/warp/requisition-engine/template"
)

var validateCmd = &cobra.Command{
	Use:   "validate <template.json>",
	Short: "Validate a template document",
	Long: `Validate a template document against the column rules: labels,
sources, options, display dependencies and circular calculations.

Prints one line per failing column and exits 1 when the template is
invalid.

Examples:
  reqctl validate template.json
  reqctl validate template.json -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validationJSON struct {
	ID     string                   `json:"id"`
	Valid  bool                     `json:"valid"`
	Errors []template.RenderedError `json:"errors"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	tpl, err := readTemplate(args[0])
	if err != nil {
		return err
	}
	rendered := template.NewValidator(cfg.TemplateRules).Render(tpl, bundle())

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(validationJSON{ID: tpl.ID, Valid: len(rendered) == 0, Errors: rendered}); err != nil {
			return err
		}
	} else if len(rendered) == 0 {
		fmt.Fprintf(out, "%s template %s is valid (%d columns)\n", SuccessPrefix, Info.Render(tpl.ID), tpl.Len())
	} else {
		fmt.Fprintf(out, "%s template %s has %d invalid columns\n", ErrorPrefix, Info.Render(tpl.ID), len(rendered))
		for _, e := range rendered {
			fmt.Fprintf(out, "  %s %s: %s\n", Info.Render(string(e.Column)), Dim.Render("("+e.Label+")"), e.Text)
		}
	}

	if len(rendered) > 0 {
		return errFailed
	}
	return nil
}

func readTemplate(path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tpl, err := factory.NewTemplateFactory().ParseTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tpl, nil
}
