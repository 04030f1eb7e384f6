/*
root.go - reqctl command tree

PURPOSE:
  Offline tooling for requisition templates: inspect the column catalog,
  validate a template document, and recalculate a requisition document
  against its template. The recalc command works on the server's
  database directly.

COMMANDS:
  reqctl columns                                     Print the catalog
  reqctl validate <template.json>                    Exit 1 when invalid
  reqctl calculate <requisition.json> -t <tpl.json>  Recalculated line items
  reqctl recalc --stale|--template ID|--requisition ID

CONFIGURATION:
  Reads the same .env and environment as the server (config.Load), so
  ENGINE_*, TEMPLATE_*, MESSAGES_LOCALE and DB_PATH apply here too.

SEE ALSO:
  - cmd/reqctl/main.go: Binary entry point
*/
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/requisition-engine/config"
	"github.com/warp/requisition-engine/messages"
)

// errFailed is returned by commands that already reported their failure.
var errFailed = errors.New("failed")

var (
	envFile      string
	outputFormat string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reqctl",
	Short: "Requisition template and calculation tooling",
	Long: `reqctl inspects requisition templates and recalculates requisitions
with the same engine the server runs.

Examples:
  reqctl columns
  reqctl validate template.json
  reqctl calculate requisition.json --template template.json -o table
  reqctl recalc --stale`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load configuration from this .env file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	switch outputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	loaded, err := config.Load(files...)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func bundle() messages.Lookup {
	return messages.MustLoad().ForLocale(cfg.MessagesLocale)
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorPrefix, err)
		}
		return 1
	}
	return 0
}
