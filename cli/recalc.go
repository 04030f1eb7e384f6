package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/requisition-engine/config"
	"github.com/warp/requisition-engine/recalc"
	"github.com/warp/requisition-engine/requisition"
	"github.com/warp/requisition-engine/store/sqlite"
)

var (
	recalcDB          string
	recalcStale       bool
	recalcTemplate    string
	recalcRequisition string
)

var recalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate stored requisitions",
	Long: `Recalculate requisitions in the server database and record a
recalculation run for each, exactly as the scheduler and the worker do.

Examples:
  reqctl recalc --stale                   # Every requisition flagged stale
  reqctl recalc --template tpl-essential  # Every requisition of a template
  reqctl recalc --requisition req-1 --db ./data/requisitions.db`,
	Args: cobra.NoArgs,
	RunE: runRecalc,
}

func init() {
	recalcCmd.Flags().StringVar(&recalcDB, "db", "", "SQLite database path (default: DB_PATH)")
	recalcCmd.Flags().BoolVar(&recalcStale, "stale", false, "Recalculate requisitions whose template changed")
	recalcCmd.Flags().StringVar(&recalcTemplate, "template", "", "Recalculate every requisition of this template")
	recalcCmd.Flags().StringVar(&recalcRequisition, "requisition", "", "Recalculate one requisition")
	recalcCmd.MarkFlagsMutuallyExclusive("stale", "template", "requisition")
	recalcCmd.MarkFlagsOneRequired("stale", "template", "requisition")
	rootCmd.AddCommand(recalcCmd)
}

func runRecalc(cmd *cobra.Command, args []string) error {
	path := recalcDB
	if path == "" {
		path = cfg.DBPath
	}
	db, err := sqlite.New(path)
	if err != nil {
		return err
	}
	defer db.Close()

	logger := config.NewLoggerTo(cmd.ErrOrStderr(), cfg)
	svc := recalc.New(db, requisition.NewCalculator(cfg.Engine), nil, logger)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case recalcRequisition != "":
		run, err := svc.RecalculateRequisition(ctx, recalcRequisition, recalc.TriggerCLI)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s recalculated (%d line items, %s)\n",
			SuccessPrefix, Info.Render(recalcRequisition), run.LineItems, run.Status)
	case recalcTemplate != "":
		n, err := svc.RecalculateTemplate(ctx, recalcTemplate, recalc.TriggerCLI)
		fmt.Fprintf(out, "%s %d requisitions of %s recalculated\n", SuccessPrefix, n, Info.Render(recalcTemplate))
		if err != nil {
			return err
		}
	default:
		n, err := svc.RecalculateStale(ctx, 0, recalc.TriggerCLI)
		fmt.Fprintf(out, "%s %d stale requisitions recalculated\n", SuccessPrefix, n)
		if err != nil {
			return err
		}
	}
	return nil
}
