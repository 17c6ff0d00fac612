package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nextmeeting/internal/config"
)

func NewRunCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Regenerate and publish every site once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			sites, err := loadSites(cmd, cfg, only)
			if err != nil {
				return err
			}

			runner, cleanup, err := newRunner(cmd.Context(), cfg, sites)
			defer cleanup()
			if err != nil {
				return err
			}

			report, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if report.Failed() {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s finished with %d errors\n", report.RunID, len(report.Errors))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s completed successfully\n", report.RunID)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "site", nil, "only process these sites (name or site ID)")
	return cmd
}
