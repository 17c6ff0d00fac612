// Package cli wires the nextmeeting commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRoot returns the nextmeeting command tree.
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nextmeeting",
		Short:         "Regenerate published meeting schedules from spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("sites", "", "sites YAML file (overrides SITES_FILE)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewPreviewCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVerifyCmd())
	return cmd
}
