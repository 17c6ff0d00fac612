package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nextmeeting/internal/config"
	"nextmeeting/internal/firestore"
)

func NewHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LocalFromEnv()
			if err != nil {
				return err
			}
			if cfg.ProjectID == "" {
				return &config.Error{Missing: []string{"GCP_PROJECT_ID"}}
			}

			runLog, err := firestore.New(cmd.Context(), cfg.ProjectID, cfg.RunLogCollection)
			if err != nil {
				return err
			}
			defer runLog.Close()

			reports, err := runLog.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tRUN\tSITES\tMEETINGS\tERRORS")
			for _, r := range reports {
				meetings := 0
				for _, s := range r.Sites {
					meetings += s.Meetings
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.RunID, len(r.Sites), meetings, len(r.Errors))
				for _, e := range r.Errors {
					fmt.Fprintf(w, "\t\t\t\t%s\n", e)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
