package cli

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"nextmeeting/internal/config"
)

func NewWatchCmd() *cobra.Command {
	var (
		spec      string
		immediate bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if spec == "" {
				spec = cfg.WatchSchedule
			}
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", spec, err)
			}
			sites, err := loadSites(cmd, cfg, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			runner, cleanup, err := newRunner(ctx, cfg, sites)
			defer cleanup()
			if err != nil {
				return err
			}

			runOnce := func() {
				if _, err := runner.Run(ctx); err != nil {
					log.Printf("ERROR: %v", err)
				}
			}

			c := cron.New(cron.WithChain(
				cron.Recover(cron.DefaultLogger),
				cron.SkipIfStillRunning(cron.DefaultLogger),
			))
			if _, err := c.AddFunc(spec, runOnce); err != nil {
				return err
			}
			if immediate {
				runOnce()
			}
			c.Start()
			log.Printf("Watching with schedule %q", spec)

			<-ctx.Done()
			log.Printf("Stopping watch")
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "schedule", "", "cron schedule (overrides WATCH_CRON)")
	cmd.Flags().BoolVar(&immediate, "now", false, "run once before waiting for the first tick")
	return cmd
}
