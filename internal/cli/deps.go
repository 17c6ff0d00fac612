package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"nextmeeting/internal/cdn"
	"nextmeeting/internal/config"
	"nextmeeting/internal/firestore"
	"nextmeeting/internal/job"
	"nextmeeting/internal/notify"
	"nextmeeting/internal/publish"
	"nextmeeting/internal/sheet"
	"nextmeeting/internal/store"
)

// loadSites reads the sites file named by --sites, SITES_FILE or the
// built-in list, optionally narrowed to the names or IDs in only.
func loadSites(cmd *cobra.Command, cfg *config.Config, only []string) ([]config.Site, error) {
	path := cfg.SitesFile
	if flag, _ := cmd.Flags().GetString("sites"); flag != "" {
		path = flag
	}
	sites, err := config.LoadSites(path)
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		return sites, nil
	}

	var selected []config.Site
	for _, key := range only {
		s, ok := config.FindSite(sites, key)
		if !ok {
			return nil, fmt.Errorf("unknown site %q", key)
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// newRunner builds a Runner against the configured cloud resources. The
// returned cleanup closes every client.
func newRunner(ctx context.Context, cfg *config.Config, sites []config.Site) (*job.Runner, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("WARNING: closing client: %v", err)
			}
		}
	}

	reader, err := sheet.NewGoogleReader(ctx, cfg.SheetsCredentialsFile)
	if err != nil {
		return nil, cleanup, err
	}

	gcs, err := storage.NewClient(ctx)
	if err != nil {
		return nil, cleanup, fmt.Errorf("creating storage client: %w", err)
	}
	closers = append(closers, gcs.Close)
	log.Printf("Store: GCS buckets %s (schedules), %s (pages)", cfg.ScheduleBucket, cfg.SiteBucket)

	invalidator, err := cdn.NewCloudCDN(ctx, cfg.ProjectID, cfg.CDNURLMap, cfg.Retry)
	if err != nil {
		return nil, cleanup, err
	}

	runLog, err := firestore.New(ctx, cfg.ProjectID, cfg.RunLogCollection)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, runLog.Close)
	log.Printf("Firestore: project %s, collection %s", cfg.ProjectID, cfg.RunLogCollection)

	publisher := publish.New(publish.Options{
		Schedules: store.NewGCSWithClient(gcs, cfg.ScheduleBucket),
		Pages:     store.NewGCSWithClient(gcs, cfg.SiteBucket),
		Upload:    cfg.Retry,
		Template:  cfg.TemplateRetry,
		Location:  cfg.Location,
		DebugDir:  cfg.DebugDir,
	})

	runner := job.New(job.Options{
		Sites:       sites,
		Reader:      reader,
		Publisher:   publisher,
		Invalidator: invalidator,
		CDNPaths:    cfg.CDNPaths,
		Notifier:    notify.NewWebhook(cfg.WebhookURL, &http.Client{Timeout: cfg.Retry.Timeout}, cfg.Retry),
		RunLog:      runLog,
		RunLogKeep:  cfg.RunLogRetain,
		Location:    cfg.Location,
		GraceWindow: cfg.GraceWindow,
		Retry:       cfg.Retry,
	})
	return runner, cleanup, nil
}
