package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nextmeeting/internal/cache"
	"nextmeeting/internal/config"
	"nextmeeting/internal/job"
	"nextmeeting/internal/model"
	"nextmeeting/internal/publish"
	"nextmeeting/internal/retry"
	"nextmeeting/internal/sheet"
	"nextmeeting/internal/store"
	"nextmeeting/internal/web"
)

type previewOptions struct {
	site     string
	csv      string
	out      string
	template string
	serve    string
	view     string
	at       string
	cacheDir string
	cacheTTL time.Duration
	refresh  bool
}

func NewPreviewCmd() *cobra.Command {
	var o previewOptions
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Build one site's schedule locally without publishing",
		Long: `Build one site's schedule from its Google sheet, or from a CSV export with
--csv, and print a view as JSON. With --out the JSON views, calendar feed
and rendered page are written to a directory; --serve serves them over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.site, "site", "", "site name or ID (default: first configured site)")
	cmd.Flags().StringVar(&o.csv, "csv", "", "read a CSV export (file, or directory of <sheet_id>.csv) instead of Google Sheets")
	cmd.Flags().StringVar(&o.out, "out", "", "write all artifacts to this directory")
	cmd.Flags().StringVar(&o.template, "template", "", "page template (default: built-in template)")
	cmd.Flags().StringVar(&o.serve, "serve", "", "serve the artifacts on this address, e.g. localhost:8080")
	cmd.Flags().StringVar(&o.view, "view", model.ScheduleFullWeek, "view to print when not writing artifacts")
	cmd.Flags().StringVar(&o.at, "at", "", "reference time in RFC 3339 (default: now)")
	cmd.Flags().StringVar(&o.cacheDir, "cache-dir", "", "keep downloaded sheets in this directory")
	cmd.Flags().DurationVar(&o.cacheTTL, "cache-ttl", 6*time.Hour, "how long cached sheets are reused")
	cmd.Flags().BoolVar(&o.refresh, "refresh", false, "ignore the cached copy of the sheet")
	return cmd
}

func runPreview(cmd *cobra.Command, o previewOptions) error {
	ctx := cmd.Context()
	cfg, err := config.LocalFromEnv()
	if err != nil {
		return err
	}

	var only []string
	if o.site != "" {
		only = []string{o.site}
	}
	sites, err := loadSites(cmd, cfg, only)
	if err != nil {
		return err
	}
	site := sites[0]

	now := time.Now
	if o.at != "" {
		at, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = func() time.Time { return at }
	}

	var reader sheet.Reader
	if o.csv != "" {
		reader = sheet.NewCSVReader(o.csv)
	} else {
		google, err := sheet.NewGoogleReader(ctx, cfg.SheetsCredentialsFile)
		if err != nil {
			return err
		}
		reader = google
		if o.cacheDir != "" {
			c, err := cache.New(o.cacheDir, o.cacheTTL)
			if err != nil {
				return err
			}
			if o.refresh {
				if err := c.Invalidate(site.SheetID); err != nil {
					return err
				}
			}
			reader = cache.NewReader(google, c)
		}
	}

	runner := job.New(job.Options{
		Reader:      reader,
		Location:    cfg.Location,
		GraceWindow: cfg.GraceWindow,
		Retry:       cfg.Retry,
		Now:         now,
	})
	res, err := runner.BuildSite(ctx, site)
	if err != nil {
		return err
	}

	if o.out == "" && o.serve == "" {
		view, ok := res.View(o.view)
		if !ok {
			return fmt.Errorf("unknown view %q", o.view)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	if o.out == "" {
		o.out, err = os.MkdirTemp("", "nextmeeting-preview-")
		if err != nil {
			return err
		}
	}
	local, err := store.NewLocal(o.out)
	if err != nil {
		return err
	}
	if err := ensureTemplate(ctx, local, site.SiteID, o.template); err != nil {
		return err
	}

	publisher := publish.New(publish.Options{
		Schedules: local,
		Pages:     local,
		Upload:    retry.Policy{Attempts: 1},
		Template:  retry.Policy{Attempts: 1},
		Location:  cfg.Location,
		DebugDir:  cfg.DebugDir,
	})
	keys, err := publisher.Publish(ctx, publish.Site{Name: site.Name, SiteID: site.SiteID}, res)
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s/%s\n", o.out, key)
	}

	if o.serve == "" {
		return nil
	}
	return serve(ctx, o.serve, web.New(local, site.SiteID))
}

// ensureTemplate writes the page template into the local store unless one
// is already there.
func ensureTemplate(ctx context.Context, local *store.LocalStore, siteID, path string) error {
	key := publish.TemplateKey(siteID)
	tmpl := publish.DefaultTemplate
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
		tmpl = data
	} else if _, err := local.Get(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return local.Put(ctx, key, tmpl, store.Attrs{ContentType: "text/html; charset=utf-8"})
}

func serve(ctx context.Context, addr string, handler *web.Handler) error {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving preview on http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
