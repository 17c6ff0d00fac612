package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nextmeeting/internal/verify"
)

func NewVerifyCmd() *cobra.Command {
	var (
		static  bool
		maxAge  time.Duration
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "verify <url-or-file>",
		Short: "Check the schedule embedded in a published page",
		Long: `Load a published page in headless Chrome (CHROME_PATH selects the binary)
and report the schedule its scripts see. --static parses the HTML instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			target := args[0]

			var (
				summary *verify.Summary
				err     error
			)
			if static {
				var page []byte
				page, err = readPage(ctx, target)
				if err != nil {
					return err
				}
				summary, err = verify.Static(page)
			} else {
				summary, err = verify.Browser(ctx, pageURL(target))
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s with %d meetings, generated %s\n",
				summary.Title, summary.ScheduleType, summary.Meetings, summary.GeneratedAt.Format(time.RFC3339))
			return summary.Check(time.Now(), maxAge)
		},
	}
	cmd.Flags().BoolVar(&static, "static", false, "parse the HTML without running a browser")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "fail when the schedule is older than this")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "file://")
}

// pageURL turns a local path into a file:// URL for the browser.
func pageURL(target string) string {
	if isURL(target) {
		return target
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	return "file://" + filepath.ToSlash(abs)
}

func readPage(ctx context.Context, target string) ([]byte, error) {
	if !isURL(target) {
		return os.ReadFile(target)
	}
	if path, ok := strings.CutPrefix(target, "file://"); ok {
		return os.ReadFile(path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", target, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
