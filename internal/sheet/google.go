package sheet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"nextmeeting/internal/retry"
)

// GoogleReader reads spreadsheets through the Google Sheets API.
type GoogleReader struct {
	svc *sheets.Service
}

// NewGoogleReader creates a reader. With an empty credentialsFile the
// application default credentials are used.
func NewGoogleReader(ctx context.Context, credentialsFile string) (*GoogleReader, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	return &GoogleReader{svc: svc}, nil
}

// Fetch downloads every formatted value of the spreadsheet's first worksheet.
func (r *GoogleReader) Fetch(ctx context.Context, sheetID string) (*Grid, error) {
	doc, err := r.svc.Spreadsheets.Get(sheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(fmt.Errorf("loading spreadsheet %s: %w", sheetID, err))
	}
	if len(doc.Sheets) == 0 || doc.Sheets[0].Properties == nil {
		return nil, retry.Permanent(fmt.Errorf("spreadsheet %s has no worksheets", sheetID))
	}
	title := doc.Sheets[0].Properties.Title

	resp, err := r.svc.Spreadsheets.Values.Get(sheetID, quoteTitle(title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(fmt.Errorf("loading values of %q: %w", title, err))
	}

	values := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		values[i] = cells
	}
	return NewGrid(title, values), nil
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// classify marks client errors other than rate limiting as permanent.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}
