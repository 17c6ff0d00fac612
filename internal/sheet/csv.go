package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nextmeeting/internal/retry"
)

// CSVReader reads exported sheets from disk. If path is a .csv file it is
// returned for every sheet ID; otherwise <path>/<sheetID>.csv is read.
type CSVReader struct {
	path string
}

func NewCSVReader(path string) *CSVReader {
	return &CSVReader{path: path}
}

func (r *CSVReader) Fetch(ctx context.Context, sheetID string) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := r.path
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		path = filepath.Join(path, sheetID+".csv")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("opening sheet export: %w", err))
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	values, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return NewGrid(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), values), nil
}
