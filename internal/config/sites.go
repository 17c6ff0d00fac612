package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"nextmeeting/internal/sheet"
)

// DefaultHeaderRows is the number of header rows above the first meeting.
const DefaultHeaderRows = 2

// DefaultTrailingRows is the number of summary rows below the last meeting
// in the built-in sites' sheets.
const DefaultTrailingRows = 2

// Site maps one spreadsheet to one published site.
type Site struct {
	Name       string `yaml:"name"`
	SheetID    string `yaml:"sheet_id"`
	SiteID     string `yaml:"site_id"`
	Layout     string `yaml:"layout"`
	Fellowship string `yaml:"fellowship"`
	// Fields overrides Layout with a custom column order.
	Fields       []string `yaml:"fields"`
	HeaderRows   *int     `yaml:"header_rows"`
	TrailingRows int      `yaml:"trailing_rows"`
	Headers      []string `yaml:"headers"`
}

// DefaultSites are served when no sites file is configured.
var DefaultSites = []Site{
	{Name: "S-Anon", SheetID: "1UJneS5GKFQSIy_iAfkLE21nRC_E8VzJ8diTT4Z3JnrA", SiteID: "B0E7F18B-4CF5-49FF-BBD3-75E1CA52AA5E", TrailingRows: DefaultTrailingRows, Fellowship: "s-anon"},
	{Name: "SA", SheetID: "1_QxT6VIm1HTLKSl71DtDqSMWVZYrdbqSl0WSF0Ch6g4", SiteID: "275EE30A-220F-4FF2-A950-0ED2B5E4C257", TrailingRows: DefaultTrailingRows, Fellowship: "sa"},
	{Name: "ACA", SheetID: "1EyR9SJSbEn0rIKtb10hYTQQCBHdJ42pBKFE6ezQeY8A", SiteID: "0BF67B1D-444F-45F5-BA5B-E3ADD7E4C30B", TrailingRows: DefaultTrailingRows, Fellowship: "aca"},
	{Name: "DA", SheetID: "18gkS_5ghZGW0smYwV0OHYZL4yph-r02wIcVXujEF8HQ", SiteID: "A93E4DF2-F779-4F15-B25B-826D8A3B8009-DA", TrailingRows: DefaultTrailingRows, Fellowship: "da"},
	{Name: "AAA", SheetID: "1RkJpxqJCHeQZjr0yYt6QMheujiynsCwY9M7G3BeV55E", SiteID: "5205ac4c-ec58-4f11-8c90-2be7fcd4d6f5-AAA", TrailingRows: DefaultTrailingRows, Fellowship: "aaa"},
}

// SheetLayout resolves the site's column layout.
func (s Site) SheetLayout() (sheet.Layout, error) {
	if len(s.Fields) > 0 {
		fields := make([]sheet.Field, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = sheet.Field(strings.TrimSpace(f))
		}
		return sheet.NewLayout(s.Name, fields, s.Headers)
	}
	l, err := sheet.LayoutByName(s.Layout)
	if err != nil {
		return sheet.Layout{}, err
	}
	if len(s.Headers) > len(l.Fields) {
		return sheet.Layout{}, fmt.Errorf("%d headers for %d columns", len(s.Headers), len(l.Fields))
	}
	if len(s.Headers) > 0 {
		l = l.WithHeaders(s.Headers)
	}
	return l, nil
}

// HeaderRowCount returns the configured header rows or the default.
func (s Site) HeaderRowCount() int {
	if s.HeaderRows == nil {
		return DefaultHeaderRows
	}
	return *s.HeaderRows
}

type sitesFile struct {
	Sites []Site `yaml:"sites"`
}

// LoadSites reads a YAML sites file. An empty path returns DefaultSites.
func LoadSites(path string) ([]Site, error) {
	if path == "" {
		return DefaultSites, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sites file: %w", err)
	}
	return ParseSites(data)
}

// ParseSites decodes and validates a sites document.
func ParseSites(data []byte) ([]Site, error) {
	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sites file: %w", err)
	}
	if err := ValidateSites(f.Sites); err != nil {
		return nil, err
	}
	return f.Sites, nil
}

// ValidateSites checks that the list is non-empty, that names and site IDs
// are unique and that every layout resolves.
func ValidateSites(sites []Site) error {
	if len(sites) == 0 {
		return fmt.Errorf("no sites configured")
	}
	names := make(map[string]bool)
	ids := make(map[string]bool)
	for i, s := range sites {
		switch {
		case s.Name == "":
			return fmt.Errorf("site %d: name is required", i+1)
		case s.SheetID == "":
			return fmt.Errorf("site %s: sheet_id is required", s.Name)
		case s.SiteID == "":
			return fmt.Errorf("site %s: site_id is required", s.Name)
		case names[s.Name]:
			return fmt.Errorf("site %s: duplicate name", s.Name)
		case ids[s.SiteID]:
			return fmt.Errorf("site %s: duplicate site_id %s", s.Name, s.SiteID)
		case s.HeaderRows != nil && *s.HeaderRows < 0:
			return fmt.Errorf("site %s: header_rows must not be negative", s.Name)
		case s.TrailingRows < 0:
			return fmt.Errorf("site %s: trailing_rows must not be negative", s.Name)
		}
		if strings.ContainsAny(s.SiteID, "/\\") {
			return fmt.Errorf("site %s: site_id must not contain path separators", s.Name)
		}
		if _, err := s.SheetLayout(); err != nil {
			return fmt.Errorf("site %s: %w", s.Name, err)
		}
		names[s.Name] = true
		ids[s.SiteID] = true
	}
	return nil
}

// FindSite returns the site whose name or site ID matches key, ignoring case.
func FindSite(sites []Site, key string) (Site, bool) {
	for _, s := range sites {
		if strings.EqualFold(s.Name, key) || strings.EqualFold(s.SiteID, key) {
			return s, true
		}
	}
	return Site{}, false
}
