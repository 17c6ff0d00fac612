package publish

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"nextmeeting/internal/model"
)

// TemplateMarker is replaced by the schedule in a page template.
const TemplateMarker = "/* INJECT_SCHEDULE_JSON */"

// ErrTemplateMarker is returned when a template has no marker inside a
// script element.
var ErrTemplateMarker = errors.New("template has no " + TemplateMarker + " inside a <script> element")

// DefaultTemplate is a minimal page used when previewing locally.
//
//go:embed template.html
var DefaultTemplate []byte

// RenderPage injects the full week into a page template as the
// JSON_SCHEDULE constant.
func RenderPage(tmpl []byte, full model.Schedule) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(tmpl))
	if err != nil {
		return nil, err
	}

	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = strings.Contains(s.Text(), TemplateMarker)
		return !found
	})
	if !found {
		return nil, ErrTemplateMarker
	}

	// json.Marshal escapes <, > and &, so the payload cannot close the
	// surrounding script element.
	data, err := json.Marshal(full)
	if err != nil {
		return nil, err
	}

	out := strings.Replace(string(tmpl), TemplateMarker, "const JSON_SCHEDULE="+string(data)+";", 1)
	return []byte(out), nil
}

// PageTitle returns the <title> of an HTML page.
func PageTitle(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}
