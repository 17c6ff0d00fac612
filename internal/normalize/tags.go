package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"nextmeeting/internal/model"
)

// Matchers are only used through MatchString and FindString, which keep no
// state between calls.
var (
	womenOnlyPattern   = regexp.MustCompile(`(?i)\b(women|woman|womens|female)\b`)
	menOnlyPattern     = regexp.MustCompile(`(?i)\b(men|man|mens|male)\b`)
	openMeetingPattern = regexp.MustCompile(`(?i)\bopen\b`)
	aaPattern          = regexp.MustCompile(`(?i)(^|\s)aa(\s|$)`)

	skypePattern = regexp.MustCompile(`(?i)https?://join\.skype\.`)

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`)
)

// GenderRestriction derives the attendance restriction from a meeting name.
// Women is checked first so "women" never falls through to the men rule.
func GenderRestriction(name string) model.Gender {
	switch {
	case womenOnlyPattern.MatchString(name):
		return model.GenderWomenOnly
	case menOnlyPattern.MatchString(name):
		return model.GenderMenOnly
	default:
		return model.GenderAll
	}
}

// IsOpenMeeting reports whether name contains "open" as a whole word.
func IsOpenMeeting(name string) bool {
	return openMeetingPattern.MatchString(name)
}

// Platform infers the conferencing platform from a join URL.
func Platform(joinURL string) model.Platform {
	u := strings.TrimSpace(joinURL)
	lower := strings.ToLower(u)
	switch {
	case u == "":
		return model.PlatformUnknown
	case strings.Contains(lower, "mailto:"):
		return model.PlatformEmail
	case isZoomHost(u):
		return model.PlatformZoom
	case skypePattern.MatchString(u):
		return model.PlatformSkype
	case strings.Contains(lower, "tel:"):
		return model.PlatformPhone
	default:
		return model.PlatformUnknown
	}
}

// isZoomHost reports whether the URL's host is zoom.us or a subdomain of
// it. A missing scheme is read as https.
func isZoomHost(raw string) bool {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return host == "zoom.us" || strings.HasSuffix(host, ".zoom.us")
}

// ExtractEmail returns the first e-mail address in s, or "".
func ExtractEmail(s string) string {
	return emailPattern.FindString(s)
}

func fellowship(name, fallback string) string {
	if aaPattern.MatchString(name) {
		return "aa"
	}
	return fallback
}
