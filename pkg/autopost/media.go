package autopost

import (
	"regexp"
	"strings"
	"time"
)

var httpsImageRegex = regexp.MustCompile(`(?i)^https://.+\.(png|jpe?g|webp)$`)

// IsHTTPSImage reports whether u is an https URL ending in a supported image extension.
func IsHTTPSImage(u string) bool {
	return httpsImageRegex.MatchString(strings.TrimSpace(u))
}

// HasHTTP reports whether u is an absolute http(s) URL.
func HasHTTP(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// AbsoluteMediaURL resolves a media reference against base.
// Absolute URLs pass through; paths are joined to base; empty input stays empty.
func AbsoluteMediaURL(base, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if HasHTTP(raw) {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(raw, "/")
}

// CTA codes accepted on posts.
const (
	CTALearnMore = "LEARN_MORE"
	CTABook      = "BOOK"
	CTAOrder     = "ORDER"
	CTAShop      = "SHOP"
	CTASignUp    = "SIGN_UP"
	CTACallNow   = "CALL_NOW"
)

var ctaLabels = map[string]string{
	CTACallNow:   "Call now",
	CTALearnMore: "Learn more",
	CTABook:      "Book",
	CTAOrder:     "Order",
	CTAShop:      "Shop",
	CTASignUp:    "Sign up",
}

// KnownCTA reports whether code is a supported CTA code. CALL is accepted as an alias of CALL_NOW.
func KnownCTA(code string) bool {
	if code == "CALL" {
		return true
	}
	_, ok := ctaLabels[code]
	return ok
}

// CTALabel returns the display label for a CTA code.
func CTALabel(code string) string {
	if l, ok := ctaLabels[code]; ok {
		return l
	}
	return ctaLabels[CTALearnMore]
}

const (
	// MaxHistory is the number of newest history entries kept.
	MaxHistory = 1000
	// DefaultHistoryLimit is returned by history listings without an explicit limit.
	DefaultHistoryLimit = 50
)

// AppendHistory adds an entry and trims the log to the newest MaxHistory entries.
func AppendHistory(history []HistoryEntry, e HistoryEntry) []HistoryEntry {
	history = append(history, e)
	if over := len(history) - MaxHistory; over > 0 {
		history = history[over:]
	}
	return history
}

// RecentHistory returns up to limit entries, newest first, optionally for one profile.
func RecentHistory(history []HistoryEntry, profileID string, limit int) []HistoryEntry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out := make([]HistoryEntry, 0, limit)
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		if profileID != "" && history[i].ProfileID != profileID {
			continue
		}
		out = append(out, history[i])
	}
	return out
}

// DateString formats t as an ISO date.
func DateString(t time.Time) string {
	return t.Format(time.DateOnly)
}
