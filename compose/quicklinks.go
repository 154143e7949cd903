package compose

import (
	"strings"

	"gbp-autoposter/pkg/autopost"
)

// QuickLinkLines returns the labelled link lines configured on the profile defaults.
// Only absolute http(s) links are used.
func QuickLinkLines(d autopost.Defaults) []string {
	links := []struct{ label, url string }{
		{"Reviews ►", d.ReviewLink},
		{"Service Area ►", d.ServiceAreaLink},
		{"Area Map ►", d.AreaMapLink},
	}
	var lines []string
	for _, l := range links {
		if u := strings.TrimSpace(l.url); autopost.HasHTTP(u) {
			lines = append(lines, l.label+" "+u)
		}
	}
	return lines
}

// InsertQuickLinks adds link lines to text, before a trailing hashtag line if there is one.
// Lines whose URL already appears in text are skipped.
func InsertQuickLinks(text string, lines []string) string {
	var add []string
	for _, l := range lines {
		u := l[strings.LastIndex(l, " ")+1:]
		if !strings.Contains(text, u) {
			add = append(add, l)
		}
	}
	if len(add) == 0 {
		return text
	}
	block := strings.Join(add, "\n")

	body := strings.TrimRight(text, "\n ")
	i := strings.LastIndex(body, "\n")
	last := strings.TrimSpace(body[i+1:])
	if i >= 0 && isHashtagLine(last) {
		head := strings.TrimRight(body[:i], "\n ")
		return head + "\n\n" + block + "\n\n" + last
	}
	if body == "" {
		return block
	}
	return body + "\n\n" + block
}

func isHashtagLine(s string) bool {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f, "#") {
			return false
		}
	}
	return true
}
