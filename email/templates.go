package email

import (
	"fmt"
	"net/url"
	"strings"

	"gbp-autoposter/pkg/autopost"
)

const alertStyle = `body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.5; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
.header { border-bottom: 2px solid #c0392b; padding-bottom: 10px; margin-bottom: 20px; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #ecf0f1; vertical-align: top; }
.error { font-family: monospace; white-space: pre-wrap; color: #c0392b; }
.footer { margin-top: 20px; color: #7f8c8d; font-size: 0.9em; }
a { color: #2c3e50; }
`

// formatAlertBody renders failures as an HTML table, in the order they occurred.
func (s *Sender) formatAlertBody(failures []autopost.Failure) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<style>\n")
	b.WriteString(alertStyle)
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<div class=\"header\">\n")
	if len(failures) == 1 {
		b.WriteString("<h2>A scheduled post failed</h2>\n")
	} else {
		b.WriteString(fmt.Sprintf("<h2>%d scheduled items failed</h2>\n", len(failures)))
	}
	b.WriteString("</div>\n")

	b.WriteString("<table>\n<tr><th>Time (UTC)</th><th>Kind</th><th>Profile</th><th>Item</th><th>Error</th></tr>\n")
	for _, f := range failures {
		b.WriteString("<tr>")
		b.WriteString(fmt.Sprintf("<td>%s</td>", f.At.UTC().Format("Jan 2 15:04")))
		b.WriteString(fmt.Sprintf("<td>%s</td>", escapeHTML(f.Kind)))
		b.WriteString(fmt.Sprintf("<td>%s</td>", s.profileCell(f.ProfileID)))
		b.WriteString(fmt.Sprintf("<td>%s</td>", escapeHTML(f.ItemID)))
		b.WriteString(fmt.Sprintf("<td class=\"error\">%s</td>", escapeHTML(f.Error)))
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")

	b.WriteString("<div class=\"footer\">\n")
	b.WriteString("Failed queue items stay FAILED until they are re-enqueued.\n")
	b.WriteString("</div>\n</body>\n</html>")
	return b.String()
}

// profileCell links a profile to its post history when a base URL is configured.
func (s *Sender) profileCell(profileID string) string {
	if profileID == "" {
		return "-"
	}
	if s.baseURL == "" {
		return escapeHTML(profileID)
	}
	link := fmt.Sprintf("%s/posts/history?profileId=%s", strings.TrimSuffix(s.baseURL, "/"), url.QueryEscape(profileID))
	return fmt.Sprintf("<a href=\"%s\">%s</a>", escapeHTML(link), escapeHTML(profileID))
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&#39;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
