package publish

import (
	"strings"

	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
)

// NormalizeCTA upper-cases a CTA code and maps the CALL alias to CALL_NOW.
func NormalizeCTA(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "CALL" {
		return autopost.CTACallNow
	}
	return code
}

// BuildCallToAction returns the button for a CTA code.
// CALL_NOW never carries a URL. Link CTAs use the first absolute http(s) URL among
// link, the listing website and the landing page, and yield nil when there is none.
// Phone requirements for CALL_NOW are checked by the caller.
func BuildCallToAction(code, link string, basics autopost.Basics, prof *autopost.Profile) *gbp.CallToAction {
	code = NormalizeCTA(code)
	if code == autopost.CTACallNow {
		return &gbp.CallToAction{ActionType: "CALL"}
	}
	if !autopost.KnownCTA(code) {
		return nil
	}
	candidates := []string{link, basics.WebsiteURI}
	if prof != nil {
		candidates = append(candidates, prof.LandingURL)
	}
	for _, u := range candidates {
		if u = strings.TrimSpace(u); autopost.HasHTTP(u) {
			return &gbp.CallToAction{ActionType: code, URL: u}
		}
	}
	return nil
}

// ResolvePhone returns the phone used by a call CTA: override, a tel: link, profile default, listing phone.
func ResolvePhone(prof *autopost.Profile, body autopost.PostBody, basics autopost.Basics) string {
	tel := ""
	if l := strings.TrimSpace(body.LinkURL); strings.HasPrefix(strings.ToLower(l), "tel:") {
		tel = l[len("tel:"):]
	}
	for _, p := range []string{body.Phone, tel, prof.Defaults.Phone, basics.PrimaryPhone} {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return ""
}
