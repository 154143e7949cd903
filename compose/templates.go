package compose

import (
	"fmt"
	"regexp"
	"strings"

	"gbp-autoposter/pkg/autopost"
)

// MaxTemplateLength caps the template text before merging.
const MaxTemplateLength = 1450

var (
	introPool = Pool{
		"{business} helps {city} homeowners feel sure about {serviceLower}.",
		"Across {city}, people call {business} when {serviceLower} has to be done right.",
		"{business} brings dependable {serviceLower} to {city} and the surrounding area.",
		"Looking for {serviceLower} in {city}? {business} is close by and ready.",
	}

	differentiatorPool = Pool{
		"Each job comes with {detailOne} and {detailTwo}.",
		"You can count on clear scheduling, {detailOne}, and {detailTwo}.",
		"{business} backs experienced crews with {detailTwo}.",
		"Fast replies, {detailOne}, and straight answers from start to finish.",
	}

	detailOnePool = Pool{
		"tidy job sites",
		"protected floors and furniture",
		"courteous technicians",
		"upfront pricing",
	}

	detailTwoPool = Pool{
		"progress updates you can follow",
		"help with local permits",
		"a final walk-through together",
		"a follow-up check after the work",
	}

	messagePools = map[autopost.Template]Pool{
		autopost.TemplateOffer: {
			"A limited-time offer is open now. Ask us to hold it for your {city} project.",
			"{business} has a short savings window on {serviceLower} this week.",
		},
		autopost.TemplateSocialProof: {
			"Most of our {serviceLower} work in {city} comes from neighbour referrals.",
			"{city} clients keep coming back to {business} for {serviceLower}.",
		},
		autopost.TemplateTip: {
			"Quick tip: regular {serviceLower} keeps {city} properties in top shape.",
			"A note from {business}: book {serviceLower} before the busy season reaches {city}.",
		},
		autopost.TemplateService: {
			"Need help with {serviceLower}? {business} is ready when you are.",
			"{business} takes care of last-minute {serviceLower} so you don't have to.",
		},
	}
)

var placeholderRegex = regexp.MustCompile(`\{(\w+)\}`)

// FormatTemplate replaces {key} placeholders; unknown keys become empty.
func FormatTemplate(tpl string, vars map[string]string) string {
	return placeholderRegex.ReplaceAllStringFunc(tpl, func(m string) string {
		return vars[m[1:len(m)-1]]
	})
}

// TemplatePost is the deterministic part of a composed post.
type TemplatePost struct {
	Template   autopost.Template
	Lines      []string // Body lines
	Continuity []string // Offer-independent reference lines: previous update and more info
	Hashtags   []string
	Site       string
	CTACode    string
	Next       autopost.CycleEntry
}

// Summary joins body and continuity lines, capped at MaxTemplateLength.
func (t TemplatePost) Summary() string {
	all := append(append([]string{}, t.Lines...), t.Continuity...)
	return truncate(strings.Join(all, "\n"), MaxTemplateLength)
}

// ResolveSite returns the link for a post: override, profile default, remote website, landing page.
func ResolveSite(prof *autopost.Profile, ov autopost.PostBody, basics autopost.Basics) string {
	for _, u := range []string{ov.LinkURL, prof.Defaults.LinkURL, basics.WebsiteURI, prof.LandingURL} {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

// ResolveCTA returns the CTA code for a post: override, profile default, LEARN_MORE.
func ResolveCTA(prof *autopost.Profile, ov autopost.PostBody) string {
	for _, c := range []string{ov.CTA, prof.Defaults.CTA} {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			return c
		}
	}
	return autopost.CTALearnMore
}

// BuildTemplate builds the template lines for the profile's current cycle position.
func BuildTemplate(prof *autopost.Profile, entry autopost.CycleEntry, ov autopost.PostBody, basics autopost.Basics) TemplatePost {
	idx := entry.Idx
	tpl := autopost.TemplateAt(idx)

	var keywords []string
	for _, k := range prof.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	city := strings.TrimSpace(prof.CityName())

	primary := firstNonEmpty(append(keywords, ov.ServiceType, prof.BusinessName, "local services")...)
	business := firstNonEmpty(prof.BusinessName, primary)

	var lines []string
	if len(keywords) > 0 {
		head := ""
		if city != "" {
			head = city + " • "
		}
		lines = append(lines, head+strings.Join(keywords[:min(3, len(keywords))], " · "))
	} else {
		lines = append(lines, firstNonEmpty(city, "Local")+" • "+primary)
	}

	vars := map[string]string{
		"business":     business,
		"city":         firstNonEmpty(city, "your area"),
		"service":      primary,
		"serviceLower": strings.ToLower(primary),
	}
	pick := func(pool Pool, seed string) string {
		return PickStable(pool, prof.ProfileID, fmt.Sprintf("%s:%d", seed, idx))
	}

	if intro := pick(introPool, "intro"); intro != "" {
		lines = append(lines, FormatTemplate(intro, vars))
	}
	messages, ok := messagePools[tpl]
	if !ok {
		messages = messagePools[autopost.TemplateService]
	}
	if msg := pick(messages, "message"); msg != "" {
		lines = append(lines, FormatTemplate(msg, vars))
	}
	vars["detailOne"] = pick(detailOnePool, "detail1")
	vars["detailTwo"] = pick(detailTwoPool, "detail2")
	if diff := pick(differentiatorPool, "diff"); diff != "" {
		lines = append(lines, FormatTemplate(diff, vars))
	}
	if tpl == autopost.TemplateOffer && strings.TrimSpace(ov.OfferTitle) != "" {
		lines = append(lines, "Special: "+strings.TrimSpace(ov.OfferTitle))
	}

	site := ResolveSite(prof, ov, basics)
	var continuity []string
	if entry.LastURL != "" {
		continuity = append(continuity, "Previous update: "+entry.LastURL)
	}
	if site != "" {
		continuity = append(continuity, "More info: "+site)
	}

	return TemplatePost{
		Template:   tpl,
		Lines:      lines,
		Continuity: continuity,
		Hashtags:   BuildHashtags(keywords, city, primary),
		Site:       site,
		CTACode:    ResolveCTA(prof, ov),
		Next:       autopost.CycleEntry{Idx: idx + 1, LastURL: entry.LastURL},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
