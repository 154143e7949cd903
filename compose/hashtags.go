package compose

import (
	"strings"
	"unicode"

	"gbp-autoposter/locale"
)

// MaxHashtags is the most hashtags a post carries.
const MaxHashtags = 12

// minHashtags is the floor applied when enough candidates exist.
const minHashtags = 8

// HashtagLabel turns free text into a hashtag body: words are title-cased and joined,
// punctuation is dropped, short all-caps words like NW stay upper case.
func HashtagLabel(s string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) <= 3 && strings.ToUpper(word) == word {
			b.WriteString(word)
			continue
		}
		r := []rune(strings.ToLower(word))
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// BuildHashtags derives hashtags from keywords, city and primary service.
// The result is deduplicated and holds between 8 and 12 tags when that many candidates exist.
func BuildHashtags(keywords []string, city, service string) []string {
	cityTag := HashtagLabel(city)
	var candidates []string
	for _, kw := range keywords[:min(6, len(keywords))] {
		kwTag := HashtagLabel(kw)
		if kwTag == "" {
			continue
		}
		candidates = append(candidates, "#"+kwTag)
		if cityTag != "" {
			candidates = append(candidates, "#"+cityTag+kwTag)
		}
	}
	if cityTag != "" {
		candidates = append(candidates, "#"+cityTag, "#"+cityTag+"Local")
	}
	if svc := HashtagLabel(service); svc != "" {
		candidates = append(candidates, "#"+svc)
		if cityTag != "" {
			candidates = append(candidates, "#"+cityTag+svc)
		}
	}

	tags := MergeHashtags(candidates)
	limit := min(MaxHashtags, max(minHashtags, len(tags)))
	return tags[:min(limit, len(tags))]
}

// NormalizeHashtag trims a tag, removes inner spaces and enforces the leading '#'.
func NormalizeHashtag(tag string) string {
	tag = strings.Join(strings.Fields(tag), "")
	tag = strings.TrimLeft(tag, "#")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// MergeHashtags joins lists in order, dropping case-insensitive duplicates, capped at MaxHashtags.
func MergeHashtags(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, t := range list {
			t = NormalizeHashtag(t)
			k := strings.ToLower(t)
			if t == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, t)
			if len(out) == MaxHashtags {
				return out
			}
		}
	}
	return out
}

// SafeJoinHashtags joins tags with spaces, greedily, stopping before the
// first tag that would make the result longer than limit characters.
func SafeJoinHashtags(tags []string, limit int) string {
	var b strings.Builder
	n := 0
	for _, t := range tags {
		t = NormalizeHashtag(t)
		if t == "" {
			continue
		}
		need := len([]rune(t))
		if n > 0 {
			need++
		}
		if n+need > limit {
			break
		}
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
		n += need
	}
	return b.String()
}

// BoostLocationHashtags puts location tags ahead of tags for profiles with a
// locale override: the focus city, the recorded city when it differs, then
// the picked area and the area joined with the focus city. Tags already
// present keep their place. Profiles without an override get tags unchanged.
func BoostLocationHashtags(tags []string, ctx locale.Context, picked string) []string {
	if !ctx.Forced {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[strings.ToLower(NormalizeHashtag(t))] = true
	}
	var front []string
	add := func(label string) {
		tag := NormalizeHashtag(HashtagLabel(label))
		k := strings.ToLower(tag)
		if tag == "" || seen[k] {
			return
		}
		seen[k] = true
		front = append(front, tag)
	}

	add(ctx.FocusCity)
	if ctx.Differs() {
		add(ctx.RawCity)
	}
	if area := locale.Area(picked, ctx); area != "" {
		add(area)
		if !strings.Contains(strings.ToLower(area), strings.ToLower(ctx.FocusCity)) {
			add(area + " " + ctx.FocusCity)
		}
	}
	return append(front, tags...)
}
