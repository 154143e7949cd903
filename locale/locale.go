// Package locale picks the place qualifier mentioned in a post.
package locale

import (
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"gbp-autoposter/pkg/autopost"
)

// Rand is the random source used for weighted choices.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Weights are the probabilities of each choice. They are tuning knobs.
type Weights struct {
	City      float64 // Pick the city alone, for override profiles
	CityPair  float64 // Given City, join "focus & raw" when they differ
	Flagship  float64 // Override profiles: pick from the flagship pool rather than all neighbourhoods
	PlainCity float64 // Pick the city alone, for other profiles
	EmptyPair float64 // With no neighbourhoods, join "focus & raw" when they differ
}

// DefaultWeights favour the city, then curated flagship neighbourhoods.
var DefaultWeights = Weights{
	City:      0.45,
	CityPair:  0.6,
	Flagship:  0.7,
	PlainCity: 0.5,
	EmptyPair: 0.5,
}

// DefaultFlagships holds curated sub-area lists keyed by lower-case city name.
var DefaultFlagships = map[string][]string{
	"calgary": {
		"NW Calgary", "SW Calgary", "SE Calgary", "NE Calgary", "Beltline",
		"Bridgeland", "Kensington", "Inglewood", "Marda Loop", "Mission",
		"Altadore", "Mount Royal", "Killarney", "West Springs", "Aspen Woods",
		"Lake Bonavista", "Mahogany", "Seton", "Sage Hill", "Evanston",
		"Auburn Bay", "Varsity", "Dalhousie", "Brentwood", "Crescent Heights",
		"Ramsay", "Renfrew", "Signal Hill", "Cougar Ridge",
	},
}

// Context is the resolved city information of a profile.
type Context struct {
	RawCity   string // City recorded on the profile
	FocusCity string // City used for qualification
	Forced    bool   // FocusCity comes from a locale override
}

// Differs reports whether the forced city and the recorded city are distinct names.
func (c Context) Differs() bool {
	return c.RawCity != "" && c.FocusCity != "" && !strings.EqualFold(c.RawCity, c.FocusCity)
}

// Pair joins the focus and raw city.
func (c Context) Pair() string {
	return c.FocusCity + " & " + c.RawCity
}

// Picker chooses a locale string for a profile.
type Picker struct {
	Flagships map[string][]string
	Weights   Weights

	mu  sync.Mutex
	rng Rand
}

// New creates a picker. A nil rng uses the process-wide source.
func New(rng Rand) *Picker {
	if rng == nil {
		rng = globalRand{}
	}
	return &Picker{
		Flagships: DefaultFlagships,
		Weights:   DefaultWeights,
		rng:       rng,
	}
}

func (p *Picker) float() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func (p *Picker) choose(pool []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rng.IntN(len(pool))]
}

// CityContext resolves the raw and focus city of a profile.
func (p *Picker) CityContext(prof *autopost.Profile) Context {
	raw := strings.TrimSpace(prof.CityName())
	ctx := Context{RawCity: raw, FocusCity: raw}
	if o := strings.TrimSpace(prof.LocaleOverrideCity); o != "" {
		ctx.FocusCity = o
		ctx.Forced = true
	}
	return ctx
}

// Pools returns the flagship pool and the merged pool of all candidate neighbourhoods.
func (p *Picker) Pools(prof *autopost.Profile) (flagship, merged []string) {
	ctx := p.CityContext(prof)
	focus := strings.ToLower(ctx.FocusCity)
	if focus != "" {
		for _, city := range slices.Sorted(maps.Keys(p.Flagships)) {
			if strings.Contains(focus, city) {
				flagship = append(flagship, p.Flagships[city]...)
			}
		}
	}
	flagship = dedupe(append(flagship, prof.CuratedNeighbourhoods...))
	merged = dedupe(append(append([]string{}, prof.Neighbourhoods...), flagship...))
	return flagship, merged
}

// Pick returns a place qualifier for the profile, or "" when nothing is known.
func (p *Picker) Pick(prof *autopost.Profile) string {
	ctx := p.CityContext(prof)
	flagship, merged := p.Pools(prof)
	w := p.Weights

	if len(merged) == 0 {
		if ctx.FocusCity == "" {
			return ""
		}
		if ctx.Forced && ctx.Differs() && p.float() < w.EmptyPair {
			return ctx.Pair()
		}
		return ctx.FocusCity
	}

	cityWeight := w.PlainCity
	if ctx.Forced {
		cityWeight = w.City
	}
	if ctx.FocusCity != "" && p.float() < cityWeight {
		if ctx.Forced && ctx.Differs() && p.float() < w.CityPair {
			return ctx.Pair()
		}
		return ctx.FocusCity
	}
	if ctx.Forced && len(flagship) > 0 && p.float() < w.Flagship {
		return p.choose(flagship)
	}
	return p.choose(merged)
}

// Area returns picked when it names a sub-area, or "" when it is empty, the
// city itself or a joined city pair.
func Area(picked string, ctx Context) string {
	picked = strings.TrimSpace(picked)
	switch {
	case picked == "", strings.Contains(picked, "&"),
		strings.EqualFold(picked, ctx.FocusCity), strings.EqualFold(picked, ctx.RawCity):
		return ""
	}
	return picked
}

// WhereOptions lists the location phrasings a prompt may use for a picked qualifier.
// Callers choose one so repeated posts do not share the same wording.
func WhereOptions(picked string, ctx Context) []string {
	city := ctx.FocusCity
	if city == "" {
		city = ctx.RawCity
	}
	pair := ctx.Forced && ctx.Differs()

	area := Area(picked, ctx)
	if area == "" {
		if p := strings.TrimSpace(picked); p != "" {
			return []string{p}
		}
		if city == "" {
			return nil
		}
		if pair {
			return []string{ctx.Pair(), city + " / " + ctx.RawCity}
		}
		return []string{city}
	}
	if city == "" || strings.Contains(strings.ToLower(area), strings.ToLower(city)) {
		return []string{area}
	}

	opts := []string{
		area + ", " + city,
		area + " in " + city,
		city + ", including " + area,
		area + " and nearby " + city,
	}
	if ctx.Forced {
		if pair {
			opts = append(opts, area+" between "+ctx.Pair(), ctx.Pair(), city+" / "+ctx.RawCity)
		}
	} else {
		opts = append(opts, "the "+area+" area of "+city, area+" / "+city)
	}
	return dedupe(opts)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
