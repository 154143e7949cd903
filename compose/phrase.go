// Package compose builds post text, hashtags and call-to-action choices for a profile.
package compose

import (
	"math/rand/v2"
	"sync"
	"unicode/utf16"
)

// Pool is a fixed list of phrasing variants.
type Pool []string

// Selector picks one entry from a pool.
type Selector interface {
	Pick(pool Pool) string
}

// Rand is the random source behind a RandSelector.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// RandSelector picks uniformly at random.
type RandSelector struct {
	mu  sync.Mutex
	rng Rand
}

// NewRandSelector creates a selector. A nil rng uses the process-wide source.
func NewRandSelector(rng Rand) *RandSelector {
	if rng == nil {
		rng = globalRand{}
	}
	return &RandSelector{rng: rng}
}

// Pick returns a uniformly chosen entry, or "" for an empty pool.
func (s *RandSelector) Pick(pool Pool) string {
	if len(pool) == 0 {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return pool[s.rng.IntN(len(pool))]
}

// StableSelector picks by hashing a profile id and seed, so the same inputs always give the same entry.
type StableSelector struct {
	ProfileID string
	Seed      string
}

// Pick returns the entry selected by the profile id and seed.
func (s StableSelector) Pick(pool Pool) string {
	return PickStable(pool, s.ProfileID, s.Seed)
}

// StableHash is a 32-bit rolling hash (h*31 + c) over UTF-16 code units.
// It matches the widely used string hashCode so selections stay stable across deployments.
func StableHash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return h
}

// PickStable returns pool[|hash(profileID:seed)| mod len(pool)], or "" for an empty pool.
func PickStable(pool Pool, profileID, seed string) string {
	if len(pool) == 0 {
		return ""
	}
	h := int64(StableHash(profileID + ":" + seed))
	if h < 0 {
		h = -h
	}
	return pool[h%int64(len(pool))]
}
