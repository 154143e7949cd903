package autopost

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// MaxPhotoPool is the number of newest photos kept in a pool.
	MaxPhotoPool = 200
	// MaxPhotoCaptions is the number of captions kept per photo.
	MaxPhotoCaptions = 5
)

// ErrProfileNotFound is returned when no profile matches an id.
var ErrProfileNotFound = errors.New("profile not found")

// NormalizeProfiles fills empty ids and nil slices so stored profiles have a consistent shape.
// Profiles that end up without any id are dropped, as are later duplicates of an id.
func NormalizeProfiles(list []Profile) []Profile {
	out := make([]Profile, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, p := range list {
		p.ProfileID = strings.TrimSpace(p.ProfileID)
		if p.ProfileID == "" {
			p.ProfileID = strings.TrimSpace(p.LocationID)
		}
		if p.ProfileID == "" || seen[p.ProfileID] {
			continue
		}
		seen[p.ProfileID] = true
		if p.Neighbourhoods == nil {
			p.Neighbourhoods = []string{}
		}
		if p.Keywords == nil {
			p.Keywords = []string{}
		}
		if p.PhotoPool == nil {
			p.PhotoPool = []Photo{}
		}
		out = append(out, p)
	}
	return out
}

// FindProfile returns the index of the profile with the given id, or -1.
func FindProfile(list []Profile, id string) int {
	for i := range list {
		if list[i].ProfileID == id {
			return i
		}
	}
	return -1
}

// ActiveProfiles returns the profiles that are not disabled.
func ActiveProfiles(list []Profile) []Profile {
	var out []Profile
	for _, p := range list {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	return out
}

// PhotoInput is a photo submitted to a profile's pool.
type PhotoInput struct {
	URL         string   `json:"url"`
	ServiceType string   `json:"serviceType,omitempty"`
	Captions    []string `json:"captions,omitempty"`
}

// AppendPhotos adds photos to the pool, keeping the newest MaxPhotoPool entries.
// Relative URLs are made absolute against mediaBase.
func AppendPhotos(p *Profile, photos []PhotoInput, mediaBase string, now time.Time) (int, error) {
	added := 0
	for _, in := range photos {
		u := AbsoluteMediaURL(mediaBase, in.URL)
		if u == "" {
			continue
		}
		var captions []string
		for _, c := range in.Captions {
			if c = strings.TrimSpace(c); c != "" {
				captions = append(captions, c)
			}
			if len(captions) == MaxPhotoCaptions {
				break
			}
		}
		p.PhotoPool = append(p.PhotoPool, Photo{
			URL:         u,
			ServiceType: strings.TrimSpace(in.ServiceType),
			Captions:    captions,
			AddedAt:     now.UTC(),
		})
		added++
	}
	if added == 0 {
		return 0, errors.New("no valid photo urls provided")
	}
	if over := len(p.PhotoPool) - MaxPhotoPool; over > 0 {
		p.PhotoPool = p.PhotoPool[over:]
	}
	return added, nil
}

// RemovePhoto drops the first pool entry with the given URL.
func RemovePhoto(p *Profile, url string) bool {
	for i, ph := range p.PhotoPool {
		if ph.URL == url {
			p.PhotoPool = append(p.PhotoPool[:i:i], p.PhotoPool[i+1:]...)
			return true
		}
	}
	return false
}

// DefaultsPatch is a partial update of a profile's defaults. Nil fields are left unchanged.
type DefaultsPatch struct {
	CTA             *string  `json:"cta"`
	LinkURL         *string  `json:"linkUrl"`
	MediaURL        *string  `json:"mediaUrl"`
	Phone           *string  `json:"phone"`
	LinkOptions     []string `json:"linkOptions"`
	ReviewLink      *string  `json:"reviewLink"`
	ServiceAreaLink *string  `json:"serviceAreaLink"`
	AreaMapLink     *string  `json:"areaMapLink"`
	Disabled        *bool    `json:"disabled"`
}

// ApplyDefaults merges a defaults patch into the profile.
func ApplyDefaults(p *Profile, patch DefaultsPatch) error {
	if patch.CTA != nil {
		cta := strings.ToUpper(strings.TrimSpace(*patch.CTA))
		if cta != "" && !KnownCTA(cta) {
			return fmt.Errorf("unknown cta %q", cta)
		}
		p.Defaults.CTA = cta
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&p.Defaults.LinkURL, patch.LinkURL)
	set(&p.Defaults.MediaURL, patch.MediaURL)
	set(&p.Defaults.Phone, patch.Phone)
	set(&p.Defaults.ReviewLink, patch.ReviewLink)
	set(&p.Defaults.ServiceAreaLink, patch.ServiceAreaLink)
	set(&p.Defaults.AreaMapLink, patch.AreaMapLink)
	if patch.LinkOptions != nil {
		var opts []string
		for _, o := range patch.LinkOptions {
			if o = strings.TrimSpace(o); o != "" {
				opts = append(opts, o)
			}
		}
		p.Defaults.LinkOptions = opts
	}
	if patch.Disabled != nil {
		p.Disabled = *patch.Disabled
	}
	return nil
}

// MergeLocations merges remotely listed profiles into the stored list by locationId.
// Existing profiles keep their local settings; remote identity and descriptive fields are refreshed.
func MergeLocations(existing, remote []Profile) (merged []Profile, added int) {
	merged = append([]Profile(nil), existing...)
	byLocation := make(map[string]int, len(merged))
	for i, p := range merged {
		if p.LocationID != "" {
			byLocation[p.LocationID] = i
		}
	}
	for _, r := range remote {
		if i, ok := byLocation[r.LocationID]; ok {
			cur := &merged[i]
			cur.AccountID = r.AccountID
			if r.BusinessName != "" {
				cur.BusinessName = r.BusinessName
			}
			if cur.City == "" {
				cur.City = r.City
			}
			if cur.LandingURL == "" {
				cur.LandingURL = r.LandingURL
			}
			if cur.StoreCode == "" {
				cur.StoreCode = r.StoreCode
			}
			continue
		}
		if r.ProfileID == "" {
			r.ProfileID = RemoteProfileID(r.AccountID, r.LocationID, r.StoreCode)
		}
		byLocation[r.LocationID] = len(merged)
		merged = append(merged, r)
		added++
	}
	return NormalizeProfiles(merged), added
}

// RemoteProfileID derives a profile id for a location discovered remotely.
func RemoteProfileID(accountID, locationID, storeCode string) string {
	if storeCode != "" {
		return "profile-" + storeCode
	}
	return "profile-" + accountID + "-" + locationID
}
