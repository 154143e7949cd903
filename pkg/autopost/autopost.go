// Package autopost contains the core domain types for the business profile autoposter.
package autopost

import "time"

// Profile is one managed business listing and its posting configuration.
type Profile struct {
	ProfileID      string   `json:"profileId"`  // Stable internal key, falls back to LocationID
	AccountID      string   `json:"accountId"`  // Remote account identity
	LocationID     string   `json:"locationId"` // Remote location identity
	StoreCode      string   `json:"storeCode,omitempty"`
	BusinessName   string   `json:"businessName"`
	City           string   `json:"city"`
	Region         string   `json:"region,omitempty"` // Used when City is empty
	Neighbourhoods []string `json:"neighbourhoods"`
	Keywords       []string `json:"keywords"` // Service types, most important first
	LandingURL     string   `json:"landingUrl"`
	PhotoPool      []Photo  `json:"photoPool"` // FIFO, consumed head-first
	Defaults       Defaults `json:"defaults"`
	Disabled       bool     `json:"disabled"`

	// LocaleOverrideCity forces the city used for locale qualification.
	LocaleOverrideCity string `json:"localeOverrideCity,omitempty"`
	// CuratedNeighbourhoods are preferred sub-areas for locale qualification.
	CuratedNeighbourhoods []string `json:"curatedNeighbourhoods,omitempty"`
}

// CityName returns the recorded city, or the region when no city is set.
func (p *Profile) CityName() string {
	if p.City != "" {
		return p.City
	}
	return p.Region
}

// Photo is an image waiting in a profile's photo pool.
type Photo struct {
	URL         string    `json:"url"`
	ServiceType string    `json:"serviceType,omitempty"`
	Captions    []string  `json:"captions,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// Defaults are per-profile posting defaults.
type Defaults struct {
	CTA             string   `json:"cta,omitempty"`
	LinkURL         string   `json:"linkUrl,omitempty"`
	MediaURL        string   `json:"mediaUrl,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	LinkOptions     []string `json:"linkOptions,omitempty"`
	ReviewLink      string   `json:"reviewLink,omitempty"`
	ServiceAreaLink string   `json:"serviceAreaLink,omitempty"`
	AreaMapLink     string   `json:"areaMapLink,omitempty"`
}

// Basics are the remote listing attributes fetched before a post.
type Basics struct {
	WebsiteURI   string `json:"websiteUri"`
	PrimaryPhone string `json:"primaryPhone"`
	MapsURI      string `json:"mapsUri"`
	ReviewURI    string `json:"reviewUri"`
}

// Template is a canned content shape in the rotation.
type Template string

// Templates in rotation order.
const (
	TemplateService     Template = "SERVICE"
	TemplateOffer       Template = "OFFER"
	TemplateTip         Template = "TIP"
	TemplateSocialProof Template = "SOCIAL_PROOF"
)

// Cycle is the fixed template rotation.
var Cycle = []Template{TemplateService, TemplateOffer, TemplateTip, TemplateSocialProof}

// TemplateAt returns the template selected by a cycle index.
func TemplateAt(idx int) Template {
	if idx < 0 {
		idx = -idx
	}
	return Cycle[idx%len(Cycle)]
}

// CycleEntry tracks one profile's position in the template rotation.
type CycleEntry struct {
	Idx     int    `json:"idx"`
	LastURL string `json:"lastUrl"`
}

// CycleState maps profileId to its rotation entry.
type CycleState map[string]CycleEntry

// Status is the lifecycle state of a scheduled item.
type Status string

// Scheduled item statuses. QUEUED is the only non-terminal state.
const (
	StatusQueued Status = "QUEUED"
	StatusPosted Status = "POSTED"
	StatusFailed Status = "FAILED"
)

// PostBody holds the content overrides of a post request or scheduled item.
type PostBody struct {
	ProfileID           string `json:"profileId,omitempty"`
	PostText            string `json:"postText,omitempty"`
	MediaURL            string `json:"mediaUrl,omitempty"`
	Caption             string `json:"caption,omitempty"`
	CTA                 string `json:"cta,omitempty"`
	LinkURL             string `json:"linkUrl,omitempty"`
	Phone               string `json:"phone,omitempty"`
	OverlayURL          string `json:"overlayUrl,omitempty"`
	ServiceType         string `json:"serviceType,omitempty"`
	TopicType           string `json:"topicType,omitempty"`
	EventTitle          string `json:"eventTitle,omitempty"`
	EventStart          string `json:"eventStart,omitempty"`
	EventEnd            string `json:"eventEnd,omitempty"`
	OfferTitle          string `json:"offerTitle,omitempty"`
	OfferCoupon         string `json:"offerCoupon,omitempty"`
	OfferRedeemURL      string `json:"offerRedeemUrl,omitempty"`
	AutoGenerateSummary bool   `json:"autoGenerateSummary,omitempty"`
}

// ScheduledItem is a durable unit of future work in the post or photo queue.
type ScheduledItem struct {
	ID        string     `json:"id"`
	ProfileID string     `json:"profileId"`
	RunAt     time.Time  `json:"runAt"`
	CreatedAt time.Time  `json:"createdAt"`
	Body      PostBody   `json:"body"`
	Status    Status     `json:"status"`
	PostedAt  *time.Time `json:"postedAt,omitempty"`
	LastURL   string     `json:"lastUrl,omitempty"`   // Posts only
	LastError string     `json:"lastError,omitempty"` // Set when FAILED
}

// Due reports whether the item should be attempted at now.
func (s *ScheduledItem) Due(now time.Time) bool {
	return s.Status == StatusQueued && !s.RunAt.After(now)
}

// HistoryEntry records one publish attempt.
type HistoryEntry struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	ProfileID    string    `json:"profileId"`
	ProfileName  string    `json:"profileName"`
	LocationID   string    `json:"locationId"`
	Summary      string    `json:"summary"`
	MediaCount   int       `json:"mediaCount"`
	UsedImage    string    `json:"usedImage,omitempty"`
	CTA          string    `json:"cta,omitempty"`
	LinkURL      string    `json:"linkUrl,omitempty"`
	PostedURL    string    `json:"postedUrl,omitempty"`
	Status       Status    `json:"status"`
	RemotePostID string    `json:"remotePostId,omitempty"`
	OverlayURL   string    `json:"overlayUrl,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// State is the set of documents a tick reads at start and writes back at end.
type State struct {
	Profiles []Profile
	Config   SchedulerConfig
	LastRun  LastRunMap
	Cycle    CycleState
	History  []HistoryEntry
}

// Failure is one failed unit of work in a tick, reported in alerts.
type Failure struct {
	Kind      string    `json:"kind"` // photo, post or cadence
	ProfileID string    `json:"profileId"`
	ItemID    string    `json:"itemId,omitempty"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}
