package gbp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Topic types of a local post.
const (
	TopicStandard = "STANDARD"
	TopicEvent    = "EVENT"
	TopicOffer    = "OFFER"
	TopicAlert    = "ALERT"
)

// CallToAction is the button attached to a post.
type CallToAction struct {
	ActionType string `json:"actionType"`
	URL        string `json:"url,omitempty"`
}

// Date is a calendar date without a time zone.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Schedule is the date range of an event.
type Schedule struct {
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
}

// Event describes an EVENT post.
type Event struct {
	Title    string   `json:"title"`
	Schedule Schedule `json:"schedule"`
}

// Offer describes an OFFER post.
type Offer struct {
	Summary       string `json:"summary,omitempty"`
	CouponCode    string `json:"couponCode,omitempty"`
	RedemptionURL string `json:"redemptionUrl,omitempty"`
}

// LocalPost is a post on a location. The name and search URL are set by the API.
type LocalPost struct {
	LanguageCode string        `json:"languageCode,omitempty"`
	TopicType    string        `json:"topicType"`
	Summary      string        `json:"summary,omitempty"`
	CallToAction *CallToAction `json:"callToAction,omitempty"`
	Media        []MediaItem   `json:"media,omitempty"`
	Event        *Event        `json:"event,omitempty"`
	Offer        *Offer        `json:"offer,omitempty"`

	Name      string `json:"name,omitempty"`
	SearchURL string `json:"searchUrl,omitempty"`
	State     string `json:"state,omitempty"`
}

// PostedURL is the public URL of a created post, or its resource name when none is given.
func (p *LocalPost) PostedURL() string {
	if p.SearchURL != "" {
		return p.SearchURL
	}
	return p.Name
}

// Location identifies a location under an account.
type Location struct {
	AccountID  string
	LocationID string
}

var errNoAccount = errors.New("profile missing accountId")
var errNoLocation = errors.New("profile missing locationId")

func (l Location) validate() error {
	if l.LocationID == "" {
		return errNoLocation
	}
	return nil
}

// CreateLocalPost publishes a post. It is attempted once.
func (c *Client) CreateLocalPost(ctx context.Context, loc Location, post *LocalPost) (*LocalPost, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	if loc.AccountID == "" {
		return nil, errNoAccount
	}
	path := fmt.Sprintf("accounts/%s/locations/%s/localPosts", url.PathEscape(loc.AccountID), url.PathEscape(loc.LocationID))
	var created LocalPost
	if err := c.post(ctx, path, post, &created); err != nil {
		return nil, fmt.Errorf("create local post: %w", err)
	}
	c.logger.Info("Created local post", "location_id", loc.LocationID, "name", created.Name)
	return &created, nil
}
