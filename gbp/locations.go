package gbp

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/mybusinessaccountmanagement/v1"
	"google.golang.org/api/mybusinessbusinessinformation/v1"

	"gbp-autoposter/pkg/autopost"
)

const (
	basicsReadMask   = "websiteUri,phoneNumbers,metadata"
	locationReadMask = "name,title,storeCode,storefrontAddress,websiteUri"
)

// Basics fetches the listing attributes used to resolve links and phones.
func (c *Client) Basics(ctx context.Context, locationID string) (autopost.Basics, error) {
	if locationID == "" {
		return autopost.Basics{}, errNoLocation
	}
	name := "locations/" + locationID

	var loc *mybusinessbusinessinformation.Location
	var last error
	err := retry.Do(func() error {
		loc, last = c.info.Locations.Get(name).ReadMask(basicsReadMask).Context(ctx).Do()
		if last != nil && !retryable(last) {
			return retry.Unrecoverable(last)
		}
		return last
	}, c.retryOptions(ctx, "locations.get")...)
	if err != nil {
		if last != nil {
			err = last
		}
		return autopost.Basics{}, fmt.Errorf("get location %s: %w", locationID, err)
	}

	b := autopost.Basics{WebsiteURI: loc.WebsiteUri}
	if loc.PhoneNumbers != nil {
		b.PrimaryPhone = loc.PhoneNumbers.PrimaryPhone
	}
	if loc.Metadata != nil {
		b.MapsURI = loc.Metadata.MapsUri
		b.ReviewURI = loc.Metadata.NewReviewUri
	}
	return b, nil
}

// RemoteLocation is a location as listed by the API.
type RemoteLocation struct {
	AccountID  string
	LocationID string
	StoreCode  string
	Title      string
	City       string
	Region     string
	WebsiteURI string
}

// ListLocations returns every location of every account the token can see.
func (c *Client) ListLocations(ctx context.Context) ([]RemoteLocation, error) {
	var accounts []*mybusinessaccountmanagement.Account
	err := c.accounts.Accounts.List().Pages(ctx, func(resp *mybusinessaccountmanagement.ListAccountsResponse) error {
		accounts = append(accounts, resp.Accounts...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var out []RemoteLocation
	for _, acct := range accounts {
		accountID := strings.TrimPrefix(acct.Name, "accounts/")
		err := c.info.Accounts.Locations.List(acct.Name).
			ReadMask(locationReadMask).
			PageSize(100).
			Pages(ctx, func(resp *mybusinessbusinessinformation.ListLocationsResponse) error {
				for _, loc := range resp.Locations {
					out = append(out, remoteLocation(accountID, loc))
				}
				return nil
			})
		if err != nil {
			return nil, fmt.Errorf("list locations for %s: %w", acct.Name, err)
		}
	}
	c.logger.Info("Listed remote locations", "accounts", len(accounts), "locations", len(out))
	return out, nil
}

func remoteLocation(accountID string, loc *mybusinessbusinessinformation.Location) RemoteLocation {
	r := RemoteLocation{
		AccountID:  accountID,
		LocationID: strings.TrimPrefix(loc.Name, "locations/"),
		StoreCode:  loc.StoreCode,
		Title:      loc.Title,
		WebsiteURI: loc.WebsiteUri,
	}
	if a := loc.StorefrontAddress; a != nil {
		r.City = a.Locality
		r.Region = a.AdministrativeArea
	}
	return r
}

// Profiles converts remote locations into profiles ready to be merged.
func Profiles(locs []RemoteLocation) []autopost.Profile {
	out := make([]autopost.Profile, 0, len(locs))
	for _, l := range locs {
		out = append(out, autopost.Profile{
			ProfileID:      autopost.RemoteProfileID(l.AccountID, l.LocationID, l.StoreCode),
			AccountID:      l.AccountID,
			LocationID:     l.LocationID,
			StoreCode:      l.StoreCode,
			BusinessName:   l.Title,
			City:           l.City,
			Region:         l.Region,
			LandingURL:     l.WebsiteURI,
			Neighbourhoods: []string{},
			Keywords:       []string{},
			PhotoPool:      []autopost.Photo{},
		})
	}
	return out
}
