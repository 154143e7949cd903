package publish

import (
	"context"
	"fmt"
	"strings"

	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
)

// MaxPhotoDescription caps the caption stored with a library photo.
const MaxPhotoDescription = 1500

// UploadPhoto adds an image to the profile's photo library. An empty mediaURL uses the profile default.
func (p *Publisher) UploadPhoto(ctx context.Context, prof *autopost.Profile, mediaURL, caption string) (*gbp.MediaItem, error) {
	if prof.LocationID == "" {
		return nil, fmt.Errorf("profile %s missing locationId", prof.ProfileID)
	}
	raw := strings.TrimSpace(mediaURL)
	if raw == "" {
		raw = prof.Defaults.MediaURL
	}
	u := autopost.AbsoluteMediaURL(p.mediaBase, raw)
	if !autopost.IsHTTPSImage(u) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMedia, raw)
	}

	item := gbp.Photo(u)
	item.LocationAssociation = &gbp.LocationAssociation{Category: "ADDITIONAL"}
	if c := strings.TrimSpace(caption); c != "" {
		if r := []rune(c); len(r) > MaxPhotoDescription {
			c = string(r[:MaxPhotoDescription])
		}
		item.Description = c
	}

	created, err := p.api.UploadMedia(ctx, gbp.Location{AccountID: prof.AccountID, LocationID: prof.LocationID}, item)
	if err != nil {
		return nil, fmt.Errorf("upload photo for %s: %w", prof.ProfileID, err)
	}
	p.logger.Info("Uploaded photo", "profile_id", prof.ProfileID, "media_url", u)
	return created, nil
}
