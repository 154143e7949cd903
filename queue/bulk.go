package queue

import (
	"errors"
	"time"

	"gbp-autoposter/pkg/autopost"
)

// BulkRequest describes a series of image posts spaced by a fixed number of days.
type BulkRequest struct {
	ProfileID   string
	Images      []string
	StartAt     time.Time // Zero means one hour from now
	CadenceDays int       // Values below 1 are treated as 1
	Body        autopost.PostBody
}

// BuildBulk expands a bulk request into scheduled items, one image per item.
// Image references are made absolute against mediaBase; unresolvable ones are skipped.
func BuildBulk(req BulkRequest, mediaBase string, now time.Time) ([]autopost.ScheduledItem, error) {
	if req.ProfileID == "" {
		return nil, errors.New("missing profileId")
	}
	var images []string
	for _, img := range req.Images {
		if u := autopost.AbsoluteMediaURL(mediaBase, img); u != "" {
			images = append(images, u)
		}
	}
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}

	start := req.StartAt
	if start.IsZero() {
		start = now.Add(time.Hour)
	}
	days := req.CadenceDays
	if days < 1 {
		days = 1
	}

	body := req.Body
	body.MediaURL = ""
	body.ProfileID = req.ProfileID

	items := make([]autopost.ScheduledItem, len(images))
	for i, img := range images {
		b := body
		b.MediaURL = img
		items[i] = autopost.ScheduledItem{
			ProfileID: req.ProfileID,
			RunAt:     start.Add(time.Duration(i*days) * 24 * time.Hour).UTC(),
			Body:      b,
		}
	}
	return items, nil
}
