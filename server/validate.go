package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"gbp-autoposter/compose"
	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/queue"
)

const defaultCaptionCount = 3

type scheduleRequest struct {
	ProfileID string            `json:"profileId"`
	RunAt     string            `json:"runAt"`
	Body      autopost.PostBody `json:"body"`
}

func (r scheduleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.RunAt, validation.Required, validation.Date(time.RFC3339)),
	)
}

func (r scheduleRequest) item() autopost.ScheduledItem {
	runAt, _ := time.Parse(time.RFC3339, r.RunAt) //nolint:errcheck // validated
	body := r.Body
	body.ProfileID = r.ProfileID
	return autopost.ScheduledItem{ProfileID: r.ProfileID, RunAt: runAt, Body: body}
}

type bulkRequest struct {
	ProfileID   string            `json:"profileId"`
	Images      []string          `json:"images"`
	StartAt     string            `json:"startAt"`
	CadenceDays int               `json:"cadenceDays"`
	Body        autopost.PostBody `json:"body"`
}

func (r bulkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.Images, validation.Required.Error("no images provided")),
		validation.Field(&r.StartAt, validation.Date(time.RFC3339)),
		validation.Field(&r.CadenceDays, validation.Min(1), validation.Max(autopost.MaxIntervalDays)),
	)
}

func (r bulkRequest) bulk() queue.BulkRequest {
	var start time.Time
	if r.StartAt != "" {
		start, _ = time.Parse(time.RFC3339, r.StartAt) //nolint:errcheck // validated
	}
	return queue.BulkRequest{
		ProfileID:   r.ProfileID,
		Images:      r.Images,
		StartAt:     start,
		CadenceDays: r.CadenceDays,
		Body:        r.Body,
	}
}

type updateRequest struct {
	RunAt string             `json:"runAt"`
	Body  *autopost.PostBody `json:"body"`
}

func (r updateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RunAt, validation.Date(time.RFC3339)),
	)
}

func (r updateRequest) patch() queue.Patch {
	var p queue.Patch
	if r.RunAt != "" {
		t, _ := time.Parse(time.RFC3339, r.RunAt) //nolint:errcheck // validated
		p.RunAt = &t
	}
	p.Body = r.Body
	return p
}

type commitRequest struct {
	Items []autopost.ScheduledItem `json:"items"`
}

func (r commitRequest) Validate() error {
	if len(r.Items) == 0 {
		return badRequest(errors.New("no items provided"))
	}
	for i, it := range r.Items {
		if it.ProfileID == "" {
			return badRequest(fmt.Errorf("items[%d]: missing profileId", i))
		}
		if it.RunAt.IsZero() {
			return badRequest(fmt.Errorf("items[%d]: missing runAt", i))
		}
	}
	return nil
}

type captionsRequest struct {
	ProfileID string `json:"profileId"`
	Count     int    `json:"count"`
}

func (r captionsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.Count, validation.Min(1), validation.Max(compose.MaxCaptions)),
	)
}

type photoNowRequest struct {
	ProfileID string `json:"profileId"`
	MediaURL  string `json:"mediaUrl"`
	Caption   string `json:"caption"`
}

func (r photoNowRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProfileID, validation.Required),
		validation.Field(&r.MediaURL, validation.Required),
	)
}

type photosRequest struct {
	Photos []autopost.PhotoInput `json:"photos"`
}

func (r photosRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Photos, validation.Required),
	)
}

type bulkAccessRequest struct {
	Enabled *bool `json:"enabled"`
}

func (r bulkAccessRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Enabled, validation.NotNil),
	)
}

type harvestRequest struct {
	URL string `json:"url"`
}

func (r harvestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.Length(0, 2048)),
	)
}

type profilesRequest struct {
	Profiles []autopost.Profile `json:"profiles"`
}

func (r profilesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Profiles, validation.NotNil),
	)
}

// decodeValid decodes a JSON body into v and runs its validation rules.
func decodeValid(w http.ResponseWriter, r *http.Request, v validation.Validatable) error {
	if err := decodeJSON(w, r, v); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return badRequest(err)
	}
	return nil
}
