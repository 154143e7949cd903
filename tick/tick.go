// Package tick runs one pass of scheduled work: queued photos, queued posts, then recurring posts.
package tick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gbp-autoposter/cadence"
	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/publish"
)

// Failure kinds.
const (
	KindPhoto   = "photo"
	KindPost    = "post"
	KindCadence = "cadence"
)

// FailurePolicy decides what happens to a queued post whose publish failed.
type FailurePolicy string

const (
	// PolicyFail marks the item FAILED; a human must re-enqueue it.
	PolicyFail FailurePolicy = "fail"
	// PolicyRetry leaves the item QUEUED so the next tick attempts it again.
	PolicyRetry FailurePolicy = "retry"
)

// ParsePolicy returns the policy named by s, defaulting to PolicyFail.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicyRetry:
		return PolicyRetry, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// Store loads and saves the documents a tick works on.
type Store interface {
	LoadState(ctx context.Context) (*autopost.State, error)
	SaveState(ctx context.Context, st *autopost.State) error
}

// Queue is a scheduled-item queue consumed by the tick.
type Queue interface {
	ListDue(ctx context.Context, now time.Time) ([]autopost.ScheduledItem, error)
	MarkPosted(ctx context.Context, id, postedURL string) error
	MarkFailed(ctx context.Context, id string, cause error) error
}

// Publisher publishes posts and photos.
type Publisher interface {
	Publish(ctx context.Context, st *autopost.State, body autopost.PostBody) (*publish.Result, error)
	PublishAll(ctx context.Context, st *autopost.State, body autopost.PostBody) []publish.AllResult
	UploadPhoto(ctx context.Context, prof *autopost.Profile, mediaURL, caption string) (*gbp.MediaItem, error)
}

// Alerter sends a digest of tick failures.
type Alerter interface {
	SendFailureAlert(ctx context.Context, to string, failures []autopost.Failure) error
}

// Options configure a Runner.
type Options struct {
	Location      *time.Location // Scheduler wall clock; nil means UTC
	FailurePolicy FailurePolicy
	AlertTo       string // Empty disables alerts
}

// Runner executes ticks.
type Runner struct {
	store     Store
	posts     Queue
	photos    Queue
	publisher Publisher
	alerter   Alerter
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

// New creates a tick runner. alerter may be nil.
func New(store Store, posts, photos Queue, publisher Publisher, alerter Alerter, logger *slog.Logger, opts Options) *Runner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = PolicyFail
	}
	return &Runner{
		store:     store,
		posts:     posts,
		photos:    photos,
		publisher: publisher,
		alerter:   alerter,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Report summarises one tick.
type Report struct {
	StartedAt     time.Time          `json:"startedAt"`
	DurationMS    int64              `json:"durationMs"`
	PhotosPosted  int                `json:"photosPosted"`
	PhotosFailed  int                `json:"photosFailed"`
	PostsPosted   int                `json:"postsPosted"`
	PostsFailed   int                `json:"postsFailed"`
	CadenceRan    bool               `json:"cadenceRan"`
	CadencePosted int                `json:"cadencePosted"`
	CadenceFailed int                `json:"cadenceFailed"`
	Failures      []autopost.Failure `json:"failures,omitempty"`
}

func (r *Report) fail(kind, profileID, itemID string, err error, at time.Time) {
	r.Failures = append(r.Failures, autopost.Failure{
		Kind:      kind,
		ProfileID: profileID,
		ItemID:    itemID,
		Error:     err.Error(),
		At:        at.UTC(),
	})
}

// Tick runs one pass over due photos, due posts and the recurring schedule.
// State is read once at the start and written once at the end.
func (r *Runner) Tick(ctx context.Context) (*Report, error) {
	now := r.now()
	report := &Report{StartedAt: now.UTC()}

	st, err := r.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	r.runPhotos(ctx, st, now, report)
	r.runPosts(ctx, st, now, report)
	if st.Config.Enabled {
		report.CadenceRan = true
		r.runCadence(ctx, st, now, report)
	} else {
		r.logger.Debug("Recurring posts disabled, skipping cadence pass")
	}

	if err := r.store.SaveState(ctx, st); err != nil {
		return report, fmt.Errorf("save state: %w", err)
	}

	report.DurationMS = r.now().Sub(now).Milliseconds()
	r.logger.Info("Tick completed",
		"photos_posted", report.PhotosPosted,
		"photos_failed", report.PhotosFailed,
		"posts_posted", report.PostsPosted,
		"posts_failed", report.PostsFailed,
		"cadence_posted", report.CadencePosted,
		"cadence_failed", report.CadenceFailed,
		"duration_ms", report.DurationMS)

	r.alert(ctx, report)
	return report, nil
}

func (r *Runner) runPhotos(ctx context.Context, st *autopost.State, now time.Time, report *Report) {
	due, err := r.photos.ListDue(ctx, now)
	if err != nil {
		r.logger.Error("Failed to list due photos", "error", err)
		report.fail(KindPhoto, "", "", err, now)
		return
	}
	for _, it := range due {
		err := r.uploadPhoto(ctx, st, it)
		if err != nil {
			r.logger.Warn("Scheduled photo failed", "id", it.ID, "profile_id", it.ProfileID, "error", err)
			report.PhotosFailed++
			report.fail(KindPhoto, it.ProfileID, it.ID, err, now)
			if err := r.photos.MarkFailed(ctx, it.ID, err); err != nil {
				r.logger.Warn("Failed to mark photo failed", "id", it.ID, "error", err)
			}
			continue
		}
		report.PhotosPosted++
		if err := r.photos.MarkPosted(ctx, it.ID, ""); err != nil {
			r.logger.Warn("Failed to mark photo posted", "id", it.ID, "error", err)
		}
	}
}

func (r *Runner) uploadPhoto(ctx context.Context, st *autopost.State, it autopost.ScheduledItem) error {
	idx := autopost.FindProfile(st.Profiles, it.ProfileID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", autopost.ErrProfileNotFound, it.ProfileID)
	}
	_, err := r.publisher.UploadPhoto(ctx, &st.Profiles[idx], it.Body.MediaURL, it.Body.Caption)
	return err
}

func (r *Runner) runPosts(ctx context.Context, st *autopost.State, now time.Time, report *Report) {
	due, err := r.posts.ListDue(ctx, now)
	if err != nil {
		r.logger.Error("Failed to list due posts", "error", err)
		report.fail(KindPost, "", "", err, now)
		return
	}
	for _, it := range due {
		body := it.Body
		body.ProfileID = it.ProfileID
		res, err := r.publisher.Publish(ctx, st, body)
		if err != nil {
			report.PostsFailed++
			report.fail(KindPost, it.ProfileID, it.ID, err, now)
			if r.opts.FailurePolicy == PolicyRetry {
				r.logger.Warn("Scheduled post failed, leaving queued", "id", it.ID, "profile_id", it.ProfileID, "error", err)
				continue
			}
			r.logger.Warn("Scheduled post failed", "id", it.ID, "profile_id", it.ProfileID, "error", err)
			if err := r.posts.MarkFailed(ctx, it.ID, err); err != nil {
				r.logger.Warn("Failed to mark post failed", "id", it.ID, "error", err)
			}
			continue
		}
		report.PostsPosted++
		if err := r.posts.MarkPosted(ctx, it.ID, res.PostedURL); err != nil {
			r.logger.Warn("Failed to mark post posted", "id", it.ID, "error", err)
		}
	}
}

// runCadence posts for every profile whose slot is due, marking the slot after the attempt whatever its outcome.
func (r *Runner) runCadence(ctx context.Context, st *autopost.State, now time.Time, report *Report) {
	local := now.In(r.opts.Location)
	today := autopost.DateString(local)
	for i := range st.Profiles {
		prof := &st.Profiles[i]
		slot, ok := cadence.Due(prof, st.Config, local, st.LastRun)
		if !ok {
			continue
		}
		id := prof.ProfileID
		_, err := r.publisher.Publish(ctx, st, autopost.PostBody{ProfileID: id})
		st.LastRun = cadence.MarkAttempted(st.LastRun, id, today, slot)
		if err != nil {
			r.logger.Warn("Recurring post failed", "profile_id", id, "slot", slot, "error", err)
			report.CadenceFailed++
			report.fail(KindCadence, id, slot, err, now)
			continue
		}
		r.logger.Info("Recurring post published", "profile_id", id, "slot", slot)
		report.CadencePosted++
	}
}

func (r *Runner) alert(ctx context.Context, report *Report) {
	if len(report.Failures) == 0 || r.opts.AlertTo == "" || r.alerter == nil {
		return
	}
	if err := r.alerter.SendFailureAlert(ctx, r.opts.AlertTo, report.Failures); err != nil {
		r.logger.Error("Failed to send failure alert", "to", r.opts.AlertTo, "error", err)
	}
}

// RunNow publishes one profile immediately, ignoring its schedule.
func (r *Runner) RunNow(ctx context.Context, profileID string) (*publish.Result, error) {
	if strings.TrimSpace(profileID) == "" {
		return nil, publish.ErrMissingProfileID
	}
	st, err := r.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	res, pubErr := r.publisher.Publish(ctx, st, autopost.PostBody{ProfileID: profileID})
	if errors.Is(pubErr, autopost.ErrProfileNotFound) {
		return nil, pubErr
	}
	if err := r.store.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	return res, pubErr
}

// RunAll publishes every active profile once, ignoring schedules.
func (r *Runner) RunAll(ctx context.Context) ([]publish.AllResult, error) {
	return r.PublishAll(ctx, autopost.PostBody{})
}

// PublishAll publishes body to every active profile and saves the resulting state.
func (r *Runner) PublishAll(ctx context.Context, body autopost.PostBody) ([]publish.AllResult, error) {
	st, err := r.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	results := r.publisher.PublishAll(ctx, st, body)
	if err := r.store.SaveState(ctx, st); err != nil {
		return results, fmt.Errorf("save state: %w", err)
	}
	return results, nil
}
