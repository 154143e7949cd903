// Package publish turns profiles and post requests into Business Profile posts.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gbp-autoposter/compose"
	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
)

const (
	// MaxPostLength is the hard cap on the text sent to the API.
	MaxPostLength = 1500
	// hashtagBudget is the length under which hashtags may still be appended.
	hashtagBudget = 1450
	// minHashtagRoom is the free space needed before hashtags are appended.
	minHashtagRoom = 20
)

var (
	ErrMissingProfileID = errors.New("missing profileId")
	ErrMissingPhone     = errors.New("call now CTA requires a phone on the profile or a tel: link")
	ErrMissingLink      = errors.New("CTA requires an absolute http(s) link")
	ErrUnknownCTA       = errors.New("unknown CTA code")
	ErrInvalidMedia     = errors.New("media must be an https image url (png, jpg, jpeg, webp)")
)

// API is the subset of the Business Profile client used to publish.
type API interface {
	CreateLocalPost(ctx context.Context, loc gbp.Location, post *gbp.LocalPost) (*gbp.LocalPost, error)
	UploadMedia(ctx context.Context, loc gbp.Location, item gbp.MediaItem) (*gbp.MediaItem, error)
	Basics(ctx context.Context, locationID string) (autopost.Basics, error)
}

// Composer builds post content for a profile.
type Composer interface {
	Compose(ctx context.Context, prof *autopost.Profile, entry autopost.CycleEntry, ov autopost.PostBody, basics autopost.Basics) compose.Post
}

// Publisher publishes posts and photos and records the outcome in the state document.
type Publisher struct {
	api       API
	composer  Composer
	mediaBase string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a publisher. mediaBase resolves relative media paths.
func New(api API, composer Composer, mediaBase string, logger *slog.Logger) *Publisher {
	return &Publisher{
		api:       api,
		composer:  composer,
		mediaBase: mediaBase,
		logger:    logger,
		now:       time.Now,
	}
}

// Result describes a successful publish.
type Result struct {
	ProfileID    string            `json:"profileId"`
	PostedURL    string            `json:"postedUrl"`
	RemotePostID string            `json:"remotePostId"`
	Summary      string            `json:"summary"`
	UsedImage    string            `json:"usedImage,omitempty"`
	CTA          string            `json:"cta,omitempty"`
	LinkURL      string            `json:"linkUrl,omitempty"`
	TopicType    string            `json:"topicType"`
	Template     autopost.Template `json:"templateId,omitempty"`
	FirstError   string            `json:"firstError,omitempty"` // Set when the post only succeeded without media
}

// content is the resolved text and link choices of a post.
type content struct {
	summary  string
	ctaCode  string
	link     string
	template autopost.Template
	next     *autopost.CycleEntry
}

// Basics fetches listing attributes, logging and swallowing failures.
func (p *Publisher) Basics(ctx context.Context, prof *autopost.Profile) autopost.Basics {
	if prof.LocationID == "" {
		return autopost.Basics{}
	}
	b, err := p.api.Basics(ctx, prof.LocationID)
	if err != nil {
		p.logger.Warn("Failed to fetch location basics", "profile_id", prof.ProfileID, "error", err)
		return autopost.Basics{}
	}
	return b
}

// resolveContent uses explicit text when given and composes otherwise.
func (p *Publisher) resolveContent(ctx context.Context, prof *autopost.Profile, entry autopost.CycleEntry, body autopost.PostBody, basics autopost.Basics) content {
	if text := strings.TrimSpace(body.PostText); text != "" {
		return content{
			summary: p.finishText(text, nil, prof),
			ctaCode: compose.ResolveCTA(prof, body),
			link:    compose.ResolveSite(prof, body, basics),
		}
	}
	post := p.composer.Compose(ctx, prof, entry, body, basics)
	next := post.Next
	return content{
		summary:  p.finishText(post.Summary, post.Hashtags, prof),
		ctaCode:  post.CTACode,
		link:     post.LinkURL,
		template: post.Template,
		next:     &next,
	}
}

// finishText inserts quick links, appends hashtags when there is room, and applies the hard cap.
func (p *Publisher) finishText(text string, hashtags []string, prof *autopost.Profile) string {
	text = compose.InsertQuickLinks(text, compose.QuickLinkLines(prof.Defaults))
	if n := len([]rune(text)); len(hashtags) > 0 && n+minHashtagRoom < hashtagBudget {
		if tags := compose.SafeJoinHashtags(hashtags, hashtagBudget-n-2); tags != "" {
			text += "\n\n" + tags
		}
	}
	if r := []rune(text); len(r) > MaxPostLength {
		text = string(r[:MaxPostLength])
	}
	return text
}

// resolveMedia picks the post image: explicit, profile default, then the head of the photo pool.
func (p *Publisher) resolveMedia(prof *autopost.Profile, body autopost.PostBody) (url string, fromPool bool) {
	for _, raw := range []string{body.MediaURL, prof.Defaults.MediaURL} {
		if u := autopost.AbsoluteMediaURL(p.mediaBase, raw); u != "" {
			return u, false
		}
	}
	if len(prof.PhotoPool) > 0 {
		if u := autopost.AbsoluteMediaURL(p.mediaBase, prof.PhotoPool[0].URL); autopost.IsHTTPSImage(u) {
			return u, true
		}
	}
	return "", false
}

func parseYMD(s string) (gbp.Date, bool) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return gbp.Date{}, false
	}
	var d [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return gbp.Date{}, false
		}
		d[i] = n
	}
	return gbp.Date{Year: d[0], Month: d[1], Day: d[2]}, true
}

// applyTopic sets the topic type and its event or offer details.
func (p *Publisher) applyTopic(post *gbp.LocalPost, prof *autopost.Profile, body autopost.PostBody, link string, basics autopost.Basics) {
	topic := strings.ToUpper(strings.TrimSpace(body.TopicType))
	switch topic {
	case gbp.TopicStandard, gbp.TopicEvent, gbp.TopicOffer, gbp.TopicAlert:
	default:
		topic = gbp.TopicStandard
	}
	post.TopicType = topic

	switch topic {
	case gbp.TopicEvent:
		endStr := body.EventEnd
		if strings.TrimSpace(endStr) == "" {
			endStr = body.EventStart
		}
		start, okStart := parseYMD(body.EventStart)
		end, okEnd := parseYMD(endStr)
		if !okStart || !okEnd {
			p.logger.Warn("Event post without valid dates, posting as standard", "profile_id", prof.ProfileID)
			post.TopicType = gbp.TopicStandard
			return
		}
		title := strings.TrimSpace(body.EventTitle)
		if title == "" {
			title = prof.BusinessName + " event"
		}
		post.Event = &gbp.Event{Title: title, Schedule: gbp.Schedule{StartDate: start, EndDate: end}}
	case gbp.TopicOffer:
		redeem := ""
		for _, u := range []string{body.OfferRedeemURL, link, basics.WebsiteURI, prof.LandingURL} {
			if u = strings.TrimSpace(u); u != "" {
				redeem = u
				break
			}
		}
		post.Offer = &gbp.Offer{
			Summary:       strings.TrimSpace(body.OfferTitle),
			CouponCode:    strings.TrimSpace(body.OfferCoupon),
			RedemptionURL: redeem,
		}
	}
}

// Publish posts body for its profile and records the attempt in st.
// st.History always gains an entry per API call; st.Cycle and the photo pool are updated as described on Result.
func (p *Publisher) Publish(ctx context.Context, st *autopost.State, body autopost.PostBody) (*Result, error) {
	if strings.TrimSpace(body.ProfileID) == "" {
		return nil, ErrMissingProfileID
	}
	idx := autopost.FindProfile(st.Profiles, body.ProfileID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", autopost.ErrProfileNotFound, body.ProfileID)
	}
	prof := &st.Profiles[idx]
	if st.Cycle == nil {
		st.Cycle = autopost.CycleState{}
	}

	basics := p.Basics(ctx, prof)
	c := p.resolveContent(ctx, prof, st.Cycle[prof.ProfileID], body, basics)

	code := NormalizeCTA(c.ctaCode)
	if !autopost.KnownCTA(code) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCTA, code)
	}
	if code == autopost.CTACallNow && ResolvePhone(prof, body, basics) == "" {
		return nil, ErrMissingPhone
	}
	cta := BuildCallToAction(code, c.link, basics, prof)
	if cta == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingLink, code)
	}
	linkUsed := c.link
	if cta.URL != "" {
		linkUsed = cta.URL
	}

	post := &gbp.LocalPost{
		LanguageCode: "en",
		Summary:      c.summary,
		CallToAction: cta,
	}
	p.applyTopic(post, prof, body, c.link, basics)

	media, fromPool := p.resolveMedia(prof, body)
	if media != "" {
		post.Media = []gbp.MediaItem{gbp.Photo(media)}
	}

	loc := gbp.Location{AccountID: prof.AccountID, LocationID: prof.LocationID}
	entry := autopost.HistoryEntry{
		ProfileID:   prof.ProfileID,
		ProfileName: prof.BusinessName,
		LocationID:  prof.LocationID,
		Summary:     c.summary,
		CTA:         cta.ActionType,
		LinkURL:     linkUsed,
		OverlayURL:  body.OverlayURL,
	}
	record := func(used string, created *gbp.LocalPost, err error) {
		e := entry
		e.ID = uuid.NewString()
		e.CreatedAt = p.now().UTC()
		e.UsedImage = used
		if used != "" {
			e.MediaCount = 1
		}
		if err != nil {
			e.Status = autopost.StatusFailed
			e.Error = err.Error()
		} else {
			e.Status = autopost.StatusPosted
			e.PostedURL = created.PostedURL()
			e.RemotePostID = created.Name
		}
		st.History = autopost.AppendHistory(st.History, e)
	}

	created, err := p.api.CreateLocalPost(ctx, loc, post)
	record(media, created, err)

	firstErr := ""
	if err != nil && media != "" && gbp.IsInvalidArgument(err) {
		p.logger.Warn("Post rejected with media, retrying without media",
			"profile_id", prof.ProfileID, "media_url", media, "error", err)
		firstErr = err.Error()
		post.Media = nil
		media = ""
		created, err = p.api.CreateLocalPost(ctx, loc, post)
		record("", created, err)
	}

	cycle := st.Cycle[prof.ProfileID]
	if c.next != nil {
		cycle.Idx = c.next.Idx
	}
	if err != nil {
		if c.next != nil {
			st.Cycle[prof.ProfileID] = cycle
		}
		p.logger.Error("Publish failed", "profile_id", prof.ProfileID, "error", err)
		return nil, fmt.Errorf("publish %s: %w", prof.ProfileID, err)
	}

	posted := created.PostedURL()
	if posted != "" {
		cycle.LastURL = posted
	}
	if c.next != nil || posted != "" {
		st.Cycle[prof.ProfileID] = cycle
	}
	if fromPool && media != "" && len(prof.PhotoPool) > 0 {
		prof.PhotoPool = prof.PhotoPool[1:]
	}

	p.logger.Info("Published post",
		"profile_id", prof.ProfileID,
		"topic", post.TopicType,
		"template", c.template,
		"posted_url", posted,
		"used_image", media)
	return &Result{
		ProfileID:    prof.ProfileID,
		PostedURL:    posted,
		RemotePostID: created.Name,
		Summary:      c.summary,
		UsedImage:    media,
		CTA:          cta.ActionType,
		LinkURL:      linkUsed,
		TopicType:    post.TopicType,
		Template:     c.template,
		FirstError:   firstErr,
	}, nil
}

// AllResult is the outcome of one profile in a bulk publish.
type AllResult struct {
	ProfileID string  `json:"profileId"`
	Result    *Result `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// PublishAll publishes body to every active profile. Failures are collected, never fatal.
func (p *Publisher) PublishAll(ctx context.Context, st *autopost.State, body autopost.PostBody) []AllResult {
	var ids []string
	for _, prof := range autopost.ActiveProfiles(st.Profiles) {
		ids = append(ids, prof.ProfileID)
	}
	out := make([]AllResult, 0, len(ids))
	for _, id := range ids {
		b := body
		b.ProfileID = id
		res, err := p.Publish(ctx, st, b)
		r := AllResult{ProfileID: id, Result: res}
		if err != nil {
			r.Error = err.Error()
		}
		out = append(out, r)
	}
	return out
}
