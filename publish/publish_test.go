package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbp-autoposter/compose"
	"gbp-autoposter/gbp"
	"gbp-autoposter/locale"
	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/queue"
)

type fakeAPI struct {
	posts     []gbp.LocalPost
	errs      []error // Returned by successive CreateLocalPost calls
	basics    autopost.Basics
	basicsErr error
	uploads   []gbp.MediaItem
}

func (f *fakeAPI) CreateLocalPost(_ context.Context, _ gbp.Location, post *gbp.LocalPost) (*gbp.LocalPost, error) {
	cp := *post
	cp.Media = slices.Clone(post.Media)
	f.posts = append(f.posts, cp)
	n := len(f.posts)
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	return &gbp.LocalPost{
		Name:      fmt.Sprintf("accounts/a/locations/l/localPosts/%d", n),
		SearchURL: fmt.Sprintf("https://posts.example/%d", n),
	}, nil
}

func (f *fakeAPI) UploadMedia(_ context.Context, _ gbp.Location, item gbp.MediaItem) (*gbp.MediaItem, error) {
	f.uploads = append(f.uploads, item)
	return &gbp.MediaItem{Name: "media/1"}, nil
}

func (f *fakeAPI) Basics(context.Context, string) (autopost.Basics, error) {
	return f.basics, f.basicsErr
}

var invalidArgument = &gbp.APIError{HTTPStatus: 400, Status: "INVALID_ARGUMENT", Message: "bad media"}

func newTestPublisher(api *fakeAPI) *Publisher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := compose.New(nil, locale.New(nil), nil, logger)
	p := New(api, c, "https://media.example", logger)
	p.now = func() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }
	return p
}

func testState() *autopost.State {
	return &autopost.State{
		Profiles: []autopost.Profile{{
			ProfileID:    "p1",
			AccountID:    "a1",
			LocationID:   "l1",
			BusinessName: "Acme Roofing",
			City:         "Calgary",
			Keywords:     []string{"Roofing", "Gutters"},
			LandingURL:   "https://acme.example",
		}},
		Cycle: autopost.CycleState{},
	}
}

func TestBuildCallToAction(t *testing.T) {
	call := BuildCallToAction("CALL_NOW", "tel:+15551234567", autopost.Basics{}, &autopost.Profile{})
	assert.Equal(t, &gbp.CallToAction{ActionType: "CALL"}, call)

	assert.Nil(t, BuildCallToAction("BOOK", "not-a-url", autopost.Basics{WebsiteURI: ""}, &autopost.Profile{LandingURL: ""}))

	tests := []struct {
		name   string
		code   string
		link   string
		basics autopost.Basics
		prof   *autopost.Profile
		want   *gbp.CallToAction
	}{
		{"alias", "call", "", autopost.Basics{}, nil, &gbp.CallToAction{ActionType: "CALL"}},
		{"link", "BOOK", "https://book.example", autopost.Basics{}, nil, &gbp.CallToAction{ActionType: "BOOK", URL: "https://book.example"}},
		{"website", "order", "ftp://x", autopost.Basics{WebsiteURI: "https://web.example"}, nil, &gbp.CallToAction{ActionType: "ORDER", URL: "https://web.example"}},
		{"landing", "SHOP", "", autopost.Basics{}, &autopost.Profile{LandingURL: "http://land.example"}, &gbp.CallToAction{ActionType: "SHOP", URL: "http://land.example"}},
		{"unknown", "DANCE", "https://x.example", autopost.Basics{}, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildCallToAction(tt.code, tt.link, tt.basics, tt.prof))
		})
	}
}

func TestResolvePhone(t *testing.T) {
	prof := &autopost.Profile{Defaults: autopost.Defaults{Phone: "+1 default"}}
	assert.Equal(t, "+1 body", ResolvePhone(prof, autopost.PostBody{Phone: "+1 body"}, autopost.Basics{}))
	assert.Equal(t, "+15551234567", ResolvePhone(prof, autopost.PostBody{LinkURL: "tel:+15551234567"}, autopost.Basics{}))
	assert.Equal(t, "+1 default", ResolvePhone(prof, autopost.PostBody{}, autopost.Basics{}))
	assert.Equal(t, "+1 listing", ResolvePhone(&autopost.Profile{}, autopost.PostBody{}, autopost.Basics{PrimaryPhone: "+1 listing"}))
}

func TestPublishExplicitText(t *testing.T) {
	api := &fakeAPI{}
	st := testState()
	st.Cycle["p1"] = autopost.CycleEntry{Idx: 3}

	res, err := newTestPublisher(api).Publish(context.Background(), st, autopost.PostBody{ProfileID: "p1", PostText: "Hello there", CTA: "BOOK"})
	require.NoError(t, err)

	require.Len(t, api.posts, 1)
	sent := api.posts[0]
	assert.Equal(t, "Hello there", sent.Summary)
	assert.Equal(t, gbp.TopicStandard, sent.TopicType)
	assert.Equal(t, &gbp.CallToAction{ActionType: "BOOK", URL: "https://acme.example"}, sent.CallToAction)
	assert.Empty(t, sent.Media)

	assert.Equal(t, "https://posts.example/1", res.PostedURL)
	assert.Equal(t, autopost.CycleEntry{Idx: 3, LastURL: "https://posts.example/1"}, st.Cycle["p1"])
	require.Len(t, st.History, 1)
	h := st.History[0]
	assert.Equal(t, autopost.StatusPosted, h.Status)
	assert.Equal(t, "BOOK", h.CTA)
	assert.Equal(t, "https://acme.example", h.LinkURL)
	assert.Equal(t, "Acme Roofing", h.ProfileName)
	assert.NotEmpty(t, h.ID)
}

func TestPublishComposedAdvancesCycle(t *testing.T) {
	api := &fakeAPI{basics: autopost.Basics{WebsiteURI: "https://web.example"}}
	st := testState()
	st.Profiles[0].Defaults.ReviewLink = "https://reviews.example"

	res, err := newTestPublisher(api).Publish(context.Background(), st, autopost.PostBody{ProfileID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, autopost.TemplateService, res.Template)
	assert.Equal(t, autopost.CycleEntry{Idx: 1, LastURL: "https://posts.example/1"}, st.Cycle["p1"])
	summary := api.posts[0].Summary
	assert.Contains(t, summary, "Calgary • Roofing · Gutters")
	assert.Contains(t, summary, "Reviews ► https://reviews.example")
	assert.Contains(t, summary, "#Roofing")
	assert.LessOrEqual(t, len([]rune(summary)), MaxPostLength)
	assert.Equal(t, "https://web.example", api.posts[0].CallToAction.URL)
}

func TestPublishFallbackWithoutMedia(t *testing.T) {
	api := &fakeAPI{errs: []error{invalidArgument, nil}}
	st := testState()
	st.Profiles[0].PhotoPool = []autopost.Photo{{URL: "https://img.example/a.jpg"}}

	res, err := newTestPublisher(api).Publish(context.Background(), st, autopost.PostBody{ProfileID: "p1", PostText: "Hi", CTA: "LEARN_MORE"})
	require.NoError(t, err)

	require.Len(t, api.posts, 2)
	assert.Len(t, api.posts[0].Media, 1)
	assert.Empty(t, api.posts[1].Media)
	assert.NotEmpty(t, res.FirstError)
	assert.Empty(t, res.UsedImage)

	require.Len(t, st.History, 2)
	assert.Equal(t, autopost.StatusFailed, st.History[0].Status)
	assert.Equal(t, "https://img.example/a.jpg", st.History[0].UsedImage)
	assert.Equal(t, autopost.StatusPosted, st.History[1].Status)
	assert.Equal(t, 0, st.History[1].MediaCount)
	assert.Len(t, st.Profiles[0].PhotoPool, 1, "pool image is kept when it was not used")
}

func TestPublishFallbackFailsTwice(t *testing.T) {
	api := &fakeAPI{errs: []error{invalidArgument, invalidArgument}}
	st := testState()
	st.Cycle["p1"] = autopost.CycleEntry{Idx: 1, LastURL: "https://prev.example"}

	_, err := newTestPublisher(api).Publish(context.Background(), st, autopost.PostBody{ProfileID: "p1", MediaURL: "/uploads/a.jpg"})
	require.Error(t, err)
	assert.True(t, gbp.IsInvalidArgument(err))

	require.Len(t, api.posts, 2)
	assert.Equal(t, "https://media.example/uploads/a.jpg", api.posts[0].Media[0].SourceURL)
	require.Len(t, st.History, 2)
	assert.Equal(t, autopost.StatusFailed, st.History[1].Status)
	assert.Equal(t, autopost.CycleEntry{Idx: 2, LastURL: "https://prev.example"}, st.Cycle["p1"])
}

func TestPublishNoFallbackWithoutMedia(t *testing.T) {
	api := &fakeAPI{errs: []error{invalidArgument}}
	st := testState()
	_, err := newTestPublisher(api).Publish(context.Background(), st, autopost.PostBody{ProfileID: "p1", PostText: "x"})
	require.Error(t, err)
	assert.Len(t, api.posts, 1)
	assert.Len(t, st.History, 1)
}

func TestPublishPopsPoolOnSuccess(t *testing.T) {
	api := &fakeAPI{}
	st := testState()
	st.Profiles[0].PhotoPool = []autopost.Photo{{URL: "https://img.example/1.jpg"}, {URL: "https://img.example/2.png"}}

	res, err := newTestPublisher(api).Publish(context.Background(), st, autopost.PostBody{ProfileID: "p1", PostText: "x"})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/1.jpg", res.UsedImage)
	require.Len(t, st.Profiles[0].PhotoPool, 1)
	assert.Equal(t, "https://img.example/2.png", st.Profiles[0].PhotoPool[0].URL)
	assert.Equal(t, 1, st.History[0].MediaCount)
}

func TestPublishRejectsBeforeCalling(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(st *autopost.State)
		body    autopost.PostBody
		wantErr error
	}{
		{"missing profile id", nil, autopost.PostBody{PostText: "x"}, ErrMissingProfileID},
		{"unknown profile", nil, autopost.PostBody{ProfileID: "nope", PostText: "x"}, autopost.ErrProfileNotFound},
		{"call without phone", nil, autopost.PostBody{ProfileID: "p1", PostText: "x", CTA: "CALL_NOW"}, ErrMissingPhone},
		{"no link", func(st *autopost.State) { st.Profiles[0].LandingURL = "" }, autopost.PostBody{ProfileID: "p1", PostText: "x", CTA: "BOOK"}, ErrMissingLink},
		{"unknown cta", nil, autopost.PostBody{ProfileID: "p1", PostText: "x", CTA: "DANCE"}, ErrUnknownCTA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			st := testState()
			if tt.mutate != nil {
				tt.mutate(st)
			}
			_, err := newTestPublisher(api).Publish(context.Background(), st, tt.body)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, api.posts)
			assert.Empty(t, st.History)
		})
	}
}

func TestPublishCallNow(t *testing.T) {
	api := &fakeAPI{basics: autopost.Basics{PrimaryPhone: "+1 555 0100"}}
	st := testState()
	_, err := newTestPublisher(api).Publish(context.Background(), st, autopost.PostBody{ProfileID: "p1", PostText: "x", CTA: "CALL"})
	require.NoError(t, err)
	assert.Equal(t, &gbp.CallToAction{ActionType: "CALL"}, api.posts[0].CallToAction)
	assert.Equal(t, "CALL", st.History[0].CTA)
}

func TestPublishTopics(t *testing.T) {
	tests := []struct {
		name  string
		body  autopost.PostBody
		check func(t *testing.T, p gbp.LocalPost)
	}{
		{
			name: "event",
			body: autopost.PostBody{TopicType: "event", EventStart: "2025-06-01"},
			check: func(t *testing.T, p gbp.LocalPost) {
				assert.Equal(t, gbp.TopicEvent, p.TopicType)
				require.NotNil(t, p.Event)
				assert.Equal(t, "Acme Roofing event", p.Event.Title)
				assert.Equal(t, gbp.Date{Year: 2025, Month: 6, Day: 1}, p.Event.Schedule.EndDate)
			},
		},
		{
			name: "event without dates",
			body: autopost.PostBody{TopicType: "EVENT", EventStart: "soon"},
			check: func(t *testing.T, p gbp.LocalPost) {
				assert.Equal(t, gbp.TopicStandard, p.TopicType)
				assert.Nil(t, p.Event)
			},
		},
		{
			name: "offer",
			body: autopost.PostBody{TopicType: "OFFER", OfferTitle: "10% off", OfferCoupon: "SAVE10"},
			check: func(t *testing.T, p gbp.LocalPost) {
				require.NotNil(t, p.Offer)
				assert.Equal(t, gbp.Offer{Summary: "10% off", CouponCode: "SAVE10", RedemptionURL: "https://acme.example"}, *p.Offer)
			},
		},
		{
			name: "unknown topic",
			body: autopost.PostBody{TopicType: "PRODUCT"},
			check: func(t *testing.T, p gbp.LocalPost) {
				assert.Equal(t, gbp.TopicStandard, p.TopicType)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			body := tt.body
			body.ProfileID = "p1"
			body.PostText = "x"
			_, err := newTestPublisher(api).Publish(context.Background(), testState(), body)
			require.NoError(t, err)
			tt.check(t, api.posts[0])
		})
	}
}

func TestPublishAllSkipsDisabled(t *testing.T) {
	api := &fakeAPI{}
	st := testState()
	st.Profiles = append(st.Profiles,
		autopost.Profile{ProfileID: "off", AccountID: "a", LocationID: "l2", LandingURL: "https://x.example", Disabled: true},
		autopost.Profile{ProfileID: "nolink", AccountID: "a", LocationID: "l3"},
	)

	results := newTestPublisher(api).PublishAll(context.Background(), st, autopost.PostBody{PostText: "Sale today"})
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ProfileID)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "nolink", results[1].ProfileID)
	assert.NotEmpty(t, results[1].Error)
	assert.Len(t, api.posts, 1)
}

func TestUploadPhoto(t *testing.T) {
	api := &fakeAPI{}
	p := newTestPublisher(api)
	prof := &testState().Profiles[0]

	_, err := p.UploadPhoto(context.Background(), prof, "https://img.example/doc.pdf", "")
	assert.ErrorIs(t, err, ErrInvalidMedia)

	_, err = p.UploadPhoto(context.Background(), prof, "/uploads/a.webp", strings.Repeat("c", 2000))
	require.NoError(t, err)
	require.Len(t, api.uploads, 1)
	up := api.uploads[0]
	assert.Equal(t, "https://media.example/uploads/a.webp", up.SourceURL)
	assert.Equal(t, "ADDITIONAL", up.LocationAssociation.Category)
	assert.Len(t, up.Description, MaxPhotoDescription)
}

func TestDraft(t *testing.T) {
	api := &fakeAPI{}
	p := newTestPublisher(api)
	st := testState()
	st.Cycle["p1"] = autopost.CycleEntry{Idx: 0}

	req := queue.BulkRequest{ProfileID: "p1", Images: []string{"https://img.example/1.jpg", "https://img.example/2.jpg"}, CadenceDays: 1}
	items, err := p.Draft(context.Background(), st, req, true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.NotEmpty(t, it.Body.PostText)
		assert.Equal(t, autopost.CTALearnMore, it.Body.CTA)
	}
	assert.NotEqual(t, items[0].Body.PostText, items[1].Body.PostText, "drafts use successive templates")
	assert.Equal(t, autopost.CycleEntry{Idx: 0}, st.Cycle["p1"], "drafting does not advance the cycle")
	assert.Empty(t, api.posts)

	plain, err := p.Draft(context.Background(), st, req, false)
	require.NoError(t, err)
	assert.Empty(t, plain[0].Body.PostText)

	_, err = p.Draft(context.Background(), st, queue.BulkRequest{ProfileID: "ghost", Images: req.Images}, true)
	assert.ErrorIs(t, err, autopost.ErrProfileNotFound)
	_, err = p.Draft(context.Background(), st, queue.BulkRequest{ProfileID: "p1"}, true)
	assert.EqualError(t, err, "no images provided")
}
