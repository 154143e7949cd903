package tick

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gbp-autoposter/gbp"
	"gbp-autoposter/pkg/autopost"
	"gbp-autoposter/publish"
)

type fakeStore struct {
	st    *autopost.State
	saves int
}

func (f *fakeStore) LoadState(context.Context) (*autopost.State, error) { return f.st, nil }

func (f *fakeStore) SaveState(_ context.Context, st *autopost.State) error {
	f.st = st
	f.saves++
	return nil
}

type fakeQueue struct {
	due    []autopost.ScheduledItem
	posted map[string]string
	failed map[string]string
}

func newFakeQueue(items ...autopost.ScheduledItem) *fakeQueue {
	return &fakeQueue{due: items, posted: map[string]string{}, failed: map[string]string{}}
}

func (f *fakeQueue) ListDue(context.Context, time.Time) ([]autopost.ScheduledItem, error) {
	var out []autopost.ScheduledItem
	for _, it := range f.due {
		if _, done := f.posted[it.ID]; done {
			continue
		}
		if _, done := f.failed[it.ID]; done {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeQueue) MarkPosted(_ context.Context, id, postedURL string) error {
	f.posted[id] = postedURL
	return nil
}

func (f *fakeQueue) MarkFailed(_ context.Context, id string, cause error) error {
	f.failed[id] = cause.Error()
	return nil
}

type fakePublisher struct {
	calls  []string // "post:<profile>" or "photo:<profile>"
	errFor map[string]error
}

func (f *fakePublisher) Publish(_ context.Context, st *autopost.State, body autopost.PostBody) (*publish.Result, error) {
	f.calls = append(f.calls, "post:"+body.ProfileID)
	if autopost.FindProfile(st.Profiles, body.ProfileID) < 0 {
		return nil, autopost.ErrProfileNotFound
	}
	if err := f.errFor[body.ProfileID]; err != nil {
		return nil, err
	}
	return &publish.Result{ProfileID: body.ProfileID, PostedURL: "https://posts.example/" + body.ProfileID}, nil
}

func (f *fakePublisher) PublishAll(ctx context.Context, st *autopost.State, body autopost.PostBody) []publish.AllResult {
	var out []publish.AllResult
	for _, p := range autopost.ActiveProfiles(st.Profiles) {
		b := body
		b.ProfileID = p.ProfileID
		res, err := f.Publish(ctx, st, b)
		r := publish.AllResult{ProfileID: p.ProfileID, Result: res}
		if err != nil {
			r.Error = err.Error()
		}
		out = append(out, r)
	}
	return out
}

func (f *fakePublisher) UploadPhoto(_ context.Context, prof *autopost.Profile, _, _ string) (*gbp.MediaItem, error) {
	f.calls = append(f.calls, "photo:"+prof.ProfileID)
	if err := f.errFor["photo:"+prof.ProfileID]; err != nil {
		return nil, err
	}
	return &gbp.MediaItem{Name: "media/1"}, nil
}

type fakeAlerter struct {
	to       string
	failures []autopost.Failure
}

func (f *fakeAlerter) SendFailureAlert(_ context.Context, to string, failures []autopost.Failure) error {
	f.to = to
	f.failures = failures
	return nil
}

type fixture struct {
	store  *fakeStore
	posts  *fakeQueue
	photos *fakeQueue
	pub    *fakePublisher
	alert  *fakeAlerter
	runner *Runner
}

func newFixture(t *testing.T, opts Options, now time.Time) *fixture {
	t.Helper()
	cfg := autopost.DefaultSchedulerConfig()
	f := &fixture{
		store: &fakeStore{st: &autopost.State{
			Profiles: []autopost.Profile{{ProfileID: "a"}, {ProfileID: "b"}, {ProfileID: "off", Disabled: true}},
			Config:   cfg,
			LastRun:  autopost.LastRunMap{},
			Cycle:    autopost.CycleState{},
		}},
		posts:  newFakeQueue(),
		photos: newFakeQueue(),
		pub:    &fakePublisher{errFor: map[string]error{}},
		alert:  &fakeAlerter{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.runner = New(f.store, f.posts, f.photos, f.pub, f.alert, logger, opts)
	f.runner.now = func() time.Time { return now }
	return f
}

func TestTickProcessesPhotosBeforePosts(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, Options{}, now)
	f.photos.due = []autopost.ScheduledItem{
		{ID: "ph1", ProfileID: "a", Body: autopost.PostBody{MediaURL: "https://img.example/1.jpg"}},
		{ID: "ph2", ProfileID: "ghost"},
	}
	f.posts.due = []autopost.ScheduledItem{{ID: "po1", ProfileID: "b"}}

	report, err := f.runner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	want := []string{"photo:a", "post:b"}
	if len(f.pub.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", f.pub.calls, want)
	}
	for i := range want {
		if f.pub.calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, f.pub.calls[i], want[i])
		}
	}
	if _, ok := f.photos.posted["ph1"]; !ok {
		t.Error("ph1 should be POSTED")
	}
	if _, ok := f.photos.failed["ph2"]; !ok {
		t.Error("ph2 with unknown profile should be FAILED")
	}
	if got := f.posts.posted["po1"]; got != "https://posts.example/b" {
		t.Errorf("po1 posted url = %q", got)
	}
	if report.PhotosPosted != 1 || report.PhotosFailed != 1 || report.PostsPosted != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.CadenceRan {
		t.Error("cadence should not run while disabled")
	}
	if f.store.saves != 1 {
		t.Errorf("saves = %d, want 1", f.store.saves)
	}
}

func TestTickFailurePolicy(t *testing.T) {
	tests := []struct {
		policy     FailurePolicy
		wantFailed bool
	}{
		{PolicyFail, true},
		{PolicyRetry, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := newFixture(t, Options{FailurePolicy: tt.policy}, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
			f.posts.due = []autopost.ScheduledItem{{ID: "po1", ProfileID: "a"}}
			f.pub.errFor["a"] = errors.New("boom")

			report, err := f.runner.Tick(context.Background())
			if err != nil {
				t.Fatalf("Tick() error = %v", err)
			}
			_, failed := f.posts.failed["po1"]
			if failed != tt.wantFailed {
				t.Errorf("marked failed = %v, want %v", failed, tt.wantFailed)
			}
			if report.PostsFailed != 1 || len(report.Failures) != 1 {
				t.Errorf("report = %+v", report)
			}
		})
	}
}

func TestTickCadenceMarksSlotOnce(t *testing.T) {
	// 16:00 UTC is 10:00 in the scheduler zone.
	zone := time.FixedZone("MDT", -6*3600)
	now := time.Date(2025, 3, 10, 16, 0, 20, 0, time.UTC)
	f := newFixture(t, Options{Location: zone}, now)
	f.store.st.Config.Enabled = true
	f.pub.errFor["b"] = errors.New("rejected")

	report, err := f.runner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if !report.CadenceRan || report.CadencePosted != 1 || report.CadenceFailed != 1 {
		t.Errorf("report = %+v", report)
	}
	for _, id := range []string{"a", "b"} {
		lr := f.store.st.LastRun[id]
		if lr.Date != "2025-03-10" || !lr.Times["10:00"] {
			t.Errorf("LastRun[%s] = %+v, want 10:00 marked on 2025-03-10", id, lr)
		}
	}
	if _, ok := f.store.st.LastRun["off"]; ok {
		t.Error("disabled profile should not run")
	}

	f.pub.calls = nil
	if _, err := f.runner.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick() error = %v", err)
	}
	if len(f.pub.calls) != 0 {
		t.Errorf("second tick in the same minute published %v", f.pub.calls)
	}
}

func TestTickCadenceOutsideSlot(t *testing.T) {
	f := newFixture(t, Options{}, time.Date(2025, 3, 10, 10, 1, 0, 0, time.UTC))
	f.store.st.Config.Enabled = true
	if _, err := f.runner.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(f.pub.calls) != 0 {
		t.Errorf("calls = %v, want none", f.pub.calls)
	}
}

func TestTickAlerts(t *testing.T) {
	f := newFixture(t, Options{AlertTo: "ops@example.com"}, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	f.posts.due = []autopost.ScheduledItem{{ID: "po1", ProfileID: "a"}}
	f.pub.errFor["a"] = errors.New("boom")
	if _, err := f.runner.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if f.alert.to != "ops@example.com" || len(f.alert.failures) != 1 {
		t.Fatalf("alert = %+v", f.alert)
	}
	got := f.alert.failures[0]
	if got.Kind != KindPost || got.ItemID != "po1" || got.Error != "boom" {
		t.Errorf("failure = %+v", got)
	}

	quiet := newFixture(t, Options{AlertTo: "ops@example.com"}, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	if _, err := quiet.runner.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if quiet.alert.to != "" {
		t.Error("no alert expected without failures")
	}
}

func TestRunNow(t *testing.T) {
	f := newFixture(t, Options{}, time.Now())
	res, err := f.runner.RunNow(context.Background(), "a")
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if res.PostedURL != "https://posts.example/a" || f.store.saves != 1 {
		t.Errorf("res = %+v saves = %d", res, f.store.saves)
	}

	if _, err := f.runner.RunNow(context.Background(), "ghost"); !errors.Is(err, autopost.ErrProfileNotFound) {
		t.Errorf("RunNow(ghost) error = %v, want ErrProfileNotFound", err)
	}
	if _, err := f.runner.RunNow(context.Background(), ""); !errors.Is(err, publish.ErrMissingProfileID) {
		t.Errorf("RunNow(\"\") error = %v", err)
	}
}

func TestRunAllSkipsDisabled(t *testing.T) {
	f := newFixture(t, Options{}, time.Now())
	results, err := f.runner.RunAll(context.Background())
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %+v, want 2 active profiles", results)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": PolicyFail, "FAIL": PolicyFail, " retry ": PolicyRetry} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Error("ParsePolicy(sometimes) should fail")
	}
}
