package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gbp-autoposter/pkg/autopost"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingProvider struct {
	to, subject, body string
	calls             int
}

func (r *recordingProvider) Send(_ context.Context, to, subject, htmlBody string) error {
	r.calls++
	r.to, r.subject, r.body = to, subject, htmlBody
	return nil
}

func TestSendFailureAlert(t *testing.T) {
	rec := &recordingProvider{}
	sender := New(rec, testLogger(), "https://poster.example/")
	failures := []autopost.Failure{
		{Kind: "post", ProfileID: "acme & sons", ItemID: "it-1", Error: "publish: <INVALID_ARGUMENT>", At: time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)},
		{Kind: "photo", Error: "list due items: db locked", At: time.Date(2025, 3, 10, 16, 0, 1, 0, time.UTC)},
	}

	if err := sender.SendFailureAlert(context.Background(), "ops@example.com", failures); err != nil {
		t.Fatalf("SendFailureAlert() error = %v", err)
	}
	if rec.to != "ops@example.com" || rec.subject != "Autoposter: 2 failures" {
		t.Errorf("to = %q subject = %q", rec.to, rec.subject)
	}
	for _, want := range []string{
		"2 scheduled items failed",
		"publish: &lt;INVALID_ARGUMENT&gt;",
		`href="https://poster.example/posts/history?profileId=acme+%26+sons"`,
		"Mar 10 16:00",
		"<td>-</td>",
	} {
		if !strings.Contains(rec.body, want) {
			t.Errorf("body missing %q\n%s", want, rec.body)
		}
	}
}

func TestSendFailureAlertEmpty(t *testing.T) {
	rec := &recordingProvider{}
	if err := New(rec, testLogger(), "").SendFailureAlert(context.Background(), "ops@example.com", nil); err != nil {
		t.Fatalf("SendFailureAlert() error = %v", err)
	}
	if rec.calls != 0 {
		t.Error("nothing should be sent without failures")
	}
}

func TestProfileCellWithoutBaseURL(t *testing.T) {
	s := New(&recordingProvider{}, testLogger(), "")
	if got := s.profileCell("<p1>"); got != "&lt;p1&gt;" {
		t.Errorf("profileCell() = %q", got)
	}
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`<a href="x">'&'</a>`, "&lt;a href=&quot;x&quot;&gt;&#39;&amp;&#39;&lt;/a&gt;"},
	}
	for _, tt := range tests {
		if got := escapeHTML(tt.in); got != tt.want {
			t.Errorf("escapeHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildMessageStripsHeaderInjection(t *testing.T) {
	raw := buildMessage("ops@example.com\r\nBcc: evil@example.com", "Hi\nthere", "<p>x</p>")
	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msg := string(decoded)
	if strings.Contains(msg, "\r\nBcc:") {
		t.Errorf("header injection survived:\n%s", msg)
	}
	if !strings.Contains(msg, "Subject: Hithere\r\n") {
		t.Errorf("subject not sanitized:\n%s", msg)
	}
}

func TestBrevoSend(t *testing.T) {
	var got brevoSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "key" {
			t.Errorf("api-key = %q", r.Header.Get("api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := NewBrevoProvider("key", "bot@example.com", "Autoposter", srv.URL, testLogger())
	if err := p.Send(context.Background(), "ops@example.com", "Subject", "<p>body</p>"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Sender.Email != "bot@example.com" || got.To[0].Email != "ops@example.com" || got.HTML != "<p>body</p>" {
		t.Errorf("request = %+v", got)
	}
}

func TestBrevoClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewBrevoProvider("key", "bot@example.com", "", srv.URL, testLogger())
	err := p.Send(context.Background(), "ops@example.com", "s", "b")
	if err == nil || !strings.Contains(err.Error(), "HTTP 400") {
		t.Fatalf("Send() error = %v, want HTTP 400", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
