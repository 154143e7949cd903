// Package scraper harvests candidate post images from a business landing page.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"

	"gbp-autoposter/pkg/autopost"
)

// MaxImages caps the images returned for one page.
const MaxImages = 50

// Page is the harvested content of a landing page.
type Page struct {
	URL    string
	Title  string
	Images []string // Absolute https image URLs, og:image first
}

// StatusError is a non-OK HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// retryable reports whether a failed fetch may be repeated.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}

// Scraper fetches and parses landing pages.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a scraper.
func New(client *http.Client, logger *slog.Logger) *Scraper {
	return &Scraper{
		client: client,
		logger: logger,
	}
}

// Harvest fetches pageURL and returns its https images.
func (s *Scraper) Harvest(ctx context.Context, pageURL string) (*Page, error) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid landing page url %q", pageURL)
	}

	var page *Page
	var lastErr error
	err = retry.Do(
		func() error {
			page, lastErr = s.fetch(ctx, base)
			return lastErr
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying landing page fetch after error", "attempt", n, "url", pageURL, "error", err)
		}),
	)
	if err != nil {
		if lastErr != nil {
			err = lastErr
		}
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}
	return page, nil
}

func (s *Scraper) fetch(ctx context.Context, base *url.URL) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; gbp-autoposter/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("HTTP request failed", "url", base.String(), "error", err)
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	s.logger.Info("HTTP request completed",
		"url", base.String(),
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: base.String(), Code: resp.StatusCode}
	}

	page, err := parsePage(resp.Body, base)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	s.logger.Info("Landing page parsed", "url", base.String(), "title", page.Title, "images_found", len(page.Images))
	return page, nil
}

func parsePage(body io.Reader, base *url.URL) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	if title = strings.TrimSpace(title); title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var images []string
	seen := map[string]bool{}
	add := func(raw string) {
		if len(images) >= MaxImages {
			return
		}
		u := resolve(base, raw)
		if u == "" || seen[u] || !autopost.IsHTTPSImage(u) {
			return
		}
		seen[u] = true
		images = append(images, u)
	}

	doc.Find(`meta[property="og:image"], meta[property="og:image:secure_url"], meta[name="twitter:image"]`).Each(func(_ int, m *goquery.Selection) {
		if c, ok := m.Attr("content"); ok {
			add(c)
		}
	})
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := img.Attr(attr); ok {
				add(v)
			}
		}
		if set, ok := img.Attr("srcset"); ok {
			for _, cand := range strings.Split(set, ",") {
				if f := strings.Fields(cand); len(f) > 0 {
					add(f[0])
				}
			}
		}
	})

	return &Page{URL: base.String(), Title: title, Images: images}, nil
}

// resolve makes raw absolute against base and drops query strings and fragments.
func resolve(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
