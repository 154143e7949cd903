package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gbp-autoposter/locale"
	"gbp-autoposter/pkg/autopost"
)

const (
	// MaxSummaryLength is the hard cap on post text.
	MaxSummaryLength = 1500
	// MaxCaptions is the most previews a caption request returns.
	MaxCaptions = 5
)

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LocalePicker chooses the place qualifier for a profile.
type LocalePicker interface {
	Pick(prof *autopost.Profile) string
	CityContext(prof *autopost.Profile) locale.Context
}

// Composer builds post content from templates and generated text.
type Composer struct {
	gen      Generator
	locale   LocalePicker
	selector Selector
	logger   *slog.Logger
}

// New creates a composer. gen may be nil, in which case posts are template-only.
func New(gen Generator, picker LocalePicker, selector Selector, logger *slog.Logger) *Composer {
	if selector == nil {
		selector = NewRandSelector(nil)
	}
	return &Composer{gen: gen, locale: picker, selector: selector, logger: logger}
}

// Post is a composed post.
type Post struct {
	Summary       string              `json:"summary"`
	Hashtags      []string            `json:"hashtags"`
	CTACode       string              `json:"ctaCode"`
	LinkURL       string              `json:"linkUrl"`
	Template      autopost.Template   `json:"templateId"`
	Next          autopost.CycleEntry `json:"nextCycleState"`
	Neighbourhood string              `json:"neighbourhood,omitempty"`
	Generated     string              `json:"generated"` // Kind of the generative result, or "none"
}

// Generated is the generative part of a post.
type Generated struct {
	Result        Result
	Neighbourhood string
	Prompt        Prompt
}

// Compose builds the content for one post at the profile's cycle position.
// A generation failure is logged and the post falls back to template text.
func (c *Composer) Compose(ctx context.Context, prof *autopost.Profile, entry autopost.CycleEntry, ov autopost.PostBody, basics autopost.Basics) Post {
	tpl := BuildTemplate(prof, entry, ov, basics)
	post := Post{
		CTACode:   tpl.CTACode,
		LinkURL:   tpl.Site,
		Template:  tpl.Template,
		Next:      tpl.Next,
		Generated: "none",
	}

	var aiSummary string
	var aiTags []string
	if c.gen != nil {
		g, err := c.Generate(ctx, prof)
		if err != nil {
			c.logger.Warn("Text generation failed, using template only",
				"profile_id", prof.ProfileID, "error", err)
		} else {
			aiSummary = g.Result.Summary
			aiTags = g.Result.Hashtags
			post.Neighbourhood = g.Neighbourhood
			post.Generated = g.Result.Kind.String()
		}
	}

	post.Hashtags = MergeHashtags(tpl.Hashtags, aiTags)

	body := truncate(strings.Join(tpl.Lines, "\n"), MaxTemplateLength)
	var blocks []string
	for _, b := range []string{body, aiSummary, strings.Join(tpl.Continuity, "\n")} {
		if b = strings.TrimSpace(b); b != "" {
			blocks = append(blocks, b)
		}
	}
	post.Summary = truncate(strings.Join(blocks, "\n\n"), MaxSummaryLength)
	return post
}

// Generate makes one generative call for the profile with a freshly picked locale.
func (c *Composer) Generate(ctx context.Context, prof *autopost.Profile) (Generated, error) {
	if c.gen == nil {
		return Generated{}, errors.New("no text generator configured")
	}
	picked := c.locale.Pick(prof)
	cityCtx := c.locale.CityContext(prof)
	where := c.selector.Pick(Pool(locale.WhereOptions(picked, cityCtx)))

	primary := firstNonEmpty(append(append([]string{}, prof.Keywords...), prof.BusinessName)...)
	prompt := BuildPrompt(PromptInput{
		BusinessName:   prof.BusinessName,
		Where:          where,
		PrimaryKeyword: primary,
		Keywords:       prof.Keywords,
	}, c.selector)

	start := time.Now()
	text, err := c.gen.Generate(ctx, prompt.Text)
	if err != nil {
		return Generated{}, fmt.Errorf("generate text: %w", err)
	}
	res := ParseResponse(text)
	res.Hashtags = BoostLocationHashtags(res.Hashtags, cityCtx, picked)
	c.logger.Debug("Generated post text",
		"profile_id", prof.ProfileID,
		"kind", res.Kind.String(),
		"neighbourhood", picked,
		"duration_ms", time.Since(start).Milliseconds())
	return Generated{Result: res, Neighbourhood: picked, Prompt: prompt}, nil
}

// Caption is one generated preview.
type Caption struct {
	Summary       string   `json:"summary"`
	Hashtags      []string `json:"hashtags"`
	Neighbourhood string   `json:"neighbourhood"`
}

// Captions returns count generated previews, count clamped to 1..MaxCaptions.
// Individual failures are skipped; an error is returned only when every call fails.
func (c *Composer) Captions(ctx context.Context, prof *autopost.Profile, count int) ([]Caption, error) {
	count = min(max(count, 1), MaxCaptions)
	out := make([]Caption, 0, count)
	var lastErr error
	for range count {
		g, err := c.Generate(ctx, prof)
		if err != nil {
			lastErr = err
			c.logger.Warn("Caption generation failed", "profile_id", prof.ProfileID, "error", err)
			continue
		}
		out = append(out, Caption{
			Summary:       g.Result.Summary,
			Hashtags:      MergeHashtags(g.Result.Hashtags),
			Neighbourhood: g.Neighbourhood,
		})
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
