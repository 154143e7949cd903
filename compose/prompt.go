package compose

import (
	"fmt"
	"strings"
)

// Phrasing pools for generated posts. Picks are uniform so consecutive posts read differently.
var (
	tonePool = Pool{
		"warm and neighbourly", "confident and direct", "friendly and upbeat", "calm and reassuring",
		"practical and no-nonsense", "cheerful", "expert but approachable", "plain-spoken",
		"energetic", "thoughtful", "helpful and patient", "straightforward and honest",
		"polished and professional", "relaxed and conversational", "detail-oriented", "welcoming",
		"encouraging", "optimistic", "grounded", "community-minded",
		"matter-of-fact", "personable", "reliable and steady", "lighthearted",
		"caring", "crisp and concise", "respectful", "enthusiastic without hype",
		"trustworthy", "easygoing", "knowledgeable", "genuine",
	}

	anglePool = Pool{
		"a recent job that went smoothly", "what to expect on the first visit", "seasonal timing",
		"how we keep homes clean during work", "saving money over the long run", "common mistakes to avoid",
		"a question customers ask often", "what sets a quality job apart", "how fast we can start",
		"the value of a proper inspection", "working around busy family schedules", "local weather and its effects",
		"planning a project step by step", "peace of mind after the job", "small fixes that prevent big repairs",
		"choosing the right materials", "transparent quotes", "our crew's experience",
		"supporting local neighbourhoods", "before-and-after results", "safety on the job site",
		"how to prepare for our visit", "warranty and follow-up care", "energy efficiency",
		"getting ready for the next season", "quiet and tidy work", "what a typical day on site looks like",
		"upgrades that add comfort", "the booking process", "caring for the work afterwards",
		"making old spaces feel new", "why regular maintenance matters",
	}

	openerPool = Pool{
		"Start with a short question to the reader.",
		"Start with a surprising but true fact.",
		"Start with a one-line customer scenario.",
		"Start by naming the neighbourhood.",
		"Start with a seasonal observation.",
		"Start with a single strong verb.",
		"Start with a quick tip.",
		"Start with 'Ever wondered'.",
		"Start with 'This week'.",
		"Start with a short exclamation.",
		"Start with a number.",
		"Start by naming the service.",
		"Start with 'Good news'.",
		"Start with 'Planning a project?'.",
		"Start with a common problem homeowners face.",
		"Start with 'Here is how'.",
		"Start with 'Did you know'.",
		"Start with a friendly greeting to the area.",
		"Start with 'Quick reminder'.",
		"Start with a before-and-after image in words.",
		"Start with 'Looking for'.",
		"Start with a short promise.",
		"Start with 'Behind the scenes'.",
		"Start with 'From our crew'.",
		"Start with a time of day.",
		"Start with 'It's that time of year'.",
		"Start with a two-word sentence.",
		"Start with 'Thinking about'.",
		"Start with 'Neighbours in'.",
		"Start with 'Ready when you are'.",
		"Start with 'One thing we hear a lot'.",
		"Start with 'Fresh from a recent job'.",
	}

	ctaPool = Pool{
		"Call us today to book your visit.",
		"Send us a message for a free quote.",
		"Book online in just a few minutes.",
		"Reach out today and we'll take it from there.",
		"Contact us now to reserve your spot.",
	}
)

// PromptInput is what the prompt builder knows about a profile.
type PromptInput struct {
	BusinessName   string
	Where          string
	PrimaryKeyword string
	Keywords       []string
}

// Prompt is an assembled request and the phrasing it was built from.
type Prompt struct {
	Text   string
	Tone   string
	Angle  string
	Opener string
	CTA    string
}

// BuildPrompt assembles the generative request, picking phrasing from the pools with sel.
func BuildPrompt(in PromptInput, sel Selector) Prompt {
	p := Prompt{
		Tone:   sel.Pick(tonePool),
		Angle:  sel.Pick(anglePool),
		Opener: sel.Pick(openerPool),
		CTA:    sel.Pick(ctaPool),
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a Google Business Profile update for %q.\n", in.BusinessName)
	fmt.Fprintf(&b, "Location: %s\n", in.Where)
	fmt.Fprintf(&b, "Services: %s\n", strings.Join(in.Keywords, ", "))
	fmt.Fprintf(&b, "Tone: %s. Angle: %s.\n", p.Tone, p.Angle)
	b.WriteString("Rules:\n")
	b.WriteString("- The summary is 80 to 120 words.\n")
	b.WriteString("- Write as the business in the first person plural (\"we\").\n")
	b.WriteString("- No phone numbers, no emojis and no hashtags in the summary.\n")
	fmt.Fprintf(&b, "- Mention %q and %q naturally, within the first two sentences.\n", in.Where, in.PrimaryKeyword)
	b.WriteString("- Include one concrete detail such as a timeline, a material or a measurable benefit.\n")
	b.WriteString("- Highlight one trust factor such as tidy work, reviews or before and after results.\n")
	fmt.Fprintf(&b, "- %s\n", p.Opener)
	fmt.Fprintf(&b, "- End with this sentence verbatim: %q\n", p.CTA)
	b.WriteString("- Provide 5 to 7 relevant hashtags.\n")
	b.WriteString(`Respond with JSON only: {"summary": "...", "hashtags": ["#...", "..."]}`)
	p.Text = b.String()
	return p
}
