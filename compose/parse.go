package compose

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Kind tells how a generated response was understood.
type Kind int

const (
	Unparseable Kind = iota // No JSON object could be decoded; Summary holds the raw text
	Plain                   // A bare JSON object, possibly surrounded by prose
	Fenced                  // A JSON object inside a markdown code fence
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Fenced:
		return "fenced"
	default:
		return "unparseable"
	}
}

// Result is a parsed generative response.
type Result struct {
	Kind     Kind
	Summary  string
	Hashtags []string
	Err      error // Why the response was unparseable
}

var fenceRegex = regexp.MustCompile("```[A-Za-z]*")

var errNoObject = errors.New("no JSON object in response")

type generatedPost struct {
	Summary  string          `json:"summary"`
	Hashtags json.RawMessage `json:"hashtags"`
}

// ParseResponse extracts {summary, hashtags} from a generated response.
// Code fences are stripped, then the text between the first '{' and the last '}' is decoded.
func ParseResponse(text string) Result {
	raw := strings.TrimSpace(text)
	kind := Plain
	body := raw
	if strings.Contains(body, "```") {
		kind = Fenced
		body = fenceRegex.ReplaceAllString(body, "")
	}

	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return Result{Kind: Unparseable, Summary: raw, Err: errNoObject}
	}
	var g generatedPost
	if err := json.Unmarshal([]byte(body[start:end+1]), &g); err != nil {
		return Result{Kind: Unparseable, Summary: raw, Err: err}
	}
	return Result{
		Kind:     kind,
		Summary:  strings.TrimSpace(g.Summary),
		Hashtags: decodeHashtags(g.Hashtags),
	}
}

// decodeHashtags accepts either a list of tags or a single space-separated string.
func decodeHashtags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		list = strings.Fields(strings.ReplaceAll(s, ",", " "))
	}
	var out []string
	for _, t := range list {
		t = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		if strings.ContainsAny(t, " -") {
			t = HashtagLabel(t)
		}
		out = append(out, "#"+t)
	}
	return out
}
