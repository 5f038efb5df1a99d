package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	config "github.com/postpilothq/postpilot/configs"
	"github.com/postpilothq/postpilot/internal/transfer"
	"github.com/postpilothq/postpilot/pkg/apperr"
)

const maxPostLength = 280

// Tone selects the voice for keyword-based generation. Unknown values fall
// back to casual.
type Tone string

const (
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
	ToneHumorous     Tone = "humorous"
	ToneEducational  Tone = "educational"
)

func ParseTone(s string) Tone {
	switch Tone(s) {
	case ToneProfessional, ToneHumorous, ToneEducational:
		return Tone(s)
	default:
		return ToneCasual
	}
}

func (t Tone) instruction() string {
	switch t {
	case ToneProfessional:
		return "Write in a polished, professional voice suitable for an industry audience."
	case ToneHumorous:
		return "Write with light humor and wit; playful but never mean-spirited."
	case ToneEducational:
		return "Write in an informative, educational voice that teaches the reader one thing."
	default:
		return "Write in a casual, friendly voice, like talking to a friend."
	}
}

// Style selects how source-based generation treats the source text. Unlike
// tone there is no documented fallback, so an unknown style is rejected.
type Style string

const (
	StyleSummary Style = "summary"
	StyleOpinion Style = "opinion"
	StyleQuote   Style = "quote"
)

func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleSummary, StyleOpinion, StyleQuote:
		return Style(s), nil
	default:
		return "", apperr.Validation("unknown style %q", s)
	}
}

func (s Style) instruction() string {
	switch s {
	case StyleOpinion:
		return "Share a short, opinionated take on the article below."
	case StyleQuote:
		return "Pull the most striking idea from the article below into a quotable post."
	default:
		return "Summarize the key points of the article below."
	}
}

// RetryPolicy is the bounded retry schedule for generation calls. Delays are
// a literal table applied between attempts, never after the last one.
type RetryPolicy struct {
	MaxAttempts int
	Delays      []time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays:      []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt < len(p.Delays) {
		return p.Delays[attempt]
	}
	if len(p.Delays) == 0 {
		return 0
	}
	return p.Delays[len(p.Delays)-1]
}

// ContentGenerator produces 1..count validated post bodies from a generation
// request. It holds no shared mutable state and is safe for concurrent use.
type ContentGenerator interface {
	Generate(ctx context.Context, req *transfer.GenerationRequest) ([]string, error)
}

type geminiGenerator struct {
	cfg    config.Config
	client *resty.Client
	policy RetryPolicy
	sleep  func(time.Duration)
}

func NewContentGenerator(cfg config.Config) ContentGenerator {
	return &geminiGenerator{
		cfg:    cfg,
		client: resty.New().SetTimeout(60 * time.Second),
		policy: DefaultRetryPolicy(),
		sleep:  time.Sleep,
	}
}

const systemInstruction = `You are a social media copywriter for X (Twitter).
Follow every constraint exactly and respond with JSON only.`

const maxSourceChars = 30000

const promptConstraints = `Constraints:
- Each post must be at most 280 characters.
- Use at most 2 hashtags per post.
- Use emoji sparingly, at most one per post.
- No spam-like content, no clickbait, no engagement bait.
- Respond with JSON only, exactly this shape: {"tweets": ["..."]}
- Generate exactly %d post(s).`

func (g *geminiGenerator) buildPrompt(req *transfer.GenerationRequest, count int) (string, error) {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n")

	if req.SourceBased() {
		style, err := ParseStyle(req.Style)
		if err != nil {
			return "", err
		}
		b.WriteString(style.instruction())
		if req.CustomPrompt != "" {
			b.WriteString("\n")
			b.WriteString(req.CustomPrompt)
		}
		b.WriteString("\n\n")
		if req.SourceTitle != "" {
			fmt.Fprintf(&b, "Title: %s\n", req.SourceTitle)
		}
		source := req.SourceText
		if len(source) > maxSourceChars {
			cut := maxSourceChars
			for cut > 0 && !utf8.RuneStart(source[cut]) {
				cut--
			}
			source = source[:cut] + "\n...[truncated]"
		}
		fmt.Fprintf(&b, "Article:\n%s\n\n", source)
	} else {
		if len(req.Keywords) == 0 {
			return "", apperr.Validation("either keywords or source text is required")
		}
		tone := ParseTone(req.Tone)
		fmt.Fprintf(&b, "Write posts about: %s.\n", strings.Join(req.Keywords, ", "))
		b.WriteString(tone.instruction())
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, promptConstraints, count)
	return b.String(), nil
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *geminiGenerator) Generate(ctx context.Context, req *transfer.GenerationRequest) ([]string, error) {
	count := req.Count
	if count <= 0 {
		count = 1
	}

	prompt, err := g.buildPrompt(req, count)
	if err != nil {
		return nil, err
	}

	// Source-based generation runs hotter to favor variety between posts.
	temperature := 0.8
	if req.SourceBased() {
		temperature = 0.95
	}

	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
	}

	var lastErr error
	for attempt := 0; attempt < g.policy.MaxAttempts; attempt++ {
		tweets, err := g.attempt(ctx, &body)
		if err == nil {
			if req.SourceBased() && len(tweets) > count {
				tweets = tweets[:count]
			}
			return tweets, nil
		}
		if apperr.IsKind(err, apperr.KindRateLimit) {
			return nil, err
		}

		lastErr = err
		slog.Info("generation attempt failed", "attempt", attempt+1, "error", err.Error())
		if attempt < g.policy.MaxAttempts-1 {
			g.sleep(g.policy.delay(attempt))
		}
	}

	return nil, apperr.ExternalService(lastErr, "content generation failed after %d attempts", g.policy.MaxAttempts)
}

func (g *geminiGenerator) attempt(ctx context.Context, body *geminiRequest) ([]string, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.GeminiBaseURL, g.cfg.GeminiModel)

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", g.cfg.GeminiAPIKey).
		SetBody(body).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	if resp.StatusCode() == 429 {
		return nil, apperr.RateLimit("generation endpoint is rate limiting requests")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("generation endpoint returned status %d", resp.StatusCode())
	}

	var parsed geminiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("malformed generation response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("generation response has no candidates")
	}

	text := stripCodeFence(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, fmt.Errorf("generation response is empty")
	}

	var payload struct {
		Tweets []string `json:"tweets"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("generated text is not valid JSON: %w", err)
	}
	if payload.Tweets == nil {
		return nil, fmt.Errorf("generated JSON is missing the tweets key")
	}

	var tweets []string
	for _, t := range payload.Tweets {
		t = strings.TrimSpace(t)
		if n := utf8.RuneCountInString(t); n == 0 || n > maxPostLength {
			continue
		}
		tweets = append(tweets, t)
	}
	if len(tweets) == 0 {
		return nil, fmt.Errorf("no valid tweets in generation response")
	}

	return tweets, nil
}

// stripCodeFence removes a wrapping markdown fence; the model sometimes
// returns ```json ... ``` despite the JSON-only contract.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
