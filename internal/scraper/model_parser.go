package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lineboard/ouservice/internal/errs"
	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/models"
)

// maxPromptChars bounds how much page text is sent to the model. Schedule
// content sits near the top of the document, so truncation is safe.
const maxPromptChars = 16000

// ModelParser extracts over/under lines by asking a chat-completion model
// to read the page text. The prompt lists the caller-supplied team names and
// the response is validated against them, so a hallucinated team can never
// reach the caller.
//
// Model output is inherently non-deterministic; tests substitute the
// PatternParser or a mock completion server.
type ModelParser struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewModelParser creates a parser backed by an OpenAI-compatible
// chat-completions endpoint.
func NewModelParser(baseURL, apiKey, model string, timeout time.Duration) *ModelParser {
	return &ModelParser{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extraction is the JSON shape the model is instructed to return.
type extraction struct {
	Games []struct {
		League    string   `json:"league"`
		Teams     []string `json:"teams"`
		OverUnder float64  `json:"over_under"`
		Date      string   `json:"date"`
		Time      string   `json:"time"`
	} `json:"games"`
}

// Parse implements LineParser.
func (p *ModelParser) Parse(ctx context.Context, page Page, matcher *TeamMatcher) ([]models.OddsRecord, error) {
	text := stripMarkup(page.HTML)
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	content, err := p.complete(ctx, p.buildPrompt(text, matcher))
	if err != nil {
		return nil, err
	}

	var ex extraction
	if err := json.Unmarshal([]byte(content), &ex); err != nil {
		return nil, &errs.ParseError{Source: page.URL, Err: fmt.Errorf("model returned invalid JSON: %w", err)}
	}

	var records []models.OddsRecord
	for _, g := range ex.Games {
		if len(g.Teams) != 2 || g.OverUnder <= 0 {
			continue
		}
		away, _, ok := matcher.Match(g.League, g.Teams[0])
		if !ok {
			logger.Debug("model named unknown team %q in %s, dropping game", g.Teams[0], g.League)
			continue
		}
		home, _, ok := matcher.Match(g.League, g.Teams[1])
		if !ok {
			logger.Debug("model named unknown team %q in %s, dropping game", g.Teams[1], g.League)
			continue
		}
		records = append(records, models.OddsRecord{
			League:       g.League,
			Participants: [2]string{away, home},
			Line:         g.OverUnder,
			Date:         g.Date,
			Time:         g.Time,
			Source:       page.URL,
		})
	}

	if len(records) == 0 {
		return nil, &errs.ParseError{Source: page.URL, Err: fmt.Errorf("model extracted no usable games")}
	}
	return records, nil
}

func (p *ModelParser) buildPrompt(pageText string, matcher *TeamMatcher) string {
	var b strings.Builder
	b.WriteString("Extract the over/under total for each game in the page text below.\n")
	b.WriteString("Team names must be the full team name, not the short name, and must be drawn from the known teams.\n")
	b.WriteString("Respond with JSON: {\"games\": [{\"league\": ..., \"teams\": [away, home], \"over_under\": number, \"date\": ..., \"time\": ...}]}\n\n")
	b.WriteString("Known leagues and teams:\n")
	for _, league := range matcher.Leagues() {
		b.WriteString(league)
		b.WriteString(": ")
		b.WriteString(strings.Join(matcher.TeamNames(league), ", "))
		b.WriteString("\n")
	}
	b.WriteString("\nPage text:\n")
	b.WriteString(pageText)
	return b.String()
}

// complete performs one chat-completion call and returns the message content.
func (p *ModelParser) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You extract structured sports betting data from web page text."},
			{Role: "user", Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: &formatSpec{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &errs.UpstreamError{Service: "model", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &errs.UpstreamError{Service: "model", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &errs.UpstreamError{Service: "model", Err: fmt.Errorf("completion returned %d", resp.StatusCode)}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &errs.UpstreamError{Service: "model", Err: fmt.Errorf("decode completion: %w", err)}
	}
	if len(cr.Choices) == 0 {
		return "", &errs.UpstreamError{Service: "model", Err: fmt.Errorf("completion had no choices")}
	}
	return cr.Choices[0].Message.Content, nil
}

// stripMarkup reduces a document to its visible text using goquery-free
// tokenizing kept local to the prompt path.
func stripMarkup(html string) string {
	var b strings.Builder
	inTag := false
	skipDepth := 0
	for i := 0; i < len(html); i++ {
		switch html[i] {
		case '<':
			inTag = true
			if foldHasPrefix(html[i:], "<script") || foldHasPrefix(html[i:], "<style") {
				skipDepth++
			} else if (foldHasPrefix(html[i:], "</script") || foldHasPrefix(html[i:], "</style")) && skipDepth > 0 {
				skipDepth--
			}
		case '>':
			inTag = false
			b.WriteByte(' ')
		default:
			if !inTag && skipDepth == 0 {
				b.WriteByte(html[i])
			}
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// foldHasPrefix reports whether s starts with prefix, ASCII
// case-insensitively. Tag names are matched in place; lowercasing the whole
// document would shift byte offsets on multi-byte case pairs.
func foldHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
