package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
)

// messageCreator is the slice of the Anthropic client the extractor uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// LLMExtractor asks a Claude model for the restaurants a post mentions.
type LLMExtractor struct {
	messages  messageCreator
	model     string
	maxTokens int64
}

// NewLLMExtractor creates an extractor backed by the Anthropic Messages API.
func NewLLMExtractor(apiKey, model string, maxTokens int64) *LLMExtractor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newLLMExtractor(&client.Messages, model, maxTokens)
}

func newLLMExtractor(messages messageCreator, model string, maxTokens int64) *LLMExtractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &LLMExtractor{messages: messages, model: model, maxTokens: maxTokens}
}

const maxPromptText = 3000

type llmRestaurant struct {
	Name           string           `json:"name"`
	City           string           `json:"city"`
	Cuisine        string           `json:"cuisine"`
	Dishes         []string         `json:"dishes"`
	PricePerPerson string           `json:"price_per_person"`
	Sentiment      domain.Sentiment `json:"sentiment"`
}

type llmReply struct {
	Restaurants []llmRestaurant `json:"restaurants"`
}

// Extract sends one post to the model. Posts outside the Bay Area are
// skipped without a call. Transport failures and unparsable replies are
// returned as errors so the runner can count them.
func (e *LLMExtractor) Extract(ctx context.Context, post Post) ([]domain.Candidate, error) {
	if !post.IsBayArea() {
		return nil, nil
	}

	msg, err := e.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(post.Text()))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm call for post %q: %w", post.ID, err)
	}
	if len(msg.Content) == 0 {
		return nil, fmt.Errorf("empty response for post %q", post.ID)
	}

	reply, err := parseReply(msg.Content[0].Text)
	if err != nil {
		return nil, fmt.Errorf("post %q: %w", post.ID, err)
	}

	var out []domain.Candidate
	for _, r := range reply.Restaurants {
		name := strings.TrimSpace(r.Name)
		if utf8.RuneCountInString(name) < 2 {
			continue
		}
		c := post.candidate(name)
		c.City = r.City
		c.Cuisine = r.Cuisine
		c.PriceRange = r.PricePerPerson
		for _, d := range r.Dishes {
			if d = strings.TrimSpace(d); d != "" {
				c.Dishes = append(c.Dishes, d)
			}
		}
		c.Sentiment = domain.SentimentNeutral
		if r.Sentiment.IsValid() {
			c.Sentiment = r.Sentiment
		}
		out = append(out, c)
	}
	return out, nil
}

// parseReply reads the JSON object between the first { and the last } of
// the model's text, which tolerates markdown fences around it.
func parseReply(text string) (llmReply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return llmReply{}, fmt.Errorf("%w: no JSON object in response", domain.ErrMalformedInput)
	}

	var reply llmReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return llmReply{}, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	return reply, nil
}

func buildPrompt(text string) string {
	if r := []rune(text); len(r) > maxPromptText {
		text = string(r[:maxPromptText])
	}
	return fmt.Sprintf(`Extract the San Francisco Bay Area restaurants mentioned in this social media post.

POST:
%s

Return ONLY a JSON object:
{"restaurants": [{"name": "", "city": "", "cuisine": "", "dishes": [], "price_per_person": "", "sentiment": "positive|negative|neutral"}]}

Use the actual restaurant name, not a description. Return {"restaurants": []} when none are mentioned.`, text)
}
