package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/iris-familiar/bay-area-food-map-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMessages struct {
	NewFunc func(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
	calls   int
}

func (m *mockMessages) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	m.calls++
	return m.NewFunc(ctx, body, opts...)
}

func textReply(text string) *anthropic.Message {
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: text}}}
}

var bayPost = Post{ID: "p1", Title: "湾区日料", Desc: "Sausalito 的 Sushi Ran"}

func TestLLMExtractor_Extract(t *testing.T) {
	t.Parallel()

	mock := &mockMessages{NewFunc: func(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
		assert.Equal(t, anthropic.Model("test-model"), body.Model)
		assert.Equal(t, int64(512), body.MaxTokens)
		return textReply("```json\n" + `{"restaurants": [
			{"name": " Sushi Ran ", "city": "Sausalito", "cuisine": "Japanese", "dishes": ["uni", " "], "price_per_person": "$80", "sentiment": "positive"},
			{"name": "x"},
			{"name": "Nopa", "sentiment": "ecstatic"}
		]}` + "\n```"), nil
	}}

	got, err := newLLMExtractor(mock, "test-model", 512).Extract(context.Background(), bayPost)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Sushi Ran", got[0].Name)
	assert.Equal(t, "p1", got[0].SourcePostID)
	assert.Equal(t, "Sausalito", got[0].City)
	assert.Equal(t, "Japanese", got[0].Cuisine)
	assert.Equal(t, "$80", got[0].PriceRange)
	assert.Equal(t, []string{"uni"}, got[0].Dishes)
	assert.Equal(t, domain.SentimentPositive, got[0].Sentiment)

	assert.Equal(t, "Nopa", got[1].Name)
	assert.Equal(t, domain.SentimentNeutral, got[1].Sentiment)
}

func TestLLMExtractor_SkipsOutsideBayArea(t *testing.T) {
	t.Parallel()

	mock := &mockMessages{}
	got, err := newLLMExtractor(mock, "m", 0).Extract(context.Background(), Post{Desc: "北京烤鸭"})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, mock.calls)
}

func TestLLMExtractor_Errors(t *testing.T) {
	t.Parallel()

	callErr := errors.New("overloaded")
	tests := []struct {
		name    string
		msg     *anthropic.Message
		err     error
		wantErr error
	}{
		{"transport", nil, callErr, callErr},
		{"no JSON", textReply("sorry, none here"), nil, domain.ErrMalformedInput},
		{"broken JSON", textReply(`{"restaurants": [}`), nil, domain.ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mock := &mockMessages{NewFunc: func(context.Context, anthropic.MessageNewParams, ...option.RequestOption) (*anthropic.Message, error) {
				return tt.msg, tt.err
			}}
			_, err := newLLMExtractor(mock, "m", 0).Extract(context.Background(), bayPost)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLLMExtractor_EmptyContent(t *testing.T) {
	t.Parallel()

	mock := &mockMessages{NewFunc: func(context.Context, anthropic.MessageNewParams, ...option.RequestOption) (*anthropic.Message, error) {
		return &anthropic.Message{}, nil
	}}
	_, err := newLLMExtractor(mock, "m", 0).Extract(context.Background(), bayPost)
	assert.Error(t, err)
}

func TestBuildPrompt_Truncates(t *testing.T) {
	t.Parallel()

	prompt := buildPrompt(strings.Repeat("字", maxPromptText+500))
	assert.Equal(t, maxPromptText, strings.Count(prompt, "字"))
}
