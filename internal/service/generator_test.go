package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

// fakeLLM запоминает промпт и возвращает заданный ответ
type fakeLLM struct {
	response string
	err      error
	prompt   string
	deadline bool
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	_, f.deadline = ctx.Deadline()
	return f.response, f.err
}

func (f *fakeLLM) Provider() string { return "fake" }
func (f *fakeLLM) Model() string    { return "fake-1" }

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "plain json", raw: quizJSON(5)},
		{name: "markdown fence", raw: "```json\n" + quizJSON(5) + "\n```"},
		{name: "leading prose", raw: "Here is your quiz:\n" + quizJSON(6) + "\nEnjoy!"},
		{name: "not json", raw: "I cannot help with that.", wantErr: "model response is not valid JSON"},
		{name: "broken fragment", raw: "{ summary: nope }", wantErr: "model response is not valid JSON"},
		{name: "array", raw: `[1, 2, 3]`, wantErr: "model response is not a JSON object"},
		{
			name:    "missing keys listed",
			raw:     `{"summary": "s", "quiz": []}`,
			wantErr: "missing required fields: key_entities, sections, related_topics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseResponse(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrGeneration))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, key := range RequiredKeys {
				assert.Contains(t, c, key)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abc...", TruncateText("abcdef", 3))
	assert.Equal(t, "абв...", TruncateText("абвгд", 3))

	long := strings.Repeat("x", DefaultMaxArticleChars+50)
	assert.Len(t, TruncateText(long, DefaultMaxArticleChars), DefaultMaxArticleChars+3)
}

func TestGenerator_Generate(t *testing.T) {
	// Arrange
	client := &fakeLLM{response: quizJSON(5)}
	gen := NewGenerator(client, GeneratorConfig{MaxArticleChars: 19, Timeout: time.Second}, zap.NewNop())

	// Act
	c, err := gen.Generate(context.Background(), strings.Repeat("word ", 100), "Alan Turing")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Alan Turing was an English mathematician.", c["summary"])
	assert.Contains(t, client.prompt, "Article Title: Alan Turing")
	assert.Contains(t, client.prompt, "word word word word...")
	assert.NotContains(t, client.prompt, strings.Repeat("word ", 10))
	assert.True(t, client.deadline)
}

func TestGenerator_Generate_Errors(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		gen := NewGenerator(&fakeLLM{err: errors.New("quota exceeded")}, GeneratorConfig{}, nil)

		_, err := gen.Generate(context.Background(), "text", "title")

		assert.True(t, errors.Is(err, apperrors.ErrGeneration))
		assert.ErrorContains(t, err, "fake call failed: quota exceeded")
	})

	t.Run("garbage response", func(t *testing.T) {
		gen := NewGenerator(&fakeLLM{response: "sorry"}, GeneratorConfig{}, nil)

		_, err := gen.Generate(context.Background(), "text", "title")

		assert.True(t, errors.Is(err, apperrors.ErrGeneration))
	})

	t.Run("question count is left to the validator", func(t *testing.T) {
		gen := NewGenerator(&fakeLLM{response: quizJSON(3)}, GeneratorConfig{}, nil)

		c, err := gen.Generate(context.Background(), "text", "title")

		require.NoError(t, err)
		assert.Len(t, c["quiz"], 3)
	})
}
