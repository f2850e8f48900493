package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/llm"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

const (
	// DefaultMaxArticleChars - предел длины текста статьи в промпте
	DefaultMaxArticleChars = 15000
	// DefaultGenerationTimeout - таймаут вызова модели
	DefaultGenerationTimeout = 90 * time.Second
)

// Candidate - непроверенный результат генерации: разобранный JSON-объект до валидации
type Candidate map[string]interface{}

// RequiredKeys - обязательные поля верхнего уровня
var RequiredKeys = []string{"summary", "key_entities", "sections", "quiz", "related_topics"}

// firstJSONObject: от первой "{" до последней "}", включая переводы строк
var firstJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

const quizPrompt = `You are an expert quiz generator. Based on the Wikipedia article below, create an educational quiz.

Article Title: %s

Article Content:
%s

Generate a JSON object with EXACTLY this structure:
{
  "summary": "A 2-3 sentence summary of the article",
  "key_entities": {
    "people": ["list of important people mentioned"],
    "organizations": ["list of organizations mentioned"],
    "locations": ["list of locations mentioned"]
  },
  "sections": ["list of 3-7 main topics covered in the article"],
  "quiz": [
    {
      "question": "Clear, specific question based on the article content",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "answer": "The correct option (must exactly match one of the options)",
      "difficulty": "easy",
      "explanation": "Brief explanation of why this answer is correct, citing the article"
    }
  ],
  "related_topics": ["list of 3-5 related Wikipedia topics for further reading"]
}

Requirements:
1. Generate between 5 and 10 questions.
2. Every question has exactly 4 distinct options.
3. The answer must be one of the 4 options, copied exactly.
4. Mix difficulties: use "easy", "medium" and "hard".
5. Base every question strictly on facts stated in the article.
6. Keep explanations short and factual.

Return ONLY the JSON object, with no markdown formatting and no text before or after it.`

// GeneratorConfig - параметры генератора
type GeneratorConfig struct {
	MaxArticleChars int
	Timeout         time.Duration
}

// Generator строит промпт, вызывает модель и разбирает ответ в Candidate
type Generator struct {
	client   llm.Client
	maxChars int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGenerator создает генератор поверх переданного клиента модели
func NewGenerator(client llm.Client, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.MaxArticleChars <= 0 {
		cfg.MaxArticleChars = DefaultMaxArticleChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenerationTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:   client,
		maxChars: cfg.MaxArticleChars,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Generate возвращает Candidate. Ошибки модели, разбора и отсутствие обязательных
// полей оборачиваются в ErrGeneration.
func (g *Generator) Generate(ctx context.Context, articleText, articleTitle string) (Candidate, error) {
	prompt := BuildPrompt(articleTitle, TruncateText(articleText, g.maxChars))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s call failed: %w", apperrors.ErrGeneration, g.client.Provider(), err)
	}
	g.logger.Debug("model response received",
		zap.String("provider", g.client.Provider()),
		zap.String("model", g.client.Model()),
		zap.Int("response_chars", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)

	candidate, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	if quiz, ok := candidate["quiz"].([]interface{}); ok {
		if n := len(quiz); n < entity.MinQuestions || n > entity.MaxQuestions {
			g.logger.Warn("unexpected question count, validation will decide",
				zap.Int("questions", n),
				zap.String("title", articleTitle),
			)
		}
	}

	return candidate, nil
}

// BuildPrompt подставляет заголовок и текст в шаблон
func BuildPrompt(title, text string) string {
	return fmt.Sprintf(quizPrompt, title, text)
}

// TruncateText обрезает текст до max символов и добавляет "..."
func TruncateText(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}

// ParseResponse разбирает ответ модели: сначала целиком, затем первый
// фрагмент в фигурных скобках. Результат должен быть объектом со всеми RequiredKeys.
func ParseResponse(raw string) (Candidate, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		fragment := firstJSONObject.FindString(raw)
		if fragment == "" || json.Unmarshal([]byte(fragment), &parsed) != nil {
			return nil, fmt.Errorf("%w: model response is not valid JSON: %w", apperrors.ErrGeneration, err)
		}
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: model response is not a JSON object", apperrors.ErrGeneration)
	}

	var missing []string
	for _, key := range RequiredKeys {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", apperrors.ErrGeneration, strings.Join(missing, ", "))
	}

	return Candidate(obj), nil
}
