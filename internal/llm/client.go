package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Поддерживаемые провайдеры
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 8192
)

// ErrMissingAPIKey возвращается фабрикой, если ключ API не задан
var ErrMissingAPIKey = errors.New("llm api key is not configured")

// Client - вызов текстовой модели: промпт на входе, текст ответа на выходе.
// Экземпляр создается один раз при старте и передается в сервисы явно.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Provider() string
	Model() string
}

// Config - параметры клиента модели
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // OpenAI-совместимые шлюзы
	Temperature float64
	MaxTokens   int
}

// New создает клиента выбранного провайдера
func New(ctx context.Context, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// Ping делает минимальный запрос к модели, чтобы убедиться, что ключ и модель рабочие
func Ping(ctx context.Context, c Client) error {
	out, err := c.Complete(ctx, "Say 'Hello' in one word.")
	if err != nil {
		return fmt.Errorf("%s connection test failed: %w", c.Provider(), err)
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("%s connection test returned an empty response", c.Provider())
	}
	return nil
}

// unconfigured подставляется, когда ключ не задан: сервис стартует,
// а каждая генерация завершается ErrMissingAPIKey.
type unconfigured struct {
	provider string
}

// Unconfigured возвращает клиента, который всегда отвечает ErrMissingAPIKey
func Unconfigured(provider string) Client {
	if provider == "" {
		provider = ProviderGemini
	}
	return unconfigured{provider: strings.ToLower(provider)}
}

func (u unconfigured) Complete(context.Context, string) (string, error) {
	return "", ErrMissingAPIKey
}

func (u unconfigured) Provider() string { return u.provider }
func (u unconfigured) Model() string    { return "" }
