package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

const (
	// DefaultTimeout - фиксированный таймаут загрузки статьи
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent - заголовок браузера; Википедия режет запросы с пустым User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultMaxBodyBytes ограничивает размер загружаемой страницы
	DefaultMaxBodyBytes int64 = 10 << 20

	// MaxURLLength совпадает с размером колонки quizzes.url
	MaxURLLength = 500
)

// articleURL: <2-3 буквы>.wikipedia.org/wiki/<статья> или wikipedia.org/wiki/<статья>.
// Схема и хост сравниваются без учёта регистра, путь - с учётом.
var articleURL = regexp.MustCompile(`^(?i:https?://([a-z]{2,3}\.)?wikipedia\.org)/wiki/.+`)

// ValidateURL проверяет, что URL указывает на статью Википедии.
// Вызывается до любого сетевого запроса.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is empty", apperrors.ErrInvalidURL)
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("%w: url is longer than %d characters", apperrors.ErrInvalidURL, MaxURLLength)
	}
	if !articleURL.MatchString(rawURL) {
		return fmt.Errorf("%w: %q is not a Wikipedia article url", apperrors.ErrInvalidURL, rawURL)
	}
	return nil
}

// FetcherConfig - параметры HTTPFetcher
type FetcherConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// HTTPFetcher загружает HTML статьи по HTTP
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPFetcher создает загрузчик; нулевые поля конфигурации заменяются значениями по умолчанию
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPFetcher{
		client:       &http.Client{Timeout: cfg.Timeout},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetch возвращает тело страницы. Сетевые ошибки и не-2xx статусы оборачиваются в ErrFetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", apperrors.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", apperrors.ErrFetch, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", apperrors.ErrFetch, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty body", apperrors.ErrFetch, rawURL)
	}
	return body, nil
}
