package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	// Window - временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix - префикс для ключей в Redis
	KeyPrefix string
}

// DefaultGenerateRateLimitConfig - лимит для генерации: каждый запрос обращается к модели
func DefaultGenerateRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 10,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:generate",
	}
}

// RateLimiter ограничивает запросы по IP + route.
// С Redis используется фиксированное окно, без него - token bucket в памяти процесса.
type RateLimiter struct {
	redisClient redis.UniversalClient
	logger      *zap.Logger

	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

// localBucket - token bucket одного клиента и время его последнего запроса
type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создает новый RateLimiter. redisClient может быть nil.
func NewRateLimiter(redisClient redis.UniversalClient, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		buckets:     make(map[string]*localBucket),
		now:         time.Now,
	}
}

// Limit возвращает Gin middleware с заданной конфигурацией
// Ключ формируется из IP + endpoint path
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		path := c.FullPath() // Gin route pattern, e.g. "/api/generate-quiz"
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, clientIP, path)

		var (
			allowed    bool
			remaining  int
			retryAfter int
		)
		if rl.redisClient != nil {
			var err error
			allowed, remaining, retryAfter, err = rl.allowRedis(c.Request.Context(), key, cfg)
			if err != nil {
				// При ошибке Redis пропускаем запрос (fail-open)
				rl.logger.Warn("rate limiter redis error, allowing request",
					zap.String("key", key), zap.Error(err))
				c.Next()
				return
			}
		} else {
			allowed, remaining, retryAfter = rl.allowLocal(key, cfg)
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

		if !allowed {
			rl.logger.Info("rate limit exceeded",
				zap.String("ip", clientIP), zap.String("path", path), zap.Int("limit", cfg.MaxRequests))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allowRedis(parent context.Context, key string, cfg RateLimitConfig) (bool, int, int, error) {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	count, err := rl.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, err
	}

	// Если это первый запрос в окне - устанавливаем TTL
	if count == 1 {
		if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
			rl.logger.Warn("rate limiter failed to set ttl", zap.String("key", key), zap.Error(err))
		}
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	ttl, _ := rl.redisClient.TTL(ctx, key).Result()
	retryAfter := int(ttl.Seconds())
	if retryAfter < 0 {
		retryAfter = int(cfg.Window.Seconds())
	}

	return int(count) <= cfg.MaxRequests, remaining, retryAfter, nil
}

func (rl *RateLimiter) allowLocal(key string, cfg RateLimitConfig) (bool, int, int) {
	now := rl.now()

	rl.mu.Lock()
	rl.sweepLocked(now, cfg.Window)
	bucket, ok := rl.buckets[key]
	if !ok {
		every := cfg.Window / time.Duration(cfg.MaxRequests)
		bucket = &localBucket{limiter: rate.NewLimiter(rate.Every(every), cfg.MaxRequests)}
		rl.buckets[key] = bucket
	}
	bucket.lastSeen = now
	rl.mu.Unlock()

	if bucket.limiter.AllowN(now, 1) {
		return true, int(bucket.limiter.TokensAt(now)), 0
	}

	retryAfter := int(cfg.Window / time.Duration(cfg.MaxRequests) / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// sweepLocked раз в окно удаляет корзины клиентов, молчавших дольше окна:
// за это время корзина успевает наполниться, и новая ведёт себя так же.
// Вызывается под rl.mu.
func (rl *RateLimiter) sweepLocked(now time.Time, window time.Duration) {
	if now.Sub(rl.lastSweep) < window {
		return
	}
	rl.lastSweep = now
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > window {
			delete(rl.buckets, key)
		}
	}
}
