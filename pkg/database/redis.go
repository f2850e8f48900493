package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/config"
)

// Кеш и счётчики rate limit не должны задерживать генерацию викторины:
// при медленном Redis запрос быстрее уйдёт в базу или в локальный лимитер.
const (
	cacheDialTimeout = 2 * time.Second
	cacheIOTimeout   = 500 * time.Millisecond
	cachePingTimeout = 5 * time.Second
)

// cacheOptions собирает опции клиента кеша викторин из конфигурации
func cacheOptions(cfg config.RedisConfig) (mode string, opts *redis.UniversalOptions, err error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return "", nil, fmt.Errorf("redis configuration error: addrs or addr must be provided")
	}

	mode = strings.ToLower(cfg.Mode)
	if mode == "" {
		mode = "single"
	}

	opts = &redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cacheDialTimeout,
		ReadTimeout:  cacheIOTimeout,
		WriteTimeout: cacheIOTimeout,
	}
	if cfg.MinRetryBackoff > 0 {
		opts.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff > 0 {
		opts.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}

	switch mode {
	case "single":
		// Лишние адреса игнорируются, иначе UniversalClient молча станет кластерным
		opts.Addrs = addrs[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return "", nil, fmt.Errorf("redis sentinel mode requires master_name")
		}
		opts.MasterName = cfg.MasterName
	case "cluster":
		if cfg.DB != 0 {
			return "", nil, fmt.Errorf("redis cluster mode supports only db 0, got %d", cfg.DB)
		}
	default:
		return "", nil, fmt.Errorf("unsupported redis mode: %s", cfg.Mode)
	}
	return mode, opts, nil
}

// NewCacheClient подключает Redis для кеша викторин и счётчиков rate limit.
// Возвращает nil без ошибки, если Redis выключен: сервис тогда работает без кеша.
func NewCacheClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	mode, opts, err := cacheOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch mode {
	case "cluster":
		// Кластер из одного seed-адреса UniversalClient принял бы за single
		client = redis.NewClusterClient(opts.Cluster())
	case "sentinel":
		client = redis.NewFailoverClient(opts.Failover())
	default:
		client = redis.NewClient(opts.Simple())
	}

	if err := PingCache(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", mode, opts.Addrs, err)
	}
	return client, nil
}

// PingCache проверяет доступность Redis с собственным таймаутом
func PingCache(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, cachePingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}
