package repository

import (
	"context"
	"time"
)

// CacheRepository определяет методы для работы с кешем.
// Промах кеша возвращается как apperrors.ErrNotFound.
type CacheRepository interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
