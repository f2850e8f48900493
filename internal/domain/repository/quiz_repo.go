package repository

import (
	"context"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
)

// QuizRepository определяет методы для работы с сохранёнными викторинами.
// Все записи - одна строка, один запрос; многострочных транзакций нет.
type QuizRepository interface {
	// Create вставляет запись и заполняет quiz.ID
	Create(ctx context.Context, quiz *entity.Quiz) error
	// GetByID возвращает apperrors.ErrNotFound для неизвестного id
	GetByID(ctx context.Context, id uint) (*entity.Quiz, error)
	// ListSummaries возвращает историю: новые сверху, без payload
	ListSummaries(ctx context.Context) ([]entity.QuizSummary, error)
	// SetUserAnswers целиком перезаписывает ответы; apperrors.ErrNotFound для неизвестного id
	SetUserAnswers(ctx context.Context, id uint, answers entity.AnswerMap) error
	Count(ctx context.Context) (int64, error)
	// Ping проверяет соединение с базой
	Ping(ctx context.Context) error
}
