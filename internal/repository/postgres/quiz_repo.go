package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

// QuizRepo реализует repository.QuizRepository поверх gorm.
// Запросы не используют диалектных конструкций, поэтому репозиторий
// работает и с PostgreSQL (основной драйвер), и с MySQL.
type QuizRepo struct {
	db *gorm.DB
}

// NewQuizRepo создает новый репозиторий викторин
func NewQuizRepo(db *gorm.DB) *QuizRepo {
	return &QuizRepo{db: db}
}

// Create создает новую запись; ID заполняется базой
func (r *QuizRepo) Create(ctx context.Context, quiz *entity.Quiz) error {
	if err := r.db.WithContext(ctx).Create(quiz).Error; err != nil {
		return fmt.Errorf("%w: insert quiz (%s): %w", apperrors.ErrPersistence, describeDBError(err), err)
	}
	return nil
}

// GetByID возвращает викторину по ID
func (r *QuizRepo) GetByID(ctx context.Context, id uint) (*entity.Quiz, error) {
	var quiz entity.Quiz
	err := r.db.WithContext(ctx).First(&quiz, id).Error
	if errors.Is(err, entity.ErrInvalidAnswers) {
		// Испорченные ответы не должны делать викторину нечитаемой:
		// перечитываем строку без user_answers
		quiz = entity.Quiz{}
		err = r.db.WithContext(ctx).Omit("user_answers").First(&quiz, id).Error
		quiz.AnswersCorrupt = err == nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: quiz #%d", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get quiz #%d: %w", id, err)
	}
	return &quiz, nil
}

// ListSummaries возвращает историю викторин, новые сверху
func (r *QuizRepo) ListSummaries(ctx context.Context) ([]entity.QuizSummary, error) {
	summaries := make([]entity.QuizSummary, 0)
	err := r.db.WithContext(ctx).
		Model(&entity.Quiz{}).
		Select("id", "url", "title", "date_generated").
		Order("date_generated DESC").
		Order("id DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return summaries, nil
}

// SetUserAnswers целиком перезаписывает user_answers одной командой UPDATE.
// MySQL возвращает RowsAffected = 0 и для неизменённой строки, поэтому
// в этом случае существование записи проверяется отдельно.
func (r *QuizRepo) SetUserAnswers(ctx context.Context, id uint, answers entity.AnswerMap) error {
	if answers == nil {
		answers = entity.AnswerMap{}
	}

	result := r.db.WithContext(ctx).
		Model(&entity.Quiz{}).
		Where("id = ?", id).
		Update("user_answers", answers)
	if result.Error != nil {
		return fmt.Errorf("%w: update answers for quiz #%d (%s): %w",
			apperrors.ErrPersistence, id, describeDBError(result.Error), result.Error)
	}

	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Quiz{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check quiz #%d: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: quiz #%d", apperrors.ErrNotFound, id)
	}
	return nil
}

// Count возвращает общее число викторин (для /stats)
func (r *QuizRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Quiz{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count quizzes: %w", err)
	}
	return count, nil
}

// Ping проверяет соединение с базой
func (r *QuizRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// describeDBError возвращает короткое описание ошибки драйвера по SQLSTATE / коду MySQL
func describeDBError(err error) string {
	switch code := sqlState(err); code {
	case "":
		return "database error"
	case "22001", "1406":
		return "value too long for column"
	case "23505", "1062":
		return "unique violation"
	case "23502", "1048":
		return "not null violation"
	case "42P01", "1146":
		return "table is missing, run migrations"
	default:
		return "sqlstate " + code
	}
}

// sqlState извлекает код ошибки из pgconn, lib/pq и go-sql-driver/mysql
func sqlState(err error) string {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return fmt.Sprintf("%d", myErr.Number)
	}
	return ""
}
