package entity

import (
	"time"
)

// Quiz представляет сохранённую викторину (одна строка на успешную генерацию).
// FullQuizData хранит сериализованный QuizOutput и после записи не меняется;
// единственное изменяемое поле - UserAnswers.
type Quiz struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	URL            string    `gorm:"size:500;not null;index" json:"url"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	DateGenerated  time.Time `gorm:"column:date_generated;not null;index" json:"date_generated"`
	ScrapedContent *string   `gorm:"column:scraped_content" json:"-"`
	FullQuizData   string    `gorm:"column:full_quiz_data;not null" json:"-"`
	UserAnswers    AnswerMap `gorm:"column:user_answers" json:"user_answers,omitempty"`

	// AnswersCorrupt: user_answers не разобрался и был отброшен при чтении
	AnswersCorrupt bool `gorm:"-" json:"-"`
}

// TableName определяет имя таблицы для GORM
func (Quiz) TableName() string {
	return "quizzes"
}

// HasAnswers сообщает, отправлял ли пользователь ответы
func (q *Quiz) HasAnswers() bool {
	return q.UserAnswers != nil
}

// QuizSummary - строка истории: только метаданные, без payload
type QuizSummary struct {
	ID            uint      `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	DateGenerated time.Time `json:"date_generated"`
}
