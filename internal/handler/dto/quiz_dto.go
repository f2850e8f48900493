package dto

import (
	"time"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/service"
)

// GenerateQuizRequest - тело POST /api/generate-quiz
type GenerateQuizRequest struct {
	URL string `json:"url" binding:"required"`
}

// SubmitAnswersRequest - тело POST /api/submit-answers. Ключи answers - индексы вопросов.
type SubmitAnswersRequest struct {
	QuizID  uint              `json:"quiz_id" binding:"required"`
	Answers map[string]string `json:"answers" binding:"required"`
}

// SubmitAnswersResponse подтверждает сохранение ответов
type SubmitAnswersResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	QuizID  uint   `json:"quiz_id"`
}

// ScoreResponse - результат по сохранённым ответам
type ScoreResponse struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// QuizResponse представляет викторину в формате для ответа клиенту
type QuizResponse struct {
	ID            uint                  `json:"id"`
	URL           string                `json:"url"`
	Title         string                `json:"title"`
	DateGenerated time.Time             `json:"date_generated"`
	Summary       string                `json:"summary"`
	KeyEntities   entity.KeyEntities    `json:"key_entities"`
	Sections      []string              `json:"sections"`
	Quiz          []entity.QuizQuestion `json:"quiz"`
	RelatedTopics []string              `json:"related_topics"`
	UserAnswers   map[string]string     `json:"user_answers"`
	Score         *ScoreResponse        `json:"score,omitempty"`
}

// HistoryItemResponse - строка истории
type HistoryItemResponse struct {
	ID            uint      `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	DateGenerated time.Time `json:"date_generated"`
}

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
	Stage     string `json:"stage,omitempty"`
}

// NewQuizResponse создает DTO для викторины. Ответы отдаются как сохранены
// (NULL - null, {} - {}), Score заполняется, только если ответы не пусты.
func NewQuizResponse(detail *service.QuizDetail) *QuizResponse {
	resp := &QuizResponse{
		ID:            detail.ID,
		URL:           detail.URL,
		Title:         detail.Title,
		DateGenerated: detail.DateGenerated,
		Summary:       detail.Summary,
		KeyEntities:   detail.KeyEntities,
		Sections:      detail.Sections,
		Quiz:          detail.Quiz,
		RelatedTopics: detail.RelatedTopics,
		UserAnswers:   detail.UserAnswers,
	}
	if correct, total, ok := detail.Score(); ok {
		resp.Score = &ScoreResponse{Correct: correct, Total: total}
	}
	return resp
}

// NewHistoryResponse создает DTO для списка истории; пустая история - пустой массив
func NewHistoryResponse(summaries []entity.QuizSummary) []HistoryItemResponse {
	items := make([]HistoryItemResponse, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, HistoryItemResponse{
			ID:            s.ID,
			URL:           s.URL,
			Title:         s.Title,
			DateGenerated: s.DateGenerated,
		})
	}
	return items
}
