package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/handler/dto"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/handler/helper"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/service"
)

// QuizUseCase - операции сервиса викторин, нужные обработчикам
type QuizUseCase interface {
	GenerateQuiz(ctx context.Context, url string, obs ...service.Observer) (*service.QuizDetail, error)
	GetQuiz(ctx context.Context, id uint) (*service.QuizDetail, error)
	ListHistory(ctx context.Context) ([]entity.QuizSummary, error)
	SubmitAnswers(ctx context.Context, id uint, answers entity.AnswerMap) error
}

// QuizHandler обрабатывает запросы, связанные с викторинами
type QuizHandler struct {
	quizService QuizUseCase
	logger      *zap.Logger
}

// NewQuizHandler создает новый обработчик викторин
func NewQuizHandler(quizService QuizUseCase, logger *zap.Logger) *QuizHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizHandler{
		quizService: quizService,
		logger:      logger,
	}
}

// GenerateQuiz проводит статью через конвейер и возвращает сохранённую викторину
// POST /api/generate-quiz
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	var req dto.GenerateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	url := strings.TrimSpace(req.URL)

	h.logger.Info("generating quiz", zap.String("url", url), zap.String("request_id", c.GetString("requestID")))

	detail, err := h.quizService.GenerateQuiz(c.Request.Context(), url)
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(detail))
}

// GetHistory возвращает список всех викторин, новые первыми
// GET /api/history
func (h *QuizHandler) GetHistory(c *gin.Context) {
	summaries, err := h.quizService.ListHistory(c.Request.Context())
	if err != nil {
		h.handleQuizError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewHistoryResponse(summaries))
}

// GetQuiz возвращает викторину с ответами пользователя
// GET /api/quiz/:id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint) // Получаем из контекста

	detail, err := h.quizService.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.handleQuizError(c, err, quizID)
		return
	}

	c.JSON(http.StatusOK, dto.NewQuizResponse(detail))
}

// SubmitAnswers сохраняет ответы пользователя, перезаписывая предыдущие
// POST /api/submit-answers
func (h *QuizHandler) SubmitAnswers(c *gin.Context) {
	var req dto.SubmitAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.quizService.SubmitAnswers(c.Request.Context(), req.QuizID, entity.AnswerMap(req.Answers)); err != nil {
		h.handleQuizError(c, err, req.QuizID)
		return
	}

	c.JSON(http.StatusOK, dto.SubmitAnswersResponse{
		Success: true,
		Message: "Answers saved successfully",
		QuizID:  req.QuizID,
	})
}

// ExportQuiz экспортирует вопросы викторины в CSV или Excel формате
// GET /api/quiz/:id/export?format=csv|xlsx
func (h *QuizHandler) ExportQuiz(c *gin.Context) {
	quizID := c.MustGet("quizID").(uint)
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:     fmt.Sprintf("Unsupported export format: %s", format),
			ErrorType: "invalid_request",
		})
		return
	}

	detail, err := h.quizService.GetQuiz(c.Request.Context(), quizID)
	if err != nil {
		h.handleQuizError(c, err, quizID)
		return
	}

	rows := helper.ConvertQuestionsToRows(detail.Quiz, detail.UserAnswers)
	filename := fmt.Sprintf("quiz_%d_%s", quizID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, detail, rows, filename)
	default:
		h.exportCSV(c, rows, filename)
	}
}

var exportHeaders = []string{"#", "Question", "Option A", "Option B", "Option C", "Option D", "Answer", "Difficulty", "Explanation", "Your answer", "Correct"}

func rowCells(r helper.QuestionRow) []string {
	cells := make([]string, 0, len(exportHeaders))
	cells = append(cells, strconv.Itoa(r.Number), sanitizeForExcel(r.Question))
	for i := 0; i < entity.OptionsPerQuestion; i++ {
		opt := ""
		if i < len(r.Options) {
			opt = r.Options[i]
		}
		cells = append(cells, sanitizeForExcel(opt))
	}
	return append(cells,
		sanitizeForExcel(r.Answer),
		r.Difficulty,
		sanitizeForExcel(r.Explanation),
		sanitizeForExcel(r.UserAnswer),
		r.Correct,
	)
}

// exportCSV экспортирует вопросы в CSV с правильным экранированием спецсимволов
func (h *QuizHandler) exportCSV(c *gin.Context, rows []helper.QuestionRow, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(exportHeaders)
	for _, r := range rows {
		writer.Write(rowCells(r))
	}
}

// exportXLSX экспортирует вопросы в Excel с использованием StreamWriter
func (h *QuizHandler) exportXLSX(c *gin.Context, detail *service.QuizDetail, rows []helper.QuestionRow, filename string) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Quiz"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		h.logger.Error("excel stream writer", zap.Uint("quiz_id", detail.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create Excel file", ErrorType: "internal"})
		return
	}

	if err := sw.SetRow("A1", []interface{}{sanitizeForExcel(detail.Title), detail.URL}); err != nil {
		h.logger.Warn("excel title row", zap.Error(err))
	}

	headers := make([]interface{}, len(exportHeaders))
	for i, v := range exportHeaders {
		headers[i] = v
	}
	if err := sw.SetRow("A3", headers); err != nil {
		h.logger.Warn("excel header row", zap.Error(err))
	}

	for i, r := range rows {
		rowNum := i + 4
		cells := rowCells(r)
		row := make([]interface{}, len(cells))
		row[0] = r.Number
		for j := 1; j < len(cells); j++ {
			row[j] = cells[j]
		}
		if err := sw.SetRow(fmt.Sprintf("A%d", rowNum), row); err != nil {
			h.logger.Warn("excel data row", zap.Int("row", rowNum), zap.Error(err))
		}
	}

	if err := sw.Flush(); err != nil {
		h.logger.Error("excel flush", zap.Error(err))
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("excel write response", zap.Error(err))
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// badRequest отвечает на некорректное тело запроса
func (h *QuizHandler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
		Error:     fmt.Sprintf("Invalid request data: %v", err),
		ErrorType: "invalid_request",
	})
}

// ErrorStatus сопоставляет вид ошибки HTTP статусу
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidURL),
		errors.Is(err, apperrors.ErrFetch),
		errors.Is(err, apperrors.ErrExtraction):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage формирует текст ошибки для клиента по виду ошибки
func errorMessage(err error, quizID ...uint) string {
	id := ""
	if len(quizID) > 0 {
		id = strconv.FormatUint(uint64(quizID[0]), 10)
	}
	switch {
	case errors.Is(err, apperrors.ErrInvalidURL),
		errors.Is(err, apperrors.ErrFetch),
		errors.Is(err, apperrors.ErrExtraction):
		return fmt.Sprintf("Failed to scrape Wikipedia article: %v", err)
	case errors.Is(err, apperrors.ErrGeneration):
		return fmt.Sprintf("Failed to generate quiz: %v", err)
	case errors.Is(err, apperrors.ErrValidation):
		return fmt.Sprintf("Generated quiz data is invalid: %v", err)
	case errors.Is(err, apperrors.ErrPersistence):
		return fmt.Sprintf("Failed to save quiz to database: %v", err)
	case errors.Is(err, apperrors.ErrNotFound):
		return fmt.Sprintf("Quiz with ID %s not found", id)
	case errors.Is(err, apperrors.ErrCorruptRecord):
		return fmt.Sprintf("Quiz data is corrupted for ID %s", id)
	default:
		return "Internal server error"
	}
}

// handleQuizError обрабатывает ошибки от сервиса викторин и отправляет соответствующий HTTP ответ
func (h *QuizHandler) handleQuizError(c *gin.Context, err error, quizID ...uint) {
	status := ErrorStatus(err)
	resp := dto.ErrorResponse{
		Error:     errorMessage(err, quizID...),
		ErrorType: apperrors.KindName(err),
	}
	var stageErr *service.StageError
	if errors.As(err, &stageErr) {
		resp.Stage = string(stageErr.Stage)
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("quiz request failed",
			zap.String("path", c.FullPath()),
			zap.String("error_type", resp.ErrorType),
			zap.Error(err),
		)
	}
	c.JSON(status, resp)
}
