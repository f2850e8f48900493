package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/handler/dto"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/service"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/websocket"
)

// requestWait - сколько ждём первое сообщение {url} после подключения
const requestWait = 15 * time.Second

// TransitionEvent - данные сообщения PIPELINE_STATE
type TransitionEvent struct {
	State service.State `json:"state"`
	Stage service.Stage `json:"stage,omitempty"`
	At    time.Time     `json:"at"`
}

// PipelineErrorEvent - данные сообщения PIPELINE_ERROR
type PipelineErrorEvent struct {
	dto.ErrorResponse
	Status int `json:"status"`
}

// WSHandler стримит ход генерации викторины по WebSocket
type WSHandler struct {
	quizService QuizUseCase
	upgrader    gorillaws.Upgrader
	logger      *zap.Logger
}

// NewWSHandler создает обработчик WebSocket; allowedOrigins синхронизирован с CORS
func NewWSHandler(quizService QuizUseCase, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return &WSHandler{
		quizService: quizService,
		logger:      logger,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Не браузерный клиент (curl, CLI)
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				logger.Warn("websocket: rejected origin", zap.String("origin", origin))
				return false
			},
		},
	}
}

// HandleGenerate принимает {url} и отправляет каждый переход конвейера,
// затем QUIZ_READY или PIPELINE_ERROR.
// GET /ws/generate
func (h *WSHandler) HandleGenerate(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(conn, websocket.DefaultClientConfig(), h.logger)
	defer client.Close()

	conn.SetReadDeadline(time.Now().Add(requestWait))
	var req websocket.GenerateRequest
	if err := client.ReadJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		client.Send(websocket.PIPELINE_ERROR, PipelineErrorEvent{
			ErrorResponse: dto.ErrorResponse{Error: "Expected {\"url\": ...} message", ErrorType: "invalid_request"},
			Status:        http.StatusUnprocessableEntity,
		})
		return
	}
	conn.SetReadDeadline(time.Time{})

	// Отключение клиента отменяет генерацию
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	client.WaitClose(cancel)

	logger := h.logger.With(zap.String("conn_id", client.ConnectionID), zap.String("url", req.URL))
	logger.Info("websocket generation started")

	detail, err := h.quizService.GenerateQuiz(ctx, strings.TrimSpace(req.URL), func(t service.Transition) {
		if t.State == service.StateFailed {
			return
		}
		if err := client.Send(websocket.PIPELINE_STATE, TransitionEvent{State: t.State, Stage: t.Stage, At: t.At}); err != nil &&
			!errors.Is(err, websocket.ErrClientClosed) {
			logger.Debug("websocket transition not delivered", zap.Error(err))
		}
	})
	if err != nil {
		event := PipelineErrorEvent{
			ErrorResponse: dto.ErrorResponse{
				Error:     errorMessage(err),
				ErrorType: apperrors.KindName(err),
			},
			Status: ErrorStatus(err),
		}
		var stageErr *service.StageError
		if errors.As(err, &stageErr) {
			event.Stage = string(stageErr.Stage)
		}
		client.Send(websocket.PIPELINE_ERROR, event)
		return
	}

	client.Send(websocket.QUIZ_READY, dto.NewQuizResponse(detail))
	logger.Info("websocket generation finished", zap.Uint("quiz_id", detail.ID))
}
