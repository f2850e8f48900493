package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/repository"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/scraper"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/monitoring"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/tracing"
)

const (
	// MaxTitleLength - длина колонки title
	MaxTitleLength = 200

	DefaultQueryTimeout    = 5 * time.Second
	DefaultQuizCacheTTL    = 10 * time.Minute
	DefaultArticleCacheTTL = time.Hour

	quizCacheKeyPrefix    = "quiz:"
	articleCacheKeyPrefix = "article:"
)

// ArticleFetcher загружает HTML статьи
type ArticleFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ArticleExtractor превращает HTML в чистый текст и заголовок
type ArticleExtractor interface {
	Extract(rawHTML []byte) (text string, title string, err error)
}

// QuizGenerator получает Candidate от модели
type QuizGenerator interface {
	Generate(ctx context.Context, articleText, articleTitle string) (Candidate, error)
}

// QuizServiceConfig - таймауты и TTL кешей
type QuizServiceConfig struct {
	QueryTimeout    time.Duration
	QuizCacheTTL    time.Duration
	ArticleCacheTTL time.Duration
}

// QuizDetail - сохранённая викторина вместе с восстановленным QuizOutput
type QuizDetail struct {
	ID            uint      `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	DateGenerated time.Time `json:"date_generated"`
	entity.QuizOutput
	UserAnswers entity.AnswerMap `json:"user_answers"`
}

// Score считает правильные ответы; ok == false, если ответов ещё нет
func (d *QuizDetail) Score() (correct, total int, ok bool) {
	if len(d.UserAnswers) == 0 {
		return 0, len(d.Quiz), false
	}
	correct, total = d.QuizOutput.Score(d.UserAnswers)
	return correct, total, true
}

// Stats - диагностика хранилища
type Stats struct {
	TotalQuizzes int64     `json:"total_quizzes"`
	Timestamp    time.Time `json:"timestamp"`
}

// cachedArticle хранится в кеше статей под ключом article:<blake2b(url)>
type cachedArticle struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

// QuizService проводит статью через конвейер и обслуживает сохранённые викторины
type QuizService struct {
	fetcher   ArticleFetcher
	extractor ArticleExtractor
	generator QuizGenerator
	quizRepo  repository.QuizRepository
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
	config    QuizServiceConfig
}

// NewQuizService создает новый сервис викторин. cacheRepo может быть nil.
func NewQuizService(
	fetcher ArticleFetcher,
	extractor ArticleExtractor,
	generator QuizGenerator,
	quizRepo repository.QuizRepository,
	cacheRepo repository.CacheRepository,
	config QuizServiceConfig,
	logger *zap.Logger,
) *QuizService {
	if cacheRepo == nil {
		cacheRepo = noopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = DefaultQueryTimeout
	}
	if config.QuizCacheTTL <= 0 {
		config.QuizCacheTTL = DefaultQuizCacheTTL
	}
	if config.ArticleCacheTTL <= 0 {
		config.ArticleCacheTTL = DefaultArticleCacheTTL
	}
	return &QuizService{
		fetcher:   fetcher,
		extractor: extractor,
		generator: generator,
		quizRepo:  quizRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
		config:    config,
	}
}

// Draft - проверенная, но ещё не сохранённая викторина
type Draft struct {
	URL    string
	Title  string
	Text   string
	Output *entity.QuizOutput
}

// GenerateQuiz проводит URL через fetch → extract → generate → validate → store.
// Ошибка стадии возвращается как *StageError; запись создаётся только после валидации.
func (s *QuizService) GenerateQuiz(ctx context.Context, url string, obs ...Observer) (*QuizDetail, error) {
	notify := observers(obs)

	ctx, span := tracing.Tracer().Start(ctx, "quiz.generate")
	span.SetAttributes(attribute.String("wiki.url", url))
	defer span.End()

	draft, err := s.draft(ctx, url, notify)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, draft, notify)
}

// PreviewQuiz проводит URL через стадии до validate включительно, ничего не записывая
func (s *QuizService) PreviewQuiz(ctx context.Context, url string, obs ...Observer) (*Draft, error) {
	ctx, span := tracing.Tracer().Start(ctx, "quiz.preview")
	span.SetAttributes(attribute.String("wiki.url", url))
	defer span.End()

	return s.draft(ctx, url, observers(obs))
}

// SaveDraft сохраняет ранее проверенную викторину
func (s *QuizService) SaveDraft(ctx context.Context, draft *Draft, obs ...Observer) (*QuizDetail, error) {
	if draft == nil || draft.Output == nil {
		return nil, &StageError{Stage: StageStore, Err: fmt.Errorf("%w: empty draft", apperrors.ErrPersistence)}
	}
	ctx, span := tracing.Tracer().Start(ctx, "quiz.save")
	defer span.End()

	return s.store(ctx, draft, observers(obs))
}

// fail оформляет ошибку стадии: событие failed, статус span и лог
func (s *QuizService) fail(ctx context.Context, notify observers, url string, stage Stage, err error) *StageError {
	stageErr := &StageError{Stage: stage, Err: err}
	notify.emit(Transition{State: StateFailed, Stage: stage, Err: stageErr})

	span := trace.SpanFromContext(ctx)
	span.RecordError(stageErr)
	span.SetStatus(codes.Error, string(stage))

	s.logger.Warn("quiz generation failed",
		zap.String("stage", string(stage)),
		zap.String("kind", apperrors.KindName(err)),
		zap.String("url", url),
		zap.Error(err),
	)
	return stageErr
}

func (s *QuizService) draft(ctx context.Context, url string, notify observers) (*Draft, error) {
	notify.emit(Transition{State: StateStart})

	// URL проверяется до любого сетевого запроса
	if err := scraper.ValidateURL(url); err != nil {
		monitoring.ObserveStage(string(StageFetch), 0, apperrors.KindName(err))
		return nil, s.fail(ctx, notify, url, StageFetch, err)
	}

	var (
		text, title string
		fromCache   bool
	)
	if article, ok := s.cachedArticle(ctx, url); ok {
		text, title, fromCache = article.Text, article.Title, true
		notify.emit(Transition{State: StateFetched, Stage: StageFetch})
		notify.emit(Transition{State: StateExtracted, Stage: StageExtract})
	}

	if !fromCache {
		var raw []byte
		err := s.runStage(ctx, StageFetch, notify, func(ctx context.Context) error {
			var err error
			raw, err = s.fetcher.Fetch(ctx, url)
			return err
		})
		if err != nil {
			return nil, s.fail(ctx, notify, url, StageFetch, err)
		}

		err = s.runStage(ctx, StageExtract, notify, func(context.Context) error {
			var err error
			text, title, err = s.extractor.Extract(raw)
			return err
		})
		if err != nil {
			return nil, s.fail(ctx, notify, url, StageExtract, err)
		}
		s.storeArticle(ctx, url, cachedArticle{Text: text, Title: title})
	}

	var candidate Candidate
	err := s.runStage(ctx, StageGenerate, notify, func(ctx context.Context) error {
		var err error
		candidate, err = s.generator.Generate(ctx, text, title)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, notify, url, StageGenerate, err)
	}

	var output *entity.QuizOutput
	err = s.runStage(ctx, StageValidate, notify, func(context.Context) error {
		var err error
		output, err = ValidateCandidate(candidate)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, notify, url, StageValidate, err)
	}
	for _, w := range ConsistencyWarnings(output) {
		monitoring.ConsistencyWarnings.Inc()
		s.logger.Warn("quiz consistency warning", zap.String("url", url), zap.String("issue", w))
	}

	s.logger.Debug("quiz validated",
		zap.String("url", url),
		zap.Int("questions", len(output.Quiz)),
		zap.Bool("article_cached", fromCache),
	)
	return &Draft{URL: url, Title: title, Text: text, Output: output}, nil
}

func (s *QuizService) store(ctx context.Context, draft *Draft, notify observers) (*QuizDetail, error) {
	var quiz *entity.Quiz
	err := s.runStage(ctx, StageStore, notify, func(ctx context.Context) error {
		payload, err := EncodePayload(draft.Output)
		if err != nil {
			return err
		}
		content := draft.Text
		quiz = &entity.Quiz{
			URL:            draft.URL,
			Title:          truncateTitle(draft.Title),
			DateGenerated:  time.Now().UTC(),
			ScrapedContent: &content,
			FullQuizData:   payload,
		}
		ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
		defer cancel()
		return s.quizRepo.Create(ctx, quiz)
	})
	if err != nil {
		return nil, s.fail(ctx, notify, draft.URL, StageStore, err)
	}

	monitoring.QuizzesGenerated.Inc()
	notify.emit(Transition{State: StateDone})
	s.logger.Info("quiz generated",
		zap.Uint("quiz_id", quiz.ID),
		zap.String("title", quiz.Title),
		zap.Int("questions", len(draft.Output.Quiz)),
	)

	return &QuizDetail{
		ID:            quiz.ID,
		URL:           quiz.URL,
		Title:         quiz.Title,
		DateGenerated: quiz.DateGenerated,
		QuizOutput:    *draft.Output,
	}, nil
}

// runStage выполняет стадию в отдельном span, пишет метрики и сообщает о переходе
func (s *QuizService) runStage(ctx context.Context, stage Stage, notify observers, fn func(context.Context) error) error {
	ctx, span := tracing.Tracer().Start(ctx, "quiz.stage."+string(stage))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		kind := apperrors.KindName(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		monitoring.ObserveStage(string(stage), elapsed, kind)
		return err
	}

	monitoring.ObserveStage(string(stage), elapsed, "")
	notify.emit(Transition{State: completedState[stage], Stage: stage})
	return nil
}

// GetQuiz возвращает викторину по ID, сначала из кеша
func (s *QuizService) GetQuiz(ctx context.Context, id uint) (*QuizDetail, error) {
	// Версия меняется при каждой отправке ответов, поэтому запись, собранная
	// из строки до обновления, попадает под старый ключ и больше не читается
	version, cacheable := s.quizVersion(ctx, id)
	key := quizCacheKey(id, version)

	if cacheable {
		var cached QuizDetail
		err := s.cacheRepo.GetJSON(ctx, key, &cached)
		if err == nil {
			monitoring.ObserveCache("quiz", true)
			return &cached, nil
		}
		monitoring.ObserveCache("quiz", false)
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("quiz cache read failed", zap.Uint("quiz_id", id), zap.Error(err))
		}
	}

	qctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	quiz, err := s.quizRepo.GetByID(qctx, id)
	if err != nil {
		return nil, err
	}

	output, err := DecodePayload(quiz.FullQuizData)
	if err != nil {
		s.logger.Error("stored quiz payload is corrupt", zap.Uint("quiz_id", id), zap.Error(err))
		return nil, fmt.Errorf("quiz %d: %w", id, err)
	}

	detail := &QuizDetail{
		ID:            quiz.ID,
		URL:           quiz.URL,
		Title:         quiz.Title,
		DateGenerated: quiz.DateGenerated,
		QuizOutput:    *output,
		UserAnswers:   quiz.UserAnswers,
	}

	if quiz.AnswersCorrupt {
		s.logger.Warn("stored user answers are corrupt, returning quiz without answers", zap.Uint("quiz_id", id))
	}

	if cacheable {
		if err := s.cacheRepo.SetJSON(ctx, key, detail, s.config.QuizCacheTTL); err != nil {
			s.logger.Warn("quiz cache write failed", zap.Uint("quiz_id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// ListHistory возвращает сводки всех викторин, новые первыми
func (s *QuizService) ListHistory(ctx context.Context) ([]entity.QuizSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()
	return s.quizRepo.ListSummaries(ctx)
}

// SubmitAnswers целиком перезаписывает ответы пользователя
func (s *QuizService) SubmitAnswers(ctx context.Context, id uint, answers entity.AnswerMap) error {
	if answers == nil {
		answers = entity.AnswerMap{}
	}

	qctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	if err := s.quizRepo.SetUserAnswers(qctx, id, answers); err != nil {
		return err
	}

	// Версия живёт дольше записей кеша: пока она есть, записи версии "0" уже истекли
	version := strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := s.cacheRepo.SetJSON(ctx, quizVersionKey(id), version, 2*s.config.QuizCacheTTL); err != nil {
		s.logger.Warn("quiz cache invalidation failed", zap.Uint("quiz_id", id), zap.Error(err))
	}
	s.logger.Info("answers submitted", zap.Uint("quiz_id", id), zap.Int("answers", len(answers)))
	return nil
}

// Stats возвращает количество сохранённых викторин
func (s *QuizService) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	total, err := s.quizRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalQuizzes: total, Timestamp: time.Now().UTC()}, nil
}

// CheckDatabase проверяет соединение с хранилищем
func (s *QuizService) CheckDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()
	return s.quizRepo.Ping(ctx)
}

// CheckCache проверяет соединение с кешем
func (s *QuizService) CheckCache(ctx context.Context) error {
	return s.cacheRepo.Ping(ctx)
}

func (s *QuizService) cachedArticle(ctx context.Context, url string) (cachedArticle, bool) {
	var article cachedArticle
	err := s.cacheRepo.GetJSON(ctx, ArticleCacheKey(url), &article)
	if err != nil {
		monitoring.ObserveCache("article", false)
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("article cache read failed", zap.String("url", url), zap.Error(err))
		}
		return cachedArticle{}, false
	}
	monitoring.ObserveCache("article", true)
	return article, true
}

func (s *QuizService) storeArticle(ctx context.Context, url string, article cachedArticle) {
	if err := s.cacheRepo.SetJSON(ctx, ArticleCacheKey(url), article, s.config.ArticleCacheTTL); err != nil {
		s.logger.Warn("article cache write failed", zap.String("url", url), zap.Error(err))
	}
}

// ArticleCacheKey строит ключ кеша статьи из blake2b-хеша URL
func ArticleCacheKey(url string) string {
	sum := blake2b.Sum256([]byte(url))
	return articleCacheKeyPrefix + hex.EncodeToString(sum[:])
}

func quizCacheKey(id uint, version string) string {
	return quizCacheKeyPrefix + strconv.FormatUint(uint64(id), 10) + ":" + version
}

func quizVersionKey(id uint) string {
	return quizCacheKeyPrefix + strconv.FormatUint(uint64(id), 10) + ":version"
}

// quizVersion возвращает текущую версию ответов викторины для ключа кеша.
// Если кеш недоступен, чтение и запись кеша пропускаются.
func (s *QuizService) quizVersion(ctx context.Context, id uint) (string, bool) {
	var version string
	err := s.cacheRepo.GetJSON(ctx, quizVersionKey(id), &version)
	switch {
	case err == nil:
		return version, true
	case errors.Is(err, apperrors.ErrNotFound):
		return "0", true
	default:
		s.logger.Warn("quiz cache version read failed", zap.Uint("quiz_id", id), zap.Error(err))
		return "", false
	}
}

func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	return string([]rune(title)[:MaxTitleLength])
}

// noopCache используется, когда Redis отключён: каждое чтение - промах
type noopCache struct{}

func (noopCache) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }
func (noopCache) GetJSON(context.Context, string, interface{}) error {
	return apperrors.ErrNotFound
}
func (noopCache) Delete(context.Context, string) error { return nil }
func (noopCache) Ping(context.Context) error           { return nil }
