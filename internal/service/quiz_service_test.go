package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/repository"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

const turingURL = "https://en.wikipedia.org/wiki/Alan_Turing"

// ============================================================================
// Моки для QuizService
// ============================================================================

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(rawHTML []byte) (string, string, error) {
	args := m.Called(rawHTML)
	return args.String(0), args.String(1), args.Error(2)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, text, title string) (Candidate, error) {
	args := m.Called(ctx, text, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Candidate), args.Error(1)
}

type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) Create(ctx context.Context, quiz *entity.Quiz) error {
	return m.Called(ctx, quiz).Error(0)
}

func (m *MockQuizRepository) GetByID(ctx context.Context, id uint) (*entity.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Quiz), args.Error(1)
}

func (m *MockQuizRepository) ListSummaries(ctx context.Context) ([]entity.QuizSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.QuizSummary), args.Error(1)
}

func (m *MockQuizRepository) SetUserAnswers(ctx context.Context, id uint, answers entity.AnswerMap) error {
	return m.Called(ctx, id, answers).Error(0)
}

func (m *MockQuizRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQuizRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// memoryQuizRepo - хранилище в памяти для проверки полного цикла записи и чтения
type memoryQuizRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]entity.Quiz
}

func newMemoryQuizRepo() *memoryQuizRepo {
	return &memoryQuizRepo{rows: make(map[uint]entity.Quiz)}
}

func (r *memoryQuizRepo) Create(_ context.Context, quiz *entity.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	quiz.ID = r.nextID
	r.rows[quiz.ID] = *quiz
	return nil
}

func (r *memoryQuizRepo) GetByID(_ context.Context, id uint) (*entity.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &row, nil
}

func (r *memoryQuizRepo) ListSummaries(context.Context) ([]entity.QuizSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.QuizSummary, 0, len(r.rows))
	for id := r.nextID; id > 0; id-- {
		if row, ok := r.rows[id]; ok {
			out = append(out, entity.QuizSummary{ID: row.ID, URL: row.URL, Title: row.Title, DateGenerated: row.DateGenerated})
		}
	}
	return out, nil
}

func (r *memoryQuizRepo) SetUserAnswers(_ context.Context, id uint, answers entity.AnswerMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	row.UserAnswers = answers
	r.rows[id] = row
	return nil
}

func (r *memoryQuizRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.rows)), nil
}

func (r *memoryQuizRepo) Ping(context.Context) error { return nil }

// memoryCache повторяет поведение Redis-кеша: значения хранятся как JSON
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

type serviceDeps struct {
	fetcher   *MockFetcher
	extractor *MockExtractor
	generator *MockGenerator
}

func newTestService(repo repository.QuizRepository, cache repository.CacheRepository) (*QuizService, serviceDeps) {
	deps := serviceDeps{
		fetcher:   new(MockFetcher),
		extractor: new(MockExtractor),
		generator: new(MockGenerator),
	}
	svc := NewQuizService(deps.fetcher, deps.extractor, deps.generator, repo, cache, QuizServiceConfig{}, zap.NewNop())
	return svc, deps
}

const articleText = "Alan Mathison Turing was an English mathematician, computer scientist, logician, cryptanalyst, philosopher and theoretical biologist."

func expectHappyPath(t *testing.T, deps serviceDeps, questions int) {
	t.Helper()
	html := []byte("<html>turing</html>")
	deps.fetcher.On("Fetch", mock.Anything, turingURL).Return(html, nil).Once()
	deps.extractor.On("Extract", html).Return(articleText, "Alan Turing", nil).Once()
	deps.generator.On("Generate", mock.Anything, articleText, "Alan Turing").
		Return(candidateFrom(t, quizJSON(questions)), nil).Once()
}

// ============================================================================
// GenerateQuiz
// ============================================================================

func TestGenerateQuiz_RoundTrip(t *testing.T) {
	// Arrange
	repo := newMemoryQuizRepo()
	svc, deps := newTestService(repo, nil)
	expectHappyPath(t, deps, 6)

	// Act
	created, err := svc.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	loaded, err := svc.GetQuiz(context.Background(), created.ID)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, uint(1), created.ID)
	assert.Equal(t, created.QuizOutput, loaded.QuizOutput)
	assert.Equal(t, turingURL, loaded.URL)
	assert.Equal(t, "Alan Turing", loaded.Title)
	assert.Nil(t, loaded.UserAnswers)

	row, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, row.ScrapedContent)
	assert.Equal(t, articleText, *row.ScrapedContent)

	deps.fetcher.AssertExpectations(t)
	deps.extractor.AssertExpectations(t)
	deps.generator.AssertExpectations(t)
}

func TestGenerateQuiz_InvalidURLMakesNoFetch(t *testing.T) {
	repo := new(MockQuizRepository)
	svc, deps := newTestService(repo, nil)

	var got []Transition
	_, err := svc.GenerateQuiz(context.Background(), "https://example.com/wiki/Alan_Turing", func(tr Transition) {
		got = append(got, tr)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidURL))
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageFetch, stageErr.Stage)

	deps.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	require.Len(t, got, 2)
	assert.Equal(t, StateStart, got[0].State)
	assert.Equal(t, StateFailed, got[1].State)
}

func TestGenerateQuiz_StageFailures(t *testing.T) {
	html := []byte("<html></html>")

	tests := []struct {
		name      string
		setup     func(t *testing.T, deps serviceDeps)
		wantStage Stage
		wantKind  error
	}{
		{
			name: "fetch",
			setup: func(t *testing.T, deps serviceDeps) {
				deps.fetcher.On("Fetch", mock.Anything, turingURL).
					Return(nil, fmt.Errorf("%w: status 404", apperrors.ErrFetch))
			},
			wantStage: StageFetch,
			wantKind:  apperrors.ErrFetch,
		},
		{
			name: "extract",
			setup: func(t *testing.T, deps serviceDeps) {
				deps.fetcher.On("Fetch", mock.Anything, turingURL).Return(html, nil)
				deps.extractor.On("Extract", html).
					Return("", "", fmt.Errorf("%w: text too short", apperrors.ErrExtraction))
			},
			wantStage: StageExtract,
			wantKind:  apperrors.ErrExtraction,
		},
		{
			name: "generate",
			setup: func(t *testing.T, deps serviceDeps) {
				deps.fetcher.On("Fetch", mock.Anything, turingURL).Return(html, nil)
				deps.extractor.On("Extract", html).Return(articleText, "Alan Turing", nil)
				deps.generator.On("Generate", mock.Anything, articleText, "Alan Turing").
					Return(nil, fmt.Errorf("%w: quota", apperrors.ErrGeneration))
			},
			wantStage: StageGenerate,
			wantKind:  apperrors.ErrGeneration,
		},
		{
			name: "validate",
			setup: func(t *testing.T, deps serviceDeps) {
				deps.fetcher.On("Fetch", mock.Anything, turingURL).Return(html, nil)
				deps.extractor.On("Extract", html).Return(articleText, "Alan Turing", nil)
				deps.generator.On("Generate", mock.Anything, articleText, "Alan Turing").
					Return(candidateFrom(t, quizJSON(11)), nil)
			},
			wantStage: StageValidate,
			wantKind:  apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockQuizRepository)
			svc, deps := newTestService(repo, nil)
			tt.setup(t, deps)

			_, err := svc.GenerateQuiz(context.Background(), turingURL)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			assert.True(t, errors.Is(err, tt.wantKind))
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestGenerateQuiz_StoreFailure(t *testing.T) {
	repo := new(MockQuizRepository)
	svc, deps := newTestService(repo, nil)
	expectHappyPath(t, deps, 5)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Quiz")).
		Return(fmt.Errorf("%w: connection refused", apperrors.ErrPersistence))

	_, err := svc.GenerateQuiz(context.Background(), turingURL)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageStore, stageErr.Stage)
	assert.True(t, errors.Is(err, apperrors.ErrPersistence))
}

func TestGenerateQuiz_ObserversSeeEveryTransition(t *testing.T) {
	svc, deps := newTestService(newMemoryQuizRepo(), nil)
	expectHappyPath(t, deps, 5)

	var states []State
	_, err := svc.GenerateQuiz(context.Background(), turingURL, func(tr Transition) {
		states = append(states, tr.State)
	})

	require.NoError(t, err)
	assert.Equal(t, []State{
		StateStart, StateFetched, StateExtracted, StateGenerated, StateValidated, StateStored, StateDone,
	}, states)
}

func TestGenerateQuiz_TruncatesLongTitle(t *testing.T) {
	repo := newMemoryQuizRepo()
	svc, deps := newTestService(repo, nil)
	longTitle := strings.Repeat("я", MaxTitleLength+20)

	html := []byte("<html></html>")
	deps.fetcher.On("Fetch", mock.Anything, turingURL).Return(html, nil)
	deps.extractor.On("Extract", html).Return(articleText, longTitle, nil)
	deps.generator.On("Generate", mock.Anything, articleText, longTitle).Return(candidateFrom(t, quizJSON(5)), nil)

	detail, err := svc.GenerateQuiz(context.Background(), turingURL)

	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("я", MaxTitleLength), detail.Title)
}

func TestGenerateQuiz_ArticleCache(t *testing.T) {
	cache := newMemoryCache()
	svc, deps := newTestService(newMemoryQuizRepo(), cache)
	expectHappyPath(t, deps, 5)
	deps.generator.On("Generate", mock.Anything, articleText, "Alan Turing").
		Return(candidateFrom(t, quizJSON(5)), nil).Once()

	_, err := svc.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	assert.True(t, cache.has(ArticleCacheKey(turingURL)))

	second, err := svc.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)

	assert.Equal(t, uint(2), second.ID)
	deps.fetcher.AssertNumberOfCalls(t, "Fetch", 1)
	deps.extractor.AssertNumberOfCalls(t, "Extract", 1)
	deps.generator.AssertNumberOfCalls(t, "Generate", 2)
}

func TestPreviewQuiz_DoesNotStore(t *testing.T) {
	repo := new(MockQuizRepository)
	svc, deps := newTestService(repo, nil)
	expectHappyPath(t, deps, 5)

	var states []State
	draft, err := svc.PreviewQuiz(context.Background(), turingURL, func(tr Transition) {
		states = append(states, tr.State)
	})

	require.NoError(t, err)
	assert.Equal(t, "Alan Turing", draft.Title)
	assert.Equal(t, articleText, draft.Text)
	assert.Len(t, draft.Output.Quiz, 5)
	assert.Equal(t, []State{StateStart, StateFetched, StateExtracted, StateGenerated, StateValidated}, states)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSaveDraft(t *testing.T) {
	repo := newMemoryQuizRepo()
	svc, deps := newTestService(repo, nil)
	expectHappyPath(t, deps, 7)

	draft, err := svc.PreviewQuiz(context.Background(), turingURL)
	require.NoError(t, err)

	detail, err := svc.SaveDraft(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, uint(1), detail.ID)

	loaded, err := svc.GetQuiz(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Quiz, 7)

	_, err = svc.SaveDraft(context.Background(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrPersistence))
}

// ============================================================================
// Чтение и ответы
// ============================================================================

func TestGetQuiz_NotFound(t *testing.T) {
	repo := new(MockQuizRepository)
	svc, _ := newTestService(repo, nil)
	repo.On("GetByID", mock.Anything, uint(99999)).Return(nil, apperrors.ErrNotFound)

	_, err := svc.GetQuiz(context.Background(), 99999)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestGetQuiz_CorruptPayload(t *testing.T) {
	repo := new(MockQuizRepository)
	svc, _ := newTestService(repo, nil)
	repo.On("GetByID", mock.Anything, uint(3)).Return(&entity.Quiz{ID: 3, FullQuizData: "{not json"}, nil)

	_, err := svc.GetQuiz(context.Background(), 3)

	assert.True(t, errors.Is(err, apperrors.ErrCorruptRecord))
}

func TestGetQuiz_UsesCache(t *testing.T) {
	cache := newMemoryCache()
	repo := new(MockQuizRepository)
	svc, _ := newTestService(repo, cache)

	payload := compactJSON(t, quizJSON(5))
	repo.On("GetByID", mock.Anything, uint(7)).
		Return(&entity.Quiz{ID: 7, URL: turingURL, Title: "Alan Turing", FullQuizData: payload}, nil).Once()

	first, err := svc.GetQuiz(context.Background(), 7)
	require.NoError(t, err)
	second, err := svc.GetQuiz(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, first.QuizOutput, second.QuizOutput)
	repo.AssertNumberOfCalls(t, "GetByID", 1)
}

func TestSubmitAnswers_UnknownQuiz(t *testing.T) {
	repo := newMemoryQuizRepo()
	svc, _ := newTestService(repo, nil)

	err := svc.SubmitAnswers(context.Background(), 99999, entity.AnswerMap{"0": "A0"})

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	count, _ := repo.Count(context.Background())
	assert.Zero(t, count)
}

func TestSubmitAnswers_OverwritesAndInvalidatesCache(t *testing.T) {
	cache := newMemoryCache()
	repo := newMemoryQuizRepo()
	svc, deps := newTestService(repo, cache)
	expectHappyPath(t, deps, 5)

	created, err := svc.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	_, err = svc.GetQuiz(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, cache.has(quizCacheKey(created.ID, "0")))

	require.NoError(t, svc.SubmitAnswers(context.Background(), created.ID, entity.AnswerMap{"0": "A0", "1": "B1"}))
	assert.True(t, cache.has(quizVersionKey(created.ID)))
	require.NoError(t, svc.SubmitAnswers(context.Background(), created.ID, entity.AnswerMap{"2": "A2"}))

	detail, err := svc.GetQuiz(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AnswerMap{"2": "A2"}, detail.UserAnswers)

	correct, total, ok := detail.Score()
	assert.True(t, ok)
	assert.Equal(t, 1, correct)
	assert.Equal(t, 5, total)
}

func TestSubmitAnswers_EmptyMapSurvivesCache(t *testing.T) {
	cache := newMemoryCache()
	svc, deps := newTestService(newMemoryQuizRepo(), cache)
	expectHappyPath(t, deps, 5)

	created, err := svc.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)
	require.NoError(t, svc.SubmitAnswers(context.Background(), created.ID, entity.AnswerMap{}))

	for i := 0; i < 2; i++ {
		got, err := svc.GetQuiz(context.Background(), created.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.UserAnswers)
		assert.Empty(t, got.UserAnswers)
	}
}

// submitDuringReadRepo отправляет ответы между чтением строки и возвратом результата
type submitDuringReadRepo struct {
	*memoryQuizRepo
	onRead func()
}

func (r *submitDuringReadRepo) GetByID(ctx context.Context, id uint) (*entity.Quiz, error) {
	row, err := r.memoryQuizRepo.GetByID(ctx, id)
	if r.onRead != nil {
		hook := r.onRead
		r.onRead = nil
		hook()
	}
	return row, err
}

func TestGetQuiz_StaleReadDoesNotOutliveSubmission(t *testing.T) {
	cache := newMemoryCache()
	repo := &submitDuringReadRepo{memoryQuizRepo: newMemoryQuizRepo()}
	svc, deps := newTestService(repo, cache)
	expectHappyPath(t, deps, 5)

	created, err := svc.GenerateQuiz(context.Background(), turingURL)
	require.NoError(t, err)

	repo.onRead = func() {
		require.NoError(t, svc.SubmitAnswers(context.Background(), created.ID, entity.AnswerMap{"0": "A0"}))
	}
	stale, err := svc.GetQuiz(context.Background(), created.ID)
	require.NoError(t, err)
	require.Nil(t, stale.UserAnswers, "чтение началось до отправки ответов")

	fresh, err := svc.GetQuiz(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AnswerMap{"0": "A0"}, fresh.UserAnswers)
}

func TestGetQuiz_CorruptAnswersStillReadable(t *testing.T) {
	repo := new(MockQuizRepository)
	svc, _ := newTestService(repo, nil)
	repo.On("GetByID", mock.Anything, uint(9)).
		Return(&entity.Quiz{ID: 9, URL: turingURL, Title: "Alan Turing", FullQuizData: compactJSON(t, quizJSON(5)), AnswersCorrupt: true}, nil)

	detail, err := svc.GetQuiz(context.Background(), 9)

	require.NoError(t, err)
	assert.Nil(t, detail.UserAnswers)
	assert.Len(t, detail.Quiz, 5)
	_, _, ok := detail.Score()
	assert.False(t, ok)
}

func TestListHistoryAndStats(t *testing.T) {
	repo := new(MockQuizRepository)
	svc, _ := newTestService(repo, nil)
	summaries := []entity.QuizSummary{{ID: 2, Title: "B"}, {ID: 1, Title: "A"}}
	repo.On("ListSummaries", mock.Anything).Return(summaries, nil)
	repo.On("Count", mock.Anything).Return(int64(2), nil)

	history, err := svc.ListHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summaries, history)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalQuizzes)
	assert.False(t, stats.Timestamp.IsZero())
}

func TestArticleCacheKey(t *testing.T) {
	key := ArticleCacheKey(turingURL)
	assert.True(t, strings.HasPrefix(key, "article:"))
	assert.Len(t, key, len("article:")+64)
	assert.Equal(t, key, ArticleCacheKey(turingURL))
	assert.NotEqual(t, key, ArticleCacheKey(turingURL+"_"))
}

func compactJSON(t *testing.T, raw string) string {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
