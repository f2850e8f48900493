package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// StageDuration - длительность стадий конвейера генерации
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_pipeline_stage_duration_seconds",
			Help:    "Duration of quiz pipeline stages",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage", "outcome"},
	)

	// StageFailures - отказы стадий по виду ошибки
	StageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_pipeline_failures_total",
			Help: "Quiz pipeline failures by stage and error kind",
		},
		[]string{"stage", "kind"},
	)

	QuizzesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quizzes_generated_total",
			Help: "Quizzes generated and stored",
		},
	)

	// ConsistencyWarnings - вопросы, где ответа нет среди вариантов или варианты повторяются
	ConsistencyWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_consistency_warnings_total",
			Help: "Generated questions failing the answer/options consistency check",
		},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_cache_lookups_total",
			Help: "Cache lookups by cache name and result",
		},
		[]string{"cache", "result"},
	)
)

var registerOnce sync.Once

// Init регистрирует метрики в реестре по умолчанию. Повторный вызов безопасен.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			StageDuration,
			StageFailures,
			QuizzesGenerated,
			ConsistencyWarnings,
			CacheLookups,
		)
	})
}

// ObserveStage записывает длительность стадии; kind пустой для успешной стадии
func ObserveStage(stage string, duration time.Duration, kind string) {
	outcome := "ok"
	if kind != "" {
		outcome = "error"
		StageFailures.WithLabelValues(stage, kind).Inc()
	}
	StageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// ObserveCache учитывает попадание или промах кеша
func ObserveCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
