// Command quizgen генерирует викторину по статье Википедии в терминале
// и по желанию сохраняет её в базу.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/config"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/entity"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/domain/repository"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/llm"
	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
	pgRepo "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/repository/postgres"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/scraper"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/service"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/database"
	"github.com/saiteja7065/AI-Wiki-Quiz-Generator/pkg/logger"
)

func main() {
	var (
		url        = flag.String("url", "", "Wikipedia article URL (prompted when empty)")
		save       = flag.Bool("save", false, "save the quiz without asking")
		noSave     = flag.Bool("no-save", false, "never save the quiz")
		configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	)
	flag.Parse()

	if err := run(*url, *save, *noSave, *configPath, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(url string, save, noSave bool, configPath string, in io.Reader, out io.Writer) error {
	config.LoadDotEnv()
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zapLogger, err := logger.New(logger.Config{Level: "warn"})
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	if !cfg.LLM.HasAPIKey() {
		return fmt.Errorf("%w: set GEMINI_API_KEY or LLM_API_KEY", llm.ErrMissingAPIKey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return err
	}

	reader := bufio.NewReader(in)
	if url == "" {
		fmt.Fprint(out, "Enter Wikipedia URL: ")
		url, err = reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	url = strings.TrimSpace(url)

	newService := func(repo repository.QuizRepository) *service.QuizService {
		return service.NewQuizService(
			scraper.NewHTTPFetcher(scraper.FetcherConfig{
				Timeout:      cfg.Scraper.Timeout,
				UserAgent:    cfg.Scraper.UserAgent,
				MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
			}),
			scraper.NewExtractor(),
			service.NewGenerator(client, service.GeneratorConfig{
				MaxArticleChars: cfg.Scraper.MaxArticleChars,
				Timeout:         cfg.LLM.Timeout,
			}, zapLogger),
			repo,
			nil,
			service.QuizServiceConfig{QueryTimeout: cfg.Database.QueryTimeout},
			zapLogger,
		)
	}

	progress := func(tr service.Transition) {
		if tr.State != service.StateFailed {
			fmt.Fprintf(out, "  ... %s\n", tr.State)
		}
	}

	fmt.Fprintf(out, "Generating quiz for %s\n", url)
	draft, err := newService(nil).PreviewQuiz(ctx, url, progress)
	if err != nil {
		return fmt.Errorf("%s: %w", apperrors.KindName(err), err)
	}

	printQuiz(out, draft.Title, draft.Output)

	if noSave {
		return nil
	}
	if !save {
		fmt.Fprint(out, "\nSave this quiz to the database? (y/n): ")
		answer, _ := reader.ReadString('\n')
		if !isYes(answer) {
			fmt.Fprintln(out, "Quiz not saved.")
			return nil
		}
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		defer sqlDB.Close()
	}
	if cfg.Database.AutoMigrate {
		if err := database.MigrateDB(db, cfg.Database, zapLogger); err != nil {
			return err
		}
	}

	detail, err := newService(pgRepo.NewQuizRepo(db)).SaveDraft(ctx, draft)
	if err != nil {
		return err
	}
	zapLogger.Info("quiz saved from cli", zap.Uint("quiz_id", detail.ID))
	fmt.Fprintf(out, "Quiz saved with ID %d\n", detail.ID)
	return nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func printQuiz(out io.Writer, title string, quiz *entity.QuizOutput) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n\n", rule, title, rule)
	fmt.Fprintf(out, "Summary: %s\n\n", quiz.Summary)

	entities := []struct {
		label string
		names []string
	}{
		{"People", quiz.KeyEntities.People},
		{"Organizations", quiz.KeyEntities.Organizations},
		{"Locations", quiz.KeyEntities.Locations},
	}
	for _, e := range entities {
		if len(e.names) > 0 {
			fmt.Fprintf(out, "%s: %s\n", e.label, strings.Join(e.names, ", "))
		}
	}
	if len(quiz.Sections) > 0 {
		fmt.Fprintf(out, "Sections: %s\n", strings.Join(quiz.Sections, ", "))
	}

	for i, q := range quiz.Quiz {
		fmt.Fprintf(out, "\nQ%d [%s] %s\n", i+1, q.Difficulty, q.Question)
		for j, opt := range q.Options {
			marker := " "
			if opt == q.Answer {
				marker = "*"
			}
			fmt.Fprintf(out, "  %s %c) %s\n", marker, 'A'+j, opt)
		}
		fmt.Fprintf(out, "  Explanation: %s\n", q.Explanation)
	}

	if len(quiz.RelatedTopics) > 0 {
		fmt.Fprintf(out, "\nRelated topics: %s\n", strings.Join(quiz.RelatedTopics, ", "))
	}
}
