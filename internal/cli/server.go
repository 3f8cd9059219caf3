package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-backoffice/internal/app"
	"agent-backoffice/internal/config"
	"agent-backoffice/internal/domain"
	"agent-backoffice/internal/infra/memory"
	pginfra "agent-backoffice/internal/infra/postgres"
	redisinfra "agent-backoffice/internal/infra/redis"
	transport "agent-backoffice/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the back-office server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch-config", true, "reload pipeline settings when the config file changes")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.AssessmentLoader = memory.NewStaticAssessmentLoader(sampleAssessments())
	var leads app.LeadRepository = memory.NewLeadRepository(sampleLeads(time.Now()))
	var results app.ResultRecorder = memory.NewResultLog()
	if pool != nil {
		loader = pginfra.NewAssessmentLoader(pool)
		leads = pginfra.NewLeadRepository(pool)
		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		results = pginfra.NewResultRecorder(db)
	}

	assessmentTTL := config.TTLDuration(cfg.Assessment.TTL, 10*time.Minute)
	var assessments app.AssessmentRepository
	if redisClient != nil {
		assessments = redisinfra.NewAssessmentRepository(redisClient, loader, assessmentTTL, logger)
	} else {
		assessments = memory.NewAssessmentRepository(loader, assessmentTTL)
	}

	var attempts app.AttemptStore
	if redisClient != nil {
		attemptTTL := config.TTLDuration(cfg.Assessment.AttemptTTL, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
		attempts = redisinfra.NewAttemptStore(redisClient, attemptTTL)
	} else {
		attempts = memory.NewAttemptStore()
	}

	assessmentService := app.NewAssessmentService(assessments, attempts, results, app.WithLogger(logger))
	pipelineService := app.NewPipelineService(leads, pipelineModel(cfg.Pipeline), logger)

	windowDays, staleDays := pipelineDefaults(cfg.Pipeline)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/assessment", transport.NewAssessmentHandler(assessmentService, logger).ServeWS)
	pipelineHandler := transport.NewPipelineHandler(pipelineService, windowDays, staleDays, logger)
	pipelineHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting back-office server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if watch {
		g.Go(func() error {
			return config.Watch(gctx, configPath, logger, func(next config.Config) {
				applyPipelineConfig(pipelineService, pipelineHandler, next.Pipeline)
			})
		})
	}

	return g.Wait()
}

// applyPipelineConfig pushes a reloaded pipeline section into the running
// service and handler.
func applyPipelineConfig(service *app.PipelineService, handler *transport.PipelineHandler, cfg config.Pipeline) {
	service.SetModel(pipelineModel(cfg))
	handler.SetDefaults(pipelineDefaults(cfg))
}

// pipelineModel overlays configured values on the built-in defaults.
func pipelineModel(cfg config.Pipeline) app.StaticPipelineModel {
	model := app.DefaultPipelineModel()
	if cfg.AverageDealValue > 0 {
		model.DealValue = cfg.AverageDealValue
	}
	for stage, rate := range cfg.ConversionRates {
		model.Rates[domain.LeadStatus(stage)] = rate
	}
	return model
}

// pipelineDefaults resolves the dashboard defaults. Unset values fall back to
// the built-ins; an explicit windowDays of 0 keeps the window disabled.
func pipelineDefaults(cfg config.Pipeline) (windowDays, staleDays int) {
	windowDays, staleDays = app.DefaultWindowDays, app.DefaultStaleDays
	if cfg.WindowDays != nil {
		windowDays = *cfg.WindowDays
	}
	if cfg.StaleDays != nil {
		staleDays = *cfg.StaleDays
	}
	return windowDays, staleDays
}

// sampleAssessments provides demo content when no Postgres is configured.
func sampleAssessments() map[string]domain.Assessment {
	return map[string]domain.Assessment{
		"term-life-basics": {
			ID:                 "term-life-basics",
			Title:              "Term Life Fundamentals",
			ShuffleQuestions:   true,
			PassingScore:       75,
			MaxAttempts:        3,
			TimeLimit:          20,
			ShowCorrectAnswers: true,
			AutoFailQuestions:  []string{"suitability"},
			Questions: []domain.Question{
				{
					ID:   "term-definition",
					Type: domain.SingleChoice,
					Text: "What does a level term policy guarantee?",
					Options: []domain.Option{
						{ID: "a", Text: "A death benefit for a fixed period", IsCorrect: true},
						{ID: "b", Text: "Cash value growth"},
						{ID: "c", Text: "Coverage for life"},
					},
					Category:          "products",
					IncorrectFeedback: "Term coverage pays a death benefit only during the term.",
				},
				{
					ID:   "riders",
					Type: domain.SelectAll,
					Text: "Which of these are common term life riders?",
					Options: []domain.Option{
						{ID: "a", Text: "Waiver of premium", IsCorrect: true},
						{ID: "b", Text: "Collision coverage"},
						{ID: "c", Text: "Accelerated death benefit", IsCorrect: true},
					},
					Category: "products",
				},
				{
					ID:       "suitability",
					Type:     domain.Scenario,
					Text:     "What should you do first?",
					Scenario: "A client with two young children asks for the cheapest policy without discussing income or debts.",
					Options: []domain.Option{
						{ID: "a", Text: "Sell the lowest premium policy immediately"},
						{ID: "b", Text: "Complete a needs analysis before recommending coverage", IsCorrect: true},
					},
					Category:            "compliance",
					DifficultyLevel:     "intermediate",
					AutoFailOnIncorrect: true,
					IncorrectFeedback:   "Suitability must be established before any recommendation.",
				},
				{
					ID:   "free-look",
					Type: domain.SingleChoice,
					Text: "What is the free-look period?",
					Options: []domain.Option{
						{ID: "a", Text: "A window to cancel a new policy for a full refund", IsCorrect: true},
						{ID: "b", Text: "The grace period for late premiums"},
					},
					Category: "compliance",
				},
			},
		},
	}
}

// sampleLeads seeds the demo pipeline relative to now.
func sampleLeads(now time.Time) []domain.Lead {
	daysAgo := func(d int) *time.Time {
		t := now.AddDate(0, 0, -d)
		return &t
	}
	return []domain.Lead{
		{ID: "lead-1", Name: "Dana Whitfield", Email: "dana@example.com", Status: domain.LeadNew, CreatedDate: daysAgo(1), Product: "Term Life", AgentID: "agent-ana"},
		{ID: "lead-2", Name: "Marcus Hale", Email: "marcus@example.com", Status: domain.LeadContacted, CreatedDate: daysAgo(6), LastContactDate: daysAgo(5), Product: "Whole Life", AgentID: "agent-ben"},
		{ID: "lead-3", Name: "Priya Nair", Email: "priya@example.com", Status: domain.LeadQualified, CreatedDate: daysAgo(12), LastContactDate: daysAgo(2), Product: "Final Expense", AgentID: "agent-ana"},
		{ID: "lead-4", Name: "Tom Becker", Email: "tom@example.com", Status: domain.LeadProposal, CreatedDate: daysAgo(20), LastContactDate: daysAgo(11), Product: "Term Life", AgentID: "agent-ben"},
		{ID: "lead-5", Name: "Lena Ortiz", Email: "lena@example.com", Status: domain.LeadClosed, CreatedDate: daysAgo(25), LastContactDate: daysAgo(3), Product: "IUL", AgentID: "agent-ana"},
		{ID: "lead-6", Name: "Sam Okafor", Email: "sam@example.com", Status: domain.LeadLost, CreatedDate: daysAgo(18), LastContactDate: daysAgo(15), AgentID: "agent-ben"},
	}
}
