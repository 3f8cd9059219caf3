package cli

import (
	"context"
	"fmt"

	"agent-backoffice/internal/config"
	redisinfra "agent-backoffice/internal/infra/redis"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewInvalidateCmd drops cached assessment definitions from Redis so the next
// read reloads them from Postgres.
func NewInvalidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate-assessment <id>...",
		Short: "Drop cached assessment definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvalidate(cmd.Context(), *configPath, args)
		},
	}
}

func runInvalidate(ctx context.Context, configPath string, ids []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr not configured")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	cache := redisinfra.NewAssessmentRepository(client, nil, 0, logger)
	return invalidateAssessments(ctx, cache, ids, logger)
}

type assessmentCache interface {
	Invalidate(ctx context.Context, assessmentID string) error
}

func invalidateAssessments(ctx context.Context, cache assessmentCache, ids []string, logger *zap.Logger) error {
	for _, id := range ids {
		if err := cache.Invalidate(ctx, id); err != nil {
			return fmt.Errorf("invalidate %s: %w", id, err)
		}
		logger.Info("assessment cache dropped", zap.String("assessment_id", id))
	}
	return nil
}
