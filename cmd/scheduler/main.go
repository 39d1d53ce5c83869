package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/cache"
	"crypto-sentiment-monitor/internal/infra/config"
	applog "crypto-sentiment-monitor/internal/infra/log"
	"crypto-sentiment-monitor/internal/infra/queue"
)

// Планировщик ставит задачи сбора и обогащения в очередь по интервалу.
// Блокировка в Redis гарантирует один запуск на интервал при нескольких
// репликах.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("scheduler: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	locks := cache.NewRedis(redisClient)

	var jobQueue domain.JobQueue
	if cfg.RabbitURL != "" {
		q, err := queue.NewRabbitJobQueue(cfg.RabbitURL, cfg.Queues.Jobs)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать очередь RabbitMQ")
		}
		defer q.Close()
		jobQueue = q
	} else {
		jobQueue = queue.NewRedisJobQueue(redisClient, cfg.Queues.Jobs)
	}

	interval := cfg.Schedule.CollectInterval
	logger.Info().Dur("interval", interval).Msg("scheduler: запуск")

	enqueuePass(ctx, locks, jobQueue, interval, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановлен")
			return
		case <-ticker.C:
			enqueuePass(ctx, locks, jobQueue, interval, logger)
		}
	}
}

// enqueuePass ставит пару задач collect+analyze под блокировкой.
// TTL блокировки чуть короче интервала, чтобы пропущенный из-за
// рестарта тик не терялся навсегда.
func enqueuePass(ctx context.Context, locks *cache.RedisCache, jobQueue domain.JobQueue, interval time.Duration, logger zerolog.Logger) {
	ttl := interval - interval/10
	err := locks.Once("scheduler:collect_lock", ttl, func() error {
		now := time.Now().UTC()
		for _, kind := range []domain.JobKind{domain.JobCollect, domain.JobAnalyze} {
			job := domain.Job{
				ID:          uuid.NewString(),
				Kind:        kind,
				RequestedAt: now,
			}
			if err := jobQueue.Enqueue(ctx, job); err != nil {
				return err
			}
			logger.Info().Str("job_id", job.ID).Str("kind", string(kind)).Msg("scheduler: задача поставлена")
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: не удалось поставить задачи")
	}
}
