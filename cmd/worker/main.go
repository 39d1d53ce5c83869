package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/adapters/repo"
	"crypto-sentiment-monitor/internal/adapters/source"
	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/config"
	"crypto-sentiment-monitor/internal/infra/db"
	applog "crypto-sentiment-monitor/internal/infra/log"
	"crypto-sentiment-monitor/internal/infra/metrics"
	"crypto-sentiment-monitor/internal/infra/queue"
	"crypto-sentiment-monitor/internal/usecase/analyze"
	"crypto-sentiment-monitor/internal/usecase/collect"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось подготовить схему")
	}

	jobQueue := buildQueue(cfg, logger)

	symbols, err := analyze.SymbolTableFromJSON(cfg.Sentiment.SymbolTableJSON)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: неверная таблица символов")
	}

	worker := &jobWorker{
		log:   logger,
		queue: jobQueue,
		collector: collect.NewService(buildAdapters(cfg, logger), repoAdapter,
			collect.NewNormalizer(cfg.Scrape.MinContentLen), logger),
		tagger: analyze.NewTagger(repoAdapter, symbols,
			cfg.Sentiment.PositiveThreshold, cfg.Sentiment.NegativeThreshold,
			cfg.Sentiment.BatchSize, logger),
	}

	logger.Info().Msg("worker: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("worker: остановлен")
}

// buildQueue выбирает реализацию очереди: RabbitMQ при наличии адреса,
// иначе Redis.
func buildQueue(cfg config.AppConfig, logger zerolog.Logger) domain.JobQueue {
	if cfg.RabbitURL != "" {
		q, err := queue.NewRabbitJobQueue(cfg.RabbitURL, cfg.Queues.Jobs)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: не удалось инициализировать очередь RabbitMQ")
		}
		return q
	}
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("worker: не указан ни RABBITMQ_URL, ни REDIS_ADDR")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return queue.NewRedisJobQueue(client, cfg.Queues.Jobs)
}

func buildAdapters(cfg config.AppConfig, logger zerolog.Logger) []domain.SourceAdapter {
	client := source.NewClient(cfg.Scrape.RequestTimeout, cfg.Scrape.RequestDelay)

	var adapters []domain.SourceAdapter
	for _, raw := range cfg.Scrape.Sources {
		tag, ok := domain.CanonicalSource(raw)
		if !ok {
			logger.Warn().Str("source", raw).Msg("worker: неизвестный источник в конфиге, пропускаем")
			continue
		}
		switch tag {
		case domain.SourceReddit:
			adapters = append(adapters, source.NewReddit(client, logger, cfg.Scrape.PerSourceLimit))
		case domain.SourceCointelegraph:
			adapters = append(adapters, source.NewCointelegraph(client, logger, cfg.Scrape.PerSourceLimit))
		case domain.SourceCryptoNews:
			adapters = append(adapters, source.NewCryptoNews(client, logger, cfg.Scrape.PerSourceLimit))
		case domain.SourceNitter:
			adapters = append(adapters, source.NewNitter(client, logger, source.DefaultNitterMirrors, cfg.Scrape.PerSourceLimit))
		}
	}
	return adapters
}

type jobWorker struct {
	log       zerolog.Logger
	queue     domain.JobQueue
	collector *collect.Service
	tagger    *analyze.Tagger
}

func (w *jobWorker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("worker: получена задача без идентификатора, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("worker: не удалось подтвердить задачу без идентификатора")
			}
			continue
		}

		if err := w.handleJob(ctx, job, jobLog); err != nil {
			if errors.Is(err, context.Canceled) {
				if ackErr := ack(false); ackErr != nil {
					jobLog.Error().Err(ackErr).Msg("worker: не удалось вернуть задачу при остановке")
				}
				return
			}
			jobLog.Error().Err(err).Msg("worker: задача завершилась ошибкой, вернём в очередь")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("worker: не удалось вернуть задачу после ошибки")
			}
			time.Sleep(time.Second)
			continue
		}

		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("worker: не удалось подтвердить задачу")
		}
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job domain.Job, jobLog zerolog.Logger) error {
	switch job.Kind {
	case domain.JobCollect:
		summary, err := w.collector.RunPass(ctx)
		if err != nil {
			return err
		}
		jobLog.Info().
			Int("accepted", summary.TotalAccepted).
			Int("sources_failed", len(summary.SourcesFailed)).
			Msg("worker: проход сбора завершён")
		return nil
	case domain.JobAnalyze:
		processed, err := w.tagger.RunPass(ctx)
		if err != nil {
			return err
		}
		jobLog.Info().Int("processed", processed).Msg("worker: проход обогащения завершён")
		return nil
	default:
		// неизвестный тип не ретраим, иначе задача зациклится
		jobLog.Error().Msg("worker: неизвестный тип задачи, пропускаем")
		return nil
	}
}
