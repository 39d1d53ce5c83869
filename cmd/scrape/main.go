package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/adapters/repo"
	"crypto-sentiment-monitor/internal/adapters/source"
	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/config"
	"crypto-sentiment-monitor/internal/infra/db"
	applog "crypto-sentiment-monitor/internal/infra/log"
	"crypto-sentiment-monitor/internal/infra/metrics"
	"crypto-sentiment-monitor/internal/usecase/analyze"
	"crypto-sentiment-monitor/internal/usecase/collect"
)

// Разовый запуск пайплайна: собрать, обогатить, напечатать сводку.
// Возвращает ненулевой код, если проход не принёс ни одной записи.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scrape: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("scrape: не удалось подготовить схему")
	}

	adapters := buildAdapters(cfg, logger)
	if len(adapters) == 0 {
		logger.Fatal().Strs("sources", cfg.Scrape.Sources).Msg("scrape: нет ни одного известного источника")
	}

	collector := collect.NewService(adapters, repoAdapter, collect.NewNormalizer(cfg.Scrape.MinContentLen), logger)
	summary, err := collector.RunPass(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("scrape: проход сбора прерван")
	}
	for tag, report := range summary.PerSource {
		logger.Info().
			Str("source", string(tag)).
			Int("discovered", report.Discovered).
			Int("accepted", report.Accepted).
			Int("duplicates", report.Duplicates).
			Int("invalid", report.Invalid).
			Msg("scrape: итог по источнику")
	}

	symbols, err := analyze.SymbolTableFromJSON(cfg.Sentiment.SymbolTableJSON)
	if err != nil {
		logger.Fatal().Err(err).Msg("scrape: неверная таблица символов")
	}
	tagger := analyze.NewTagger(repoAdapter, symbols,
		cfg.Sentiment.PositiveThreshold, cfg.Sentiment.NegativeThreshold,
		cfg.Sentiment.BatchSize, logger)
	enriched, err := tagger.RunPass(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("scrape: проход обогащения прерван")
	}

	statsCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	stats, err := repoAdapter.Stats(statsCtx)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("scrape: не удалось получить статистику")
	} else {
		logger.Info().
			Int64("total", stats.Total).
			Int64("analyzed", stats.Analyzed).
			Int64("unanalyzed", stats.Unanalyzed).
			Msg("scrape: состояние хранилища")
	}

	logger.Info().
		Int("accepted", summary.TotalAccepted).
		Int("enriched", enriched).
		Int("sources_failed", len(summary.SourcesFailed)).
		Msg("scrape: пайплайн завершён")

	if !summary.Succeeded() {
		os.Exit(1)
	}
}

func buildAdapters(cfg config.AppConfig, logger zerolog.Logger) []domain.SourceAdapter {
	client := source.NewClient(cfg.Scrape.RequestTimeout, cfg.Scrape.RequestDelay)

	var adapters []domain.SourceAdapter
	for _, raw := range cfg.Scrape.Sources {
		tag, ok := domain.CanonicalSource(raw)
		if !ok {
			logger.Warn().Str("source", raw).Msg("scrape: неизвестный источник в конфиге, пропускаем")
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
