package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"crypto-sentiment-monitor/internal/adapters/repo"
	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/config"
	"crypto-sentiment-monitor/internal/infra/db"
	httpinfra "crypto-sentiment-monitor/internal/infra/http"
	applog "crypto-sentiment-monitor/internal/infra/log"
	"crypto-sentiment-monitor/internal/infra/metrics"
	"crypto-sentiment-monitor/internal/usecase/trends"
)

const (
	defaultWindowHours  = 24
	defaultCurrentHours = 6
	maxWindowHours      = 24 * 30
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	trendService := trends.NewService(repoAdapter, logger)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	r := server.Router

	r.Get("/api/v1/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := repoAdapter.Stats(req.Context())
		if err != nil {
			logger.Error().Err(err).Msg("api: статистика недоступна")
			writeError(w, http.StatusInternalServerError, "failed to load stats")
			return
		}
		writeJSON(w, map[string]any{
			"total":      stats.Total,
			"analyzed":   stats.Analyzed,
			"unanalyzed": stats.Unanalyzed,
			"by_source":  stats.BySource,
		})
	})

	r.Get("/api/v1/records", func(w http.ResponseWriter, req *http.Request) {
		hours, ok := parseHours(req, "hours", defaultWindowHours)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		var source domain.SourceTag
		if raw := req.URL.Query().Get("source"); raw != "" {
			tag, ok := domain.CanonicalSource(raw)
			if !ok {
				writeError(w, http.StatusBadRequest, "unknown source")
				return
			}
			source = tag
		}
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		records, err := repoAdapter.ListByTimeRange(req.Context(), since, source)
		if err != nil {
			logger.Error().Err(err).Msg("api: выборка записей не удалась")
			writeError(w, http.StatusInternalServerError, "failed to load records")
			return
		}
		out := make([]recordResponse, 0, len(records))
		for _, rec := range records {
			out = append(out, toRecordResponse(rec))
		}
		writeJSON(w, map[string]any{"records": out, "count": len(out)})
	})

	r.Get("/api/v1/trends", func(w http.ResponseWriter, req *http.Request) {
		hours, ok := parseHours(req, "hours", defaultWindowHours)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		window := time.Duration(hours) * time.Hour
		trending, err := trendService.TrendingCryptos(req.Context(), window)
		if err != nil {
			logger.Error().Err(err).Msg("api: рейтинг монет не построен")
			writeError(w, http.StatusInternalServerError, "failed to load trends")
			return
		}
		bySources, err := trendService.SentimentBySource(req.Context(), window)
		if err != nil {
			logger.Error().Err(err).Msg("api: срез по источникам не построен")
			writeError(w, http.StatusInternalServerError, "failed to load trends")
			return
		}
		writeJSON(w, map[string]any{
			"window_hours":        hours,
			"trending":            trending,
			"sentiment_by_source": bySources,
		})
	})

	r.Get("/api/v1/trends/shift", func(w http.ResponseWriter, req *http.Request) {
		currentHours, ok := parseHours(req, "current_hours", defaultCurrentHours)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid current_hours")
			return
		}
		compareHours, ok := parseHours(req, "compare_hours", defaultWindowHours)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid compare_hours")
			return
		}
		if currentHours >= compareHours {
			writeError(w, http.StatusBadRequest, "current_hours must be less than compare_hours")
			return
		}
		shift, err := trendService.DetectShift(req.Context(),
			time.Duration(currentHours)*time.Hour,
			time.Duration(compareHours)*time.Hour)
		if err != nil {
			logger.Error().Err(err).Msg("api: сдвиг настроения не посчитан")
			writeError(w, http.StatusInternalServerError, "failed to detect shift")
			return
		}
		writeJSON(w, shift)
	})

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// parseHours читает часовой параметр запроса в границах (0, maxWindowHours].
func parseHours(req *http.Request, name string, fallback int) (int, bool) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 || hours > maxWindowHours {
		return 0, false
	}
	return hours, true
}

type recordResponse struct {
	ID              int64     `json:"id"`
	Source          string    `json:"source"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	URL             string    `json:"url,omitempty"`
	EngagementScore *int      `json:"engagement_score,omitempty"`
	SentimentScore  *float64  `json:"sentiment_score,omitempty"`
	SentimentLabel  *string   `json:"sentiment_label,omitempty"`
	CryptoMentioned []string  `json:"crypto_mentioned"`
	ScrapedAt       time.Time `json:"scraped_at"`
}

func toRecordResponse(rec domain.Record) recordResponse {
	resp := recordResponse{
		ID:              rec.ID,
		Source:          string(rec.Source),
		Content:         rec.Content,
		Timestamp:       rec.Timestamp,
		URL:             rec.URL,
		EngagementScore: rec.EngagementScore,
		SentimentScore:  rec.SentimentScore,
		CryptoMentioned: rec.CryptoMentioned,
		ScrapedAt:       rec.ScrapedAt,
	}
	if rec.SentimentLabel != nil {
		label := string(*rec.SentimentLabel)
		resp.SentimentLabel = &label
	}
	if resp.CryptoMentioned == nil {
		resp.CryptoMentioned = []string{}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
