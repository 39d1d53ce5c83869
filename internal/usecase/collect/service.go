package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/metrics"
)

// Service — оркестратор прохода сбора: запускает адаптеры, нормализует,
// дедуплицирует и сохраняет принятые записи.
type Service struct {
	adapters   []domain.SourceAdapter
	records    domain.RecordRepo
	normalizer *Normalizer
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт оркестратор.
func NewService(adapters []domain.SourceAdapter, records domain.RecordRepo, normalizer *Normalizer, logger zerolog.Logger) *Service {
	return &Service{
		adapters:   adapters,
		records:    records,
		normalizer: normalizer,
		log:        logger,
		now:        time.Now,
	}
}

type fetchResult struct {
	source domain.SourceTag
	items  []domain.RawItem
	err    error
}

// RunPass выполняет один проход сбора по всем источникам.
// Адаптеры опрашиваются параллельно: паузы вежливости у каждого свои,
// координация между хостами не нужна. Сбой одного источника не мешает
// остальным; фатальна только недоступность хранилища.
func (s *Service) RunPass(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		StartedAt: s.now().UTC(),
		PerSource: make(map[domain.SourceTag]domain.SourceReport, len(s.adapters)),
	}
	passStart := time.Now()

	results := make([]fetchResult, len(s.adapters))
	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(i int, adapter domain.SourceAdapter) {
			defer wg.Done()
			items, err := adapter.FetchAndParse(ctx)
			results[i] = fetchResult{source: adapter.Source(), items: items, err: err}
		}(i, adapter)
	}
	wg.Wait()

	dedup := NewDeduplicator(s.records)

	for _, res := range results {
		// кооперативная точка отмены между источниками;
		// уже сохранённые записи остаются валидными
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.now().UTC()
			return summary, err
		}

		report, err := s.processSource(ctx, dedup, res)
		summary.PerSource[res.source] = report
		summary.TotalAccepted += report.Accepted
		if res.err != nil {
			summary.SourcesFailed = append(summary.SourcesFailed, res.source)
		}
		if err != nil {
			summary.FinishedAt = s.now().UTC()
			return summary, fmt.Errorf("хранилище недоступно: %w", err)
		}
	}

	summary.FinishedAt = s.now().UTC()
	metrics.CollectionPassSeconds.Observe(time.Since(passStart).Seconds())

	if !summary.Succeeded() {
		s.log.Warn().Int("sources", len(s.adapters)).Msg("collect: проход не принёс ни одной записи")
	}
	return summary, nil
}

func (s *Service) processSource(ctx context.Context, dedup *Deduplicator, res fetchResult) (domain.SourceReport, error) {
	var report domain.SourceReport

	if res.err != nil {
		metrics.ScrapeSourceFailures.WithLabelValues(string(res.source)).Inc()
		s.log.Warn().Err(res.err).Str("source", string(res.source)).Msg("collect: источник недоступен")
		return report, nil
	}

	for _, item := range res.items {
		report.Discovered++
		collectedAt := s.now().UTC()

		rec, ok := s.normalizer.Normalize(item, collectedAt)
		if !ok {
			report.Invalid++
			metrics.ScrapeItemsTotal.WithLabelValues(string(res.source), "invalid").Inc()
			continue
		}

		accepted, err := dedup.Accept(ctx, rec)
		if err != nil {
			return report, err
		}
		if !accepted {
			report.Duplicates++
			metrics.ScrapeItemsTotal.WithLabelValues(string(res.source), "duplicate").Inc()
			continue
		}

		if _, err := s.records.Insert(ctx, rec); err != nil {
			// хранилище — последняя инстанция: гонка двух проходов
			// проявляется здесь как дубликат, а не как сбой
			if errors.Is(err, domain.ErrDuplicate) {
				report.Duplicates++
				metrics.ScrapeItemsTotal.WithLabelValues(string(res.source), "duplicate").Inc()
				continue
			}
			return report, err
		}
		report.Accepted++
		metrics.ScrapeItemsTotal.WithLabelValues(string(res.source), "accepted").Inc()
	}

	s.log.Info().
		Str("source", string(res.source)).
		Int("discovered", report.Discovered).
		Int("accepted", report.Accepted).
		Int("duplicates", report.Duplicates).
		Int("invalid", report.Invalid).
		Msg("collect: источник обработан")
	return report, nil
}
