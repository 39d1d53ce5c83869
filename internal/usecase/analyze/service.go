package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonreiter/govader"
	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/metrics"
)

// Tagger обогащает сырые записи тональностью VADER и списком
// упомянутых криптовалют. Каждая запись обогащается ровно один раз:
// повторная попытка отклоняется хранилищем.
type Tagger struct {
	records  domain.RecordRepo
	symbols  *SymbolTable
	analyzer *govader.SentimentIntensityAnalyzer

	positiveThreshold float64
	negativeThreshold float64
	batchSize         int

	log zerolog.Logger
}

func NewTagger(records domain.RecordRepo, symbols *SymbolTable, positive, negative float64, batchSize int, logger zerolog.Logger) *Tagger {
	return &Tagger{
		records:           records,
		symbols:           symbols,
		analyzer:          govader.NewSentimentIntensityAnalyzer(),
		positiveThreshold: positive,
		negativeThreshold: negative,
		batchSize:         batchSize,
		log:               logger,
	}
}

// Score считает обогащение для текста без обращения к хранилищу.
// Метка детерминированно выводится из составного балла: не ниже
// положительного порога — positive, не выше отрицательного — negative,
// всё строго между порогами — neutral.
func (t *Tagger) Score(text string) domain.Enrichment {
	compound := t.analyzer.PolarityScores(text).Compound

	return domain.Enrichment{
		Score:     compound,
		Label:     t.labelFor(compound),
		Mentioned: t.symbols.Detect(text),
	}
}

func (t *Tagger) labelFor(score float64) domain.SentimentLabel {
	switch {
	case score >= t.positiveThreshold:
		return domain.SentimentPositive
	case score <= t.negativeThreshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// RunPass обогащает все необогащённые записи партиями и возвращает
// число обработанных. Уже обогащённые записи пропускаются: гонка
// двух воркеров разрешается в пользу первого.
func (t *Tagger) RunPass(ctx context.Context) (int, error) {
	var processed int
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		batch, err := t.records.FetchUnenriched(ctx, t.batchSize)
		if err != nil {
			return processed, fmt.Errorf("выборка необогащённых записей: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		batchStart := time.Now()
		for _, rec := range batch {
			enrichment := t.Score(rec.Content)

			err := t.records.UpdateEnrichment(ctx, rec.ID, enrichment)
			switch {
			case errors.Is(err, domain.ErrAlreadyEnriched):
				t.log.Debug().Int64("id", rec.ID).Msg("analyze: запись уже обогащена, пропускаем")
				continue
			case errors.Is(err, domain.ErrNotFound):
				t.log.Debug().Int64("id", rec.ID).Msg("analyze: запись исчезла, пропускаем")
				continue
			case err != nil:
				return processed, fmt.Errorf("сохранение обогащения id=%d: %w", rec.ID, err)
			}

			metrics.EnrichedTotal.WithLabelValues(string(enrichment.Label)).Inc()
			processed++
		}
		metrics.EnrichBatchSeconds.Observe(time.Since(batchStart).Seconds())

		if len(batch) < t.batchSize {
			break
		}
	}

	t.log.Info().Int("processed", processed).Msg("analyze: проход обогащения завершён")
	return processed, nil
}
