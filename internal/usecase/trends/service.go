package trends

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
)

// topTrends — сколько монет возвращается в рейтинге упоминаний.
const topTrends = 10

// Порог направления сдвига и порог значимости.
const (
	shiftDirectionThreshold   = 0.05
	shiftSignificantThreshold = 0.2
)

type ShiftDirection string

const (
	ShiftPositive ShiftDirection = "positive"
	ShiftNegative ShiftDirection = "negative"
	ShiftStable   ShiftDirection = "stable"
)

// CryptoTrend — агрегат по одной монете за окно наблюдения.
type CryptoTrend struct {
	Symbol        string  `json:"crypto"`
	Mentions      int     `json:"mentions"`
	AvgSentiment  float64 `json:"avg_sentiment"`
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
	NeutralCount  int     `json:"neutral_count"`
}

// SentimentShift — сравнение среднего настроения свежего окна с предыдущим.
type SentimentShift struct {
	CurrentSentiment  float64        `json:"current_sentiment"`
	PreviousSentiment float64        `json:"previous_sentiment"`
	Change            float64        `json:"change"`
	Direction         ShiftDirection `json:"shift_direction"`
	Significant       bool           `json:"is_significant"`
}

// Service строит отчёты по обогащённым записям.
type Service struct {
	records domain.RecordRepo
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(records domain.RecordRepo, logger zerolog.Logger) *Service {
	return &Service{records: records, log: logger, now: time.Now}
}

// TrendingCryptos возвращает до десяти самых упоминаемых монет за окно,
// по убыванию числа упоминаний. Запись с несколькими монетами
// учитывается в каждой из них.
func (s *Service) TrendingCryptos(ctx context.Context, window time.Duration) ([]CryptoTrend, error) {
	records, err := s.records.ListByTimeRange(ctx, s.now().UTC().Add(-window), "")
	if err != nil {
		return nil, fmt.Errorf("выборка записей за окно: %w", err)
	}

	type acc struct {
		mentions  int
		sentiment float64
		positive  int
		negative  int
		neutral   int
	}
	stats := make(map[string]*acc)

	for _, rec := range records {
		if !rec.Enriched() || len(rec.CryptoMentioned) == 0 {
			continue
		}
		for _, symbol := range rec.CryptoMentioned {
			a := stats[symbol]
			if a == nil {
				a = &acc{}
				stats[symbol] = a
			}
			a.mentions++
			a.sentiment += *rec.SentimentScore
			switch *rec.SentimentLabel {
			case domain.SentimentPositive:
				a.positive++
			case domain.SentimentNegative:
				a.negative++
			default:
				a.neutral++
			}
		}
	}

	result := make([]CryptoTrend, 0, len(stats))
	for symbol, a := range stats {
		result = append(result, CryptoTrend{
			Symbol:        symbol,
			Mentions:      a.mentions,
			AvgSentiment:  round2(a.sentiment / float64(a.mentions)),
			PositiveCount: a.positive,
			NegativeCount: a.negative,
			NeutralCount:  a.neutral,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Mentions != result[j].Mentions {
			return result[i].Mentions > result[j].Mentions
		}
		return result[i].Symbol < result[j].Symbol
	})
	if len(result) > topTrends {
		result = result[:topTrends]
	}
	return result, nil
}

// SentimentBySource возвращает средний балл по каждому известному
// источнику. Источник без записей получает 0.
func (s *Service) SentimentBySource(ctx context.Context, window time.Duration) (map[domain.SourceTag]float64, error) {
	records, err := s.records.ListByTimeRange(ctx, s.now().UTC().Add(-window), "")
	if err != nil {
		return nil, fmt.Errorf("выборка записей за окно: %w", err)
	}

	totals := make(map[domain.SourceTag]float64)
	counts := make(map[domain.SourceTag]int)
	for _, rec := range records {
		if !rec.Enriched() {
			continue
		}
		totals[rec.Source] += *rec.SentimentScore
		counts[rec.Source]++
	}

	result := make(map[domain.SourceTag]float64, len(domain.KnownSources()))
	for _, source := range domain.KnownSources() {
		if counts[source] > 0 {
			result[source] = round2(totals[source] / float64(counts[source]))
		} else {
			result[source] = 0
		}
	}
	return result, nil
}

// DetectShift сравнивает среднее настроение свежего окна со средним
// остатка большого окна. Сдвиг меньше порога в любую сторону
// считается стабильностью; значимым считается сдвиг больше 0.2 по модулю.
func (s *Service) DetectShift(ctx context.Context, current, compare time.Duration) (SentimentShift, error) {
	if current >= compare {
		return SentimentShift{}, fmt.Errorf("свежее окно %v должно быть короче окна сравнения %v", current, compare)
	}

	now := s.now().UTC()
	records, err := s.records.ListByTimeRange(ctx, now.Add(-compare), "")
	if err != nil {
		return SentimentShift{}, fmt.Errorf("выборка записей за окно: %w", err)
	}

	cutoff := now.Add(-current)
	var currentSum, previousSum float64
	var currentCount, previousCount int
	for _, rec := range records {
		if !rec.Enriched() {
			continue
		}
		if rec.Timestamp.Before(cutoff) {
			previousSum += *rec.SentimentScore
			previousCount++
		} else {
			currentSum += *rec.SentimentScore
			currentCount++
		}
	}

	var currentAvg, previousAvg float64
	if currentCount > 0 {
		currentAvg = currentSum / float64(currentCount)
	}
	if previousCount > 0 {
		previousAvg = previousSum / float64(previousCount)
	}
	change := currentAvg - previousAvg

	direction := ShiftStable
	switch {
	case change > shiftDirectionThreshold:
		direction = ShiftPositive
	case change < -shiftDirectionThreshold:
		direction = ShiftNegative
	}

	return SentimentShift{
		CurrentSentiment:  round2(currentAvg),
		PreviousSentiment: round2(previousAvg),
		Change:            round2(change),
		Direction:         direction,
		Significant:       math.Abs(change) > shiftSignificantThreshold,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
