package trends

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
)

type trendRepo struct {
	records []domain.Record
	listErr error
}

func (r *trendRepo) ListByTimeRange(_ context.Context, since time.Time, source domain.SourceTag) ([]domain.Record, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Record
	for _, rec := range r.records {
		if rec.Timestamp.Before(since) {
			continue
		}
		if source != "" && rec.Source != source {
			continue
		}
		if !rec.Enriched() {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *trendRepo) Insert(context.Context, domain.Record) (int64, error) { return 0, nil }
func (r *trendRepo) HasFingerprint(context.Context, domain.SourceTag, string) (bool, error) {
	return false, nil
}
func (r *trendRepo) FetchUnenriched(context.Context, int) ([]domain.Record, error) { return nil, nil }
func (r *trendRepo) UpdateEnrichment(context.Context, int64, domain.Enrichment) error {
	return nil
}
func (r *trendRepo) Stats(context.Context) (domain.Stats, error) { return domain.Stats{}, nil }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func enriched(source domain.SourceTag, age time.Duration, score float64, mentioned ...string) domain.Record {
	label := domain.SentimentNeutral
	if score >= 0.05 {
		label = domain.SentimentPositive
	} else if score <= -0.05 {
		label = domain.SentimentNegative
	}
	if mentioned == nil {
		mentioned = []string{}
	}
	return domain.Record{
		Source:          source,
		Timestamp:       testNow.Add(-age),
		SentimentScore:  &score,
		SentimentLabel:  &label,
		CryptoMentioned: mentioned,
	}
}

func newTestService(repo domain.RecordRepo) *Service {
	s := NewService(repo, zerolog.Nop())
	s.now = func() time.Time { return testNow }
	return s
}

func TestTrendingCryptosAggregation(t *testing.T) {
	repo := &trendRepo{records: []domain.Record{
		enriched(domain.SourceReddit, time.Hour, 0.6, "BTC"),
		enriched(domain.SourceReddit, 2*time.Hour, 0.4, "BTC", "ETH"),
		enriched(domain.SourceNitter, 3*time.Hour, -0.2, "BTC"),
		enriched(domain.SourceNitter, 4*time.Hour, 0.1),
	}}

	got, err := newTestService(repo).TrendingCryptos(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ожидали 2 монеты, получили %d", len(got))
	}

	btc := got[0]
	if btc.Symbol != "BTC" || btc.Mentions != 3 {
		t.Fatalf("BTC должен лидировать с 3 упоминаниями: %+v", btc)
	}
	if btc.AvgSentiment != 0.27 {
		t.Fatalf("средний балл BTC: ожидали 0.27, получили %v", btc.AvgSentiment)
	}
	if btc.PositiveCount != 2 || btc.NegativeCount != 1 || btc.NeutralCount != 0 {
		t.Fatalf("счётчики меток BTC: %+v", btc)
	}
	if got[1].Symbol != "ETH" || got[1].Mentions != 1 {
		t.Fatalf("вторым ожидали ETH с одним упоминанием: %+v", got[1])
	}
}

func TestTrendingCryptosTopTen(t *testing.T) {
	repo := &trendRepo{}
	for i := 0; i < 12; i++ {
		symbol := fmt.Sprintf("C%02d", i)
		for j := 0; j <= i; j++ {
			repo.records = append(repo.records, enriched(domain.SourceReddit, time.Hour, 0.1, symbol))
		}
	}

	got, err := newTestService(repo).TrendingCryptos(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("рейтинг ограничен десятью монетами, получили %d", len(got))
	}
	if got[0].Symbol != "C11" || got[0].Mentions != 12 {
		t.Fatalf("лидер рейтинга неверен: %+v", got[0])
	}
}

func TestTrendingCryptosRespectsWindow(t *testing.T) {
	repo := &trendRepo{records: []domain.Record{
		enriched(domain.SourceReddit, time.Hour, 0.5, "BTC"),
		enriched(domain.SourceReddit, 48*time.Hour, 0.5, "DOGE"),
	}}

	got, err := newTestService(repo).TrendingCryptos(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "BTC" {
		t.Fatalf("запись вне окна должна игнорироваться: %+v", got)
	}
}

func TestSentimentBySource(t *testing.T) {
	repo := &trendRepo{records: []domain.Record{
		enriched(domain.SourceReddit, time.Hour, 0.4, "BTC"),
		enriched(domain.SourceReddit, 2*time.Hour, 0.2),
		enriched(domain.SourceNitter, time.Hour, -0.3),
	}}

	got, err := newTestService(repo).SentimentBySource(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != len(domain.KnownSources()) {
		t.Fatalf("в отчёте должны присутствовать все источники: %v", got)
	}
	if got[domain.SourceReddit] != 0.3 {
		t.Fatalf("reddit: ожидали 0.3, получили %v", got[domain.SourceReddit])
	}
	if got[domain.SourceNitter] != -0.3 {
		t.Fatalf("nitter: ожидали -0.3, получили %v", got[domain.SourceNitter])
	}
	if got[domain.SourceCointelegraph] != 0 {
		t.Fatalf("источник без записей должен давать 0, получили %v", got[domain.SourceCointelegraph])
	}
}

func TestDetectShiftSignificant(t *testing.T) {
	repo := &trendRepo{records: []domain.Record{
		enriched(domain.SourceReddit, time.Hour, 0.5),
		enriched(domain.SourceReddit, 2*time.Hour, 0.5),
		enriched(domain.SourceReddit, 12*time.Hour, 0.1),
		enriched(domain.SourceReddit, 20*time.Hour, 0.1),
	}}

	got, err := newTestService(repo).DetectShift(context.Background(), 6*time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.CurrentSentiment != 0.5 || got.PreviousSentiment != 0.1 {
		t.Fatalf("средние посчитаны неверно: %+v", got)
	}
	if got.Change != 0.4 || got.Direction != ShiftPositive || !got.Significant {
		t.Fatalf("ожидали значимый положительный сдвиг: %+v", got)
	}
}

func TestDetectShiftStable(t *testing.T) {
	repo := &trendRepo{records: []domain.Record{
		enriched(domain.SourceReddit, time.Hour, 0.12),
		enriched(domain.SourceReddit, 12*time.Hour, 0.1),
	}}

	got, err := newTestService(repo).DetectShift(context.Background(), 6*time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.Direction != ShiftStable || got.Significant {
		t.Fatalf("сдвиг в пределах порога должен быть стабильным: %+v", got)
	}
}

func TestDetectShiftEmptyWindows(t *testing.T) {
	got, err := newTestService(&trendRepo{}).DetectShift(context.Background(), 6*time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.CurrentSentiment != 0 || got.PreviousSentiment != 0 || got.Direction != ShiftStable {
		t.Fatalf("пустые окна дают нулевой стабильный сдвиг: %+v", got)
	}
}

func TestDetectShiftBadWindows(t *testing.T) {
	if _, err := newTestService(&trendRepo{}).DetectShift(context.Background(), 24*time.Hour, 6*time.Hour); err == nil {
		t.Fatalf("свежее окно длиннее окна сравнения — ошибка конфигурации")
	}
}

func TestTrendingCryptosStoreError(t *testing.T) {
	repo := &trendRepo{listErr: errors.New("connection refused")}
	if _, err := newTestService(repo).TrendingCryptos(context.Background(), time.Hour); err == nil {
		t.Fatalf("ошибка хранилища должна подниматься наверх")
	}
}
