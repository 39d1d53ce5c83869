package collect

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
)

type memRepo struct {
	seq       int64
	records   map[int64]domain.Record
	insertErr error
	lookupErr error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[int64]domain.Record)}
}

func (m *memRepo) seed(source domain.SourceTag, content string) {
	m.seq++
	m.records[m.seq] = domain.Record{
		ID:          m.seq,
		Source:      source,
		Content:     domain.CollapseWhitespace(content),
		Fingerprint: domain.Fingerprint(source, content),
	}
}

func (m *memRepo) Insert(_ context.Context, rec domain.Record) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	for _, existing := range m.records {
		if existing.Source == rec.Source && existing.Fingerprint == rec.Fingerprint {
			return 0, domain.ErrDuplicate
		}
	}
	m.seq++
	rec.ID = m.seq
	m.records[m.seq] = rec
	return m.seq, nil
}

func (m *memRepo) HasFingerprint(_ context.Context, source domain.SourceTag, fingerprint string) (bool, error) {
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	for _, existing := range m.records {
		if existing.Source == source && existing.Fingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) FetchUnenriched(context.Context, int) ([]domain.Record, error) { return nil, nil }
func (m *memRepo) UpdateEnrichment(context.Context, int64, domain.Enrichment) error {
	return nil
}
func (m *memRepo) ListByTimeRange(context.Context, time.Time, domain.SourceTag) ([]domain.Record, error) {
	return nil, nil
}
func (m *memRepo) Stats(context.Context) (domain.Stats, error) { return domain.Stats{}, nil }

type stubAdapter struct {
	source domain.SourceTag
	items  []domain.RawItem
	err    error
}

func (a *stubAdapter) Source() domain.SourceTag { return a.source }
func (a *stubAdapter) FetchAndParse(context.Context) ([]domain.RawItem, error) {
	return a.items, a.err
}

func rawItem(source domain.SourceTag, text string) domain.RawItem {
	return domain.RawItem{Source: source, Text: text}
}

func newTestService(repo domain.RecordRepo, adapters ...domain.SourceAdapter) *Service {
	return NewService(adapters, repo, NewNormalizer(10), zerolog.Nop())
}

func TestRunPassScenarioThreeSources(t *testing.T) {
	repo := newMemRepo()
	repo.seed(domain.SourceReddit, "stored post one about bitcoin")
	repo.seed(domain.SourceReddit, "stored post two about ethereum")

	redditItems := []domain.RawItem{
		rawItem(domain.SourceReddit, "stored post one about bitcoin"),
		rawItem(domain.SourceReddit, "stored post two about ethereum"),
		rawItem(domain.SourceReddit, "   \t  "),
	}
	for i := 0; i < 7; i++ {
		redditItems = append(redditItems, rawItem(domain.SourceReddit, fmt.Sprintf("fresh reddit post number %d", i)))
	}

	var cryptoItems []domain.RawItem
	for i := 0; i < 5; i++ {
		cryptoItems = append(cryptoItems, rawItem(domain.SourceCryptoNews, fmt.Sprintf("unique headline number %d", i)))
	}

	service := newTestService(repo,
		&stubAdapter{source: domain.SourceReddit, items: redditItems},
		&stubAdapter{source: domain.SourceNitter, err: domain.ErrSourceUnavailable},
		&stubAdapter{source: domain.SourceCryptoNews, items: cryptoItems},
	)

	summary, err := service.RunPass(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	reddit := summary.PerSource[domain.SourceReddit]
	if reddit.Discovered != 10 || reddit.Accepted != 7 {
		t.Fatalf("reddit: ожидали 10/7, получили %d/%d", reddit.Discovered, reddit.Accepted)
	}
	if reddit.Duplicates != 2 || reddit.Invalid != 1 {
		t.Fatalf("reddit: ожидали 2 дубликата и 1 невалидный, получили %d/%d", reddit.Duplicates, reddit.Invalid)
	}
	nitter := summary.PerSource[domain.SourceNitter]
	if nitter.Discovered != 0 || nitter.Accepted != 0 {
		t.Fatalf("nitter: ожидали нулевые счётчики")
	}
	news := summary.PerSource[domain.SourceCryptoNews]
	if news.Discovered != 5 || news.Accepted != 5 {
		t.Fatalf("cryptonews: ожидали 5/5, получили %d/%d", news.Discovered, news.Accepted)
	}
	if summary.TotalAccepted != 12 {
		t.Fatalf("ожидали total_accepted 12, получили %d", summary.TotalAccepted)
	}
	if len(summary.SourcesFailed) != 1 || summary.SourcesFailed[0] != domain.SourceNitter {
		t.Fatalf("ожидали ровно один упавший источник nitter, получили %v", summary.SourcesFailed)
	}
	if !summary.Succeeded() {
		t.Fatalf("проход с принятыми записями должен считаться успешным")
	}
}

func TestRunPassIdempotent(t *testing.T) {
	repo := newMemRepo()
	adapter := &stubAdapter{source: domain.SourceReddit, items: []domain.RawItem{
		rawItem(domain.SourceReddit, "bitcoin is trading sideways today"),
		rawItem(domain.SourceReddit, "ethereum staking yields keep falling"),
	}}

	first, err := newTestService(repo, adapter).RunPass(context.Background())
	if err != nil {
		t.Fatalf("первый проход: %v", err)
	}
	if first.TotalAccepted != 2 {
		t.Fatalf("первый проход: ожидали 2 принятых, получили %d", first.TotalAccepted)
	}

	second, err := newTestService(repo, adapter).RunPass(context.Background())
	if err != nil {
		t.Fatalf("второй проход: %v", err)
	}
	if second.TotalAccepted != 0 {
		t.Fatalf("повторный проход не должен принимать записи, получили %d", second.TotalAccepted)
	}
	if second.PerSource[domain.SourceReddit].Duplicates != 2 {
		t.Fatalf("ожидали 2 дубликата на повторном проходе")
	}
}

func TestRunPassDuplicateWithinRun(t *testing.T) {
	repo := newMemRepo()
	adapter := &stubAdapter{source: domain.SourceReddit, items: []domain.RawItem{
		rawItem(domain.SourceReddit, "BTC Breaks    All Time High"),
		rawItem(domain.SourceReddit, "btc breaks all time high"),
	}}

	summary, err := newTestService(repo, adapter).RunPass(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	report := summary.PerSource[domain.SourceReddit]
	if report.Accepted != 1 || report.Duplicates != 1 {
		t.Fatalf("перепост внутри прохода должен отсекаться: %+v", report)
	}
}

func TestRunPassAllSourcesFailedNotFatal(t *testing.T) {
	repo := newMemRepo()
	service := newTestService(repo,
		&stubAdapter{source: domain.SourceReddit, err: domain.ErrSourceUnavailable},
		&stubAdapter{source: domain.SourceNitter, err: domain.ErrSourceUnavailable},
	)

	summary, err := service.RunPass(context.Background())
	if err != nil {
		t.Fatalf("сбой всех источников не должен быть фатальным: %v", err)
	}
	if summary.Succeeded() {
		t.Fatalf("проход без записей не может считаться успешным")
	}
	if len(summary.SourcesFailed) != 2 {
		t.Fatalf("ожидали 2 упавших источника, получили %v", summary.SourcesFailed)
	}
}

func TestRunPassRepositoryUnavailableFatal(t *testing.T) {
	repo := newMemRepo()
	repo.insertErr = errors.New("connection refused")
	service := newTestService(repo, &stubAdapter{source: domain.SourceReddit, items: []domain.RawItem{
		rawItem(domain.SourceReddit, "bitcoin is trading sideways today"),
	}})

	if _, err := service.RunPass(context.Background()); err == nil {
		t.Fatalf("недоступность хранилища должна быть фатальной для прохода")
	}
}

func TestRunPassCancelledBetweenSources(t *testing.T) {
	repo := newMemRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service := newTestService(repo, &stubAdapter{source: domain.SourceReddit, items: []domain.RawItem{
		rawItem(domain.SourceReddit, "bitcoin is trading sideways today"),
	}})

	if _, err := service.RunPass(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
}
