package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"crypto-sentiment-monitor/internal/domain"
	"crypto-sentiment-monitor/internal/infra/metrics"
)

// Postgres реализует domain.RecordRepo на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.RecordRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицу записей и индексы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS scraped_data (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    source TEXT NOT NULL,
    content TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL,
    url TEXT,
    engagement_score INTEGER CHECK (engagement_score >= 0),
    scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    fingerprint TEXT NOT NULL,
    sentiment_score DOUBLE PRECISION CHECK (sentiment_score BETWEEN -1.0 AND 1.0),
    sentiment_label TEXT CHECK (sentiment_label IN ('positive','negative','neutral')),
    crypto_mentioned TEXT[],
    CHECK ((sentiment_score IS NULL) = (sentiment_label IS NULL)),
    UNIQUE (source, fingerprint)
);
CREATE INDEX IF NOT EXISTS scraped_data_unenriched_idx ON scraped_data (id) WHERE sentiment_score IS NULL;
CREATE INDEX IF NOT EXISTS scraped_data_timestamp_idx ON scraped_data (timestamp);
`)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "scraped_data", start, err)
	return err
}

// Insert сохраняет запись. Конфликт (source, fingerprint) превращается
// в domain.ErrDuplicate: хранилище — последняя инстанция дедупликации.
func (p *Postgres) Insert(ctx context.Context, rec domain.Record) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var engagement sql.NullInt32
	if rec.EngagementScore != nil {
		engagement = sql.NullInt32{Int32: int32(*rec.EngagementScore), Valid: true}
	}

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO scraped_data (source, content, timestamp, url, engagement_score, scraped_at, fingerprint)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7)
RETURNING id
`, string(rec.Source), rec.Content, rec.Timestamp, rec.URL, engagement, rec.ScrapedAt, rec.Fingerprint).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_insert", "scraped_data", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, domain.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

// HasFingerprint проверяет, есть ли запись с таким отпечатком.
func (p *Postgres) HasFingerprint(ctx context.Context, source domain.SourceTag, fingerprint string) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM scraped_data WHERE source=$1 AND fingerprint=$2)
`, string(source), fingerprint).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_has_fingerprint", "scraped_data", start, err)
	return exists, err
}

// FetchUnenriched возвращает записи без тональности, не более limit.
func (p *Postgres) FetchUnenriched(ctx context.Context, limit int) ([]domain.Record, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, source, content, timestamp, url, engagement_score, scraped_at, fingerprint,
       sentiment_score, sentiment_label, crypto_mentioned
FROM scraped_data
WHERE sentiment_score IS NULL
ORDER BY id
LIMIT $1
`, limit)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_fetch_unenriched", "scraped_data", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// UpdateEnrichment записывает тональность ровно один раз: апдейт обусловлен
// тем, что запись всё ещё не обогащена (compare-and-set).
func (p *Postgres) UpdateEnrichment(ctx context.Context, id int64, e domain.Enrichment) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	mentioned := e.Mentioned
	if mentioned == nil {
		mentioned = []string{}
	}

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE scraped_data
SET sentiment_score=$2, sentiment_label=$3, crypto_mentioned=$4
WHERE id=$1 AND sentiment_score IS NULL
`, id, e.Score, string(e.Label), mentioned)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_update_enrichment", "scraped_data", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	start = time.Now()
	err = p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM scraped_data WHERE id=$1)`, id).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_exists", "scraped_data", start, err)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyEnriched
}

// ListByTimeRange возвращает обогащённые записи с timestamp не раньше since.
func (p *Postgres) ListByTimeRange(ctx context.Context, since time.Time, source domain.SourceTag) ([]domain.Record, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	query := `
SELECT id, source, content, timestamp, url, engagement_score, scraped_at, fingerprint,
       sentiment_score, sentiment_label, crypto_mentioned
FROM scraped_data
WHERE sentiment_score IS NOT NULL AND timestamp >= $1`
	args := []any{since}
	if source != "" {
		query += ` AND source = $2`
		args = append(args, string(source))
	}
	query += ` ORDER BY timestamp DESC`

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_list_by_range", "scraped_data", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Stats возвращает агрегированную статистику хранилища.
func (p *Postgres) Stats(ctx context.Context) (domain.Stats, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	stats := domain.Stats{BySource: make(map[domain.SourceTag]int64)}

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT count(*), count(sentiment_score) FROM scraped_data
`).Scan(&stats.Total, &stats.Analyzed)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_stats", "scraped_data", start, err)
	if err != nil {
		return domain.Stats{}, err
	}
	stats.Unanalyzed = stats.Total - stats.Analyzed

	start = time.Now()
	rows, err := p.pool.Query(ctx, `SELECT source, count(*) FROM scraped_data GROUP BY source`)
	metrics.ObserveNetworkRequest("postgres", "scraped_data_stats_by_source", "scraped_data", start, err)
	if err != nil {
		return domain.Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return domain.Stats{}, err
		}
		stats.BySource[domain.SourceTag(source)] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]domain.Record, error) {
	var records []domain.Record
	for rows.Next() {
		var (
			rec        domain.Record
			source     string
			urlValue   sql.NullString
			engagement sql.NullInt32
			score      sql.NullFloat64
			label      sql.NullString
			mentioned  []string
		)
		if err := rows.Scan(&rec.ID, &source, &rec.Content, &rec.Timestamp, &urlValue, &engagement,
			&rec.ScrapedAt, &rec.Fingerprint, &score, &label, &mentioned); err != nil {
			return nil, err
		}
		rec.Source = domain.SourceTag(source)
		if urlValue.Valid {
			rec.URL = urlValue.String
		}
		if engagement.Valid {
			value := int(engagement.Int32)
			rec.EngagementScore = &value
		}
		if score.Valid {
			value := score.Float64
			rec.SentimentScore = &value
		}
		if label.Valid {
			value := domain.SentimentLabel(label.String)
			rec.SentimentLabel = &value
		}
		rec.CryptoMentioned = mentioned
		records = append(records, rec)
	}
	return records, rows.Err()
}
