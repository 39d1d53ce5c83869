package domain

import "time"

// RawItem — сырой элемент, полученный адаптером источника.
// Живёт только до нормализации и в хранилище не попадает.
type RawItem struct {
	Source      SourceTag
	Text        string
	PublishedAt *time.Time
	URL         string
	Engagement  *int
}

// SentimentLabel — метка тональности, детерминированно выводимая из оценки.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Record — сохранённая запись scraped_data.
type Record struct {
	ID              int64
	Source          SourceTag
	Content         string
	Timestamp       time.Time
	URL             string
	EngagementScore *int
	ScrapedAt       time.Time
	Fingerprint     string
	SentimentScore  *float64
	SentimentLabel  *SentimentLabel
	// CryptoMentioned равен nil до обогащения; пустой срез после
	// обогащения означает «упоминаний не найдено».
	CryptoMentioned []string
}

// Enriched сообщает, прошла ли запись обогащение.
func (r Record) Enriched() bool {
	return r.SentimentScore != nil && r.SentimentLabel != nil
}

// Enrichment — результат одного обогащения записи.
type Enrichment struct {
	Score     float64
	Label     SentimentLabel
	Mentioned []string
}

// SourceReport — счётчики одного источника за проход сбора.
type SourceReport struct {
	Discovered int
	Accepted   int
	Duplicates int
	Invalid    int
}

// RunSummary — итог одного прохода сбора по всем источникам.
type RunSummary struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	PerSource     map[SourceTag]SourceReport
	TotalAccepted int
	SourcesFailed []SourceTag
}

// Succeeded считает проход успешным, если принята хотя бы одна запись.
func (s RunSummary) Succeeded() bool {
	return s.TotalAccepted > 0
}

// Stats — агрегированная статистика хранилища.
type Stats struct {
	Total      int64
	Analyzed   int64
	Unanalyzed int64
	BySource   map[SourceTag]int64
}
