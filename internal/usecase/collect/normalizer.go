package collect

import (
	"time"
	"unicode/utf8"

	"crypto-sentiment-monitor/internal/domain"
)

// Normalizer приводит сырой элемент к канонической форме записи.
// Чистая функция: никаких обращений к сети или хранилищу.
type Normalizer struct {
	minContentLen int
}

// NewNormalizer создаёт нормализатор с минимальной длиной содержимого.
func NewNormalizer(minContentLen int) *Normalizer {
	return &Normalizer{minContentLen: minContentLen}
}

// Normalize возвращает запись до вставки и признак пригодности элемента.
// Слишком короткий после схлопывания пробелов текст — это шум, а не ошибка.
// Отсутствующее время публикации заменяется временем сбора: ожидаемый
// фолбэк, источники новостных листингов времени не отдают.
func (n *Normalizer) Normalize(item domain.RawItem, collectedAt time.Time) (domain.Record, bool) {
	source, ok := domain.CanonicalSource(string(item.Source))
	if !ok {
		return domain.Record{}, false
	}

	content := domain.CollapseWhitespace(item.Text)
	if utf8.RuneCountInString(content) < n.minContentLen {
		return domain.Record{}, false
	}

	timestamp := collectedAt
	if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
		timestamp = item.PublishedAt.UTC()
	}

	var engagement *int
	if item.Engagement != nil && *item.Engagement >= 0 {
		value := *item.Engagement
		engagement = &value
	}

	return domain.Record{
		Source:          source,
		Content:         content,
		Timestamp:       timestamp,
		URL:             item.URL,
		EngagementScore: engagement,
		ScrapedAt:       collectedAt,
		Fingerprint:     domain.Fingerprint(source, content),
	}, true
}
