package collect

import (
	"testing"
	"time"

	"crypto-sentiment-monitor/internal/domain"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	n := NewNormalizer(10)
	collectedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec, ok := n.Normalize(domain.RawItem{
		Source: domain.SourceReddit,
		Text:   "  Bitcoin \t is \n\n trading   sideways  ",
	}, collectedAt)
	if !ok {
		t.Fatalf("валидный элемент отвергнут")
	}
	if rec.Content != "Bitcoin is trading sideways" {
		t.Fatalf("пробелы не схлопнуты: %q", rec.Content)
	}
	if rec.Fingerprint == "" {
		t.Fatalf("отпечаток не посчитан")
	}
}

func TestNormalizeRejectsShortText(t *testing.T) {
	n := NewNormalizer(10)

	cases := []string{"", "   ", "short", " a  b  c "}
	for _, text := range cases {
		if _, ok := n.Normalize(domain.RawItem{Source: domain.SourceReddit, Text: text}, time.Now()); ok {
			t.Fatalf("короткий текст %q должен отвергаться", text)
		}
	}
}

func TestNormalizeTimestampFallback(t *testing.T) {
	n := NewNormalizer(10)
	collectedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec, ok := n.Normalize(domain.RawItem{
		Source: domain.SourceCointelegraph,
		Text:   "ethereum spot ETF approved by regulator",
	}, collectedAt)
	if !ok {
		t.Fatalf("валидный элемент отвергнут")
	}
	if !rec.Timestamp.Equal(collectedAt) {
		t.Fatalf("без времени публикации ожидали время сбора, получили %v", rec.Timestamp)
	}

	published := time.Date(2024, 4, 30, 9, 30, 0, 0, time.UTC)
	rec, _ = n.Normalize(domain.RawItem{
		Source:      domain.SourceCointelegraph,
		Text:        "ethereum spot ETF approved by regulator",
		PublishedAt: &published,
	}, collectedAt)
	if !rec.Timestamp.Equal(published) {
		t.Fatalf("время публикации должно иметь приоритет, получили %v", rec.Timestamp)
	}
}

func TestNormalizeUnknownSource(t *testing.T) {
	n := NewNormalizer(10)
	if _, ok := n.Normalize(domain.RawItem{Source: "myspace", Text: "long enough text about bitcoin"}, time.Now()); ok {
		t.Fatalf("неизвестный источник должен отвергаться")
	}
}

func TestNormalizeDropsNegativeEngagement(t *testing.T) {
	n := NewNormalizer(10)
	bad := -5
	rec, ok := n.Normalize(domain.RawItem{
		Source:     domain.SourceReddit,
		Text:       "heavily downvoted take on bitcoin",
		Engagement: &bad,
	}, time.Now())
	if !ok {
		t.Fatalf("запись с отрицательным рейтингом остаётся валидной")
	}
	if rec.EngagementScore != nil {
		t.Fatalf("отрицательный рейтинг должен сбрасываться, получили %d", *rec.EngagementScore)
	}
}
