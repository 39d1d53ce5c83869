package source

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
)

// nitterTimeLayout — формат даты твита в разметке Nitter.
const nitterTimeLayout = "Jan 2, 2006 · 3:04 PM UTC"

// DefaultNitterMirrors — список инстансов в фиксированном порядке опроса.
var DefaultNitterMirrors = []string{
	"https://nitter.net",
	"https://nitter.privacydev.net",
	"https://nitter.poast.org",
}

// NitterAdapter опрашивает зеркала Nitter по порядку и разбирает ленту твитов
// у первого ответившего ожидаемой разметкой.
type NitterAdapter struct {
	client  *Client
	log     zerolog.Logger
	mirrors []string
	query   string
	limit   int
}

var _ domain.SourceAdapter = (*NitterAdapter)(nil)

// NewNitter создаёт адаптер Nitter поверх списка зеркал.
func NewNitter(client *Client, logger zerolog.Logger, mirrors []string, limit int) *NitterAdapter {
	if len(mirrors) == 0 {
		mirrors = DefaultNitterMirrors
	}
	return &NitterAdapter{client: client, log: logger, mirrors: mirrors, query: "bitcoin", limit: limit}
}

// Source реализует domain.SourceAdapter.
func (a *NitterAdapter) Source() domain.SourceTag { return domain.SourceNitter }

// FetchAndParse пробует зеркала в фиксированном порядке; ошибка возвращается
// только если не подошло ни одно.
func (a *NitterAdapter) FetchAndParse(ctx context.Context) ([]domain.RawItem, error) {
	for _, mirror := range a.mirrors {
		items, err := a.fetchMirror(ctx, mirror)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.log.Warn().Err(err).Str("mirror", mirror).Msg("nitter: зеркало не подошло")
			continue
		}
		return items, nil
	}
	return nil, fmt.Errorf("nitter: %w", domain.ErrSourceUnavailable)
}

func (a *NitterAdapter) fetchMirror(ctx context.Context, mirror string) ([]domain.RawItem, error) {
	body, err := a.client.Get(ctx, fmt.Sprintf("%s/search?f=tweets&q=%s", mirror, a.query), "")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("разбор страницы: %w", err)
	}

	timeline := doc.Find(".timeline-item")
	if timeline.Length() == 0 {
		// зеркало живо, но отдаёт капчу или чужую разметку
		return nil, fmt.Errorf("зеркало %s не отдаёт ленту", mirror)
	}

	var items []domain.RawItem
	timeline.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Find(".tweet-content").Text())
		if text == "" {
			return true
		}
		item := domain.RawItem{Source: domain.SourceNitter, Text: text}

		dateLink := sel.Find(".tweet-date a")
		if title, ok := dateLink.Attr("title"); ok {
			if ts, err := time.Parse(nitterTimeLayout, title); err == nil {
				utc := ts.UTC()
				item.PublishedAt = &utc
			}
		}
		if href, ok := dateLink.Attr("href"); ok {
			item.URL = absoluteURL(mirror, href)
		}
		if likes := parseTweetStat(sel.Find(".icon-heart").Parent().Text()); likes != nil {
			item.Engagement = likes
		}

		items = append(items, item)
		return len(items) < a.limit
	})
	return items, nil
}

func parseTweetStat(raw string) *int {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return nil
	}
	value, err := strconv.Atoi(cleaned)
	if err != nil || value < 0 {
		return nil
	}
	return &value
}
