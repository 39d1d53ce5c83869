package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
)

// CointelegraphAdapter разбирает заголовки тег-страницы Cointelegraph.
// Публикационного времени листинг не отдаёт, поэтому PublishedAt остаётся пустым
// и нормализатор подставит время сбора.
type CointelegraphAdapter struct {
	client  *Client
	log     zerolog.Logger
	baseURL string
	limit   int
}

var _ domain.SourceAdapter = (*CointelegraphAdapter)(nil)

// NewCointelegraph создаёт адаптер Cointelegraph.
func NewCointelegraph(client *Client, logger zerolog.Logger, limit int) *CointelegraphAdapter {
	return &CointelegraphAdapter{client: client, log: logger, baseURL: "https://cointelegraph.com", limit: limit}
}

// Source реализует domain.SourceAdapter.
func (a *CointelegraphAdapter) Source() domain.SourceTag { return domain.SourceCointelegraph }

// FetchAndParse скачивает страницу и собирает заголовки статей.
func (a *CointelegraphAdapter) FetchAndParse(ctx context.Context) ([]domain.RawItem, error) {
	body, err := a.client.Get(ctx, a.baseURL+"/tags/bitcoin", "")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("cointelegraph: %w", domain.ErrSourceUnavailable)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cointelegraph: разбор страницы: %w", err)
	}

	var items []domain.RawItem
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Text())
		if len(title) < 30 {
			return true
		}
		link := a.baseURL
		if href, ok := sel.Closest("a").Attr("href"); ok {
			link = absoluteURL(a.baseURL, href)
		}
		items = append(items, domain.RawItem{
			Source: domain.SourceCointelegraph,
			Text:   title,
			URL:    link,
		})
		return len(items) < a.limit
	})

	a.log.Debug().Int("items", len(items)).Msg("cointelegraph: листинг разобран")
	return items, nil
}

func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return base + href
}
