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

const cryptoNewsContentLimit = 300

// навигационные ссылки, которые нельзя путать со статьями
var cryptoNewsSkipWords = []string{"menu", "login", "subscribe", "more", "read"}
var cryptoNewsSkipHrefs = []string{"#", "javascript", "category", "tag", "author"}

// CryptoNewsAdapter собирает ссылки-заголовки с главной страницы CryptoNews.
type CryptoNewsAdapter struct {
	client  *Client
	log     zerolog.Logger
	baseURL string
	limit   int
}

var _ domain.SourceAdapter = (*CryptoNewsAdapter)(nil)

// NewCryptoNews создаёт адаптер CryptoNews.
func NewCryptoNews(client *Client, logger zerolog.Logger, limit int) *CryptoNewsAdapter {
	return &CryptoNewsAdapter{client: client, log: logger, baseURL: "https://cryptonews.com", limit: limit}
}

// Source реализует domain.SourceAdapter.
func (a *CryptoNewsAdapter) Source() domain.SourceTag { return domain.SourceCryptoNews }

// FetchAndParse скачивает главную и отфильтровывает навигацию от статей.
func (a *CryptoNewsAdapter) FetchAndParse(ctx context.Context) ([]domain.RawItem, error) {
	body, err := a.client.Get(ctx, a.baseURL+"/", "")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("cryptonews: %w", domain.ErrSourceUnavailable)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cryptonews: разбор страницы: %w", err)
	}

	var items []domain.RawItem
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) < 30 || looksLikeNavigation(text) {
			return true
		}
		href, _ := sel.Attr("href")
		if skipHref(href) {
			return true
		}
		items = append(items, domain.RawItem{
			Source: domain.SourceCryptoNews,
			Text:   truncateRunes(text, cryptoNewsContentLimit),
			URL:    absoluteURL(a.baseURL, href),
		})
		return len(items) < a.limit
	})

	a.log.Debug().Int("items", len(items)).Msg("cryptonews: листинг разобран")
	return items, nil
}

func looksLikeNavigation(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range cryptoNewsSkipWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

func skipHref(href string) bool {
	for _, fragment := range cryptoNewsSkipHrefs {
		if strings.Contains(href, fragment) {
			return true
		}
	}
	return false
}
