package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
)

const redditContentLimit = 500

// RedditAdapter читает JSON-листинги old.reddit.com без авторизации.
type RedditAdapter struct {
	client     *Client
	log        zerolog.Logger
	baseURL    string
	subreddits []string
	limit      int
}

var _ domain.SourceAdapter = (*RedditAdapter)(nil)

// NewReddit создаёт адаптер Reddit.
func NewReddit(client *Client, logger zerolog.Logger, limit int) *RedditAdapter {
	return &RedditAdapter{
		client:     client,
		log:        logger,
		baseURL:    "https://old.reddit.com",
		subreddits: []string{"cryptocurrency", "CryptoMarkets", "Bitcoin"},
		limit:      limit,
	}
}

// Source реализует domain.SourceAdapter.
func (a *RedditAdapter) Source() domain.SourceTag { return domain.SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				CreatedUTC float64 `json:"created_utc"`
				Score      int     `json:"score"`
				Permalink  string  `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchAndParse обходит сабреддиты по порядку, пока не наберёт лимит элементов.
// Недоступный сабреддит пропускается; если не ответил ни один,
// возвращается domain.ErrSourceUnavailable.
func (a *RedditAdapter) FetchAndParse(ctx context.Context) ([]domain.RawItem, error) {
	var items []domain.RawItem
	reached := false

	for _, subreddit := range a.subreddits {
		if len(items) >= a.limit {
			break
		}
		body, err := a.client.Get(ctx, fmt.Sprintf("%s/r/%s/.json?limit=25", a.baseURL, subreddit), "application/json")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.log.Warn().Err(err).Str("subreddit", subreddit).Msg("reddit: сабреддит недоступен")
			continue
		}
		reached = true

		var listing redditListing
		if err := json.Unmarshal(body, &listing); err != nil {
			a.log.Warn().Err(err).Str("subreddit", subreddit).Msg("reddit: листинг не разобрался")
			continue
		}

		for _, child := range listing.Data.Children {
			if len(items) >= a.limit {
				break
			}
			post := child.Data
			content := strings.TrimSpace(post.Title + ". " + post.Selftext)
			if len(content) < 20 {
				content = strings.TrimSpace(post.Title)
			}
			items = append(items, domain.RawItem{
				Source:      domain.SourceReddit,
				Text:        truncateRunes(content, redditContentLimit),
				PublishedAt: unixTime(post.CreatedUTC),
				URL:         "https://reddit.com" + post.Permalink,
				Engagement:  intPtr(post.Score),
			})
		}
	}

	if !reached {
		return nil, fmt.Errorf("reddit: %w", domain.ErrSourceUnavailable)
	}
	return items, nil
}

func unixTime(sec float64) *time.Time {
	if sec <= 0 {
		return nil
	}
	ts := time.Unix(int64(sec), 0).UTC()
	return &ts
}

func intPtr(v int) *int { return &v }

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
