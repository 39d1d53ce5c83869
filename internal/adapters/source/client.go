package source

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"crypto-sentiment-monitor/internal/infra/metrics"
)

const maxBodyBytes = 2 << 20

// userAgents ротируются между запросами, чтобы листинги не банили клиента.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Client — общий вежливый HTTP-клиент адаптеров: обязательная пауза между
// запросами к одному хосту, таймаут на запрос и ротация User-Agent.
type Client struct {
	http  *http.Client
	delay time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewClient создаёт клиент с паузой delay между запросами к одному хосту.
func NewClient(timeout, delay time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		delay:    delay,
		lastSeen: make(map[string]time.Time),
	}
}

// Get скачивает страницу, выдержав паузу вежливости для её хоста.
func (c *Client) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("разбор URL: %w", err)
	}
	if err := c.waitTurn(ctx, parsed.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("scraper", "get", parsed.Host, start, err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("неожиданный статус %d от %s", resp.StatusCode, parsed.Host)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа: %w", err)
	}
	return body, nil
}

// waitTurn блокирует вызов, пока не истечёт пауза после прошлого запроса к хосту.
// Паузы разных хостов независимы, поэтому источники не координируются между собой.
func (c *Client) waitTurn(ctx context.Context, host string) error {
	for {
		c.mu.Lock()
		last, ok := c.lastSeen[host]
		now := time.Now()
		if !ok || now.Sub(last) >= c.delay {
			c.lastSeen[host] = now
			c.mu.Unlock()
			return nil
		}
		wait := c.delay - now.Sub(last)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
