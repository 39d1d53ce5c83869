package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"crypto-sentiment-monitor/internal/domain"
)

const nitterFixture = `<html><body>
<div class="timeline-item">
  <div class="tweet-content">Bitcoin looks unstoppable this cycle</div>
  <span class="tweet-date"><a href="/someone/status/1" title="Nov 14, 2023 · 10:13 PM UTC">14 Nov</a></span>
  <div class="tweet-stats"><span class="tweet-stat"><span class="icon-heart"></span> 128</span></div>
</div>
<div class="timeline-item">
  <div class="tweet-content"></div>
</div>
<div class="timeline-item">
  <div class="tweet-content">ETH gas fees are painful again</div>
  <span class="tweet-date"><a href="/other/status/2" title="not a date">15 Nov</a></span>
</div>
</body></html>`

func TestNitterFallsBackToNextMirror(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	captcha := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>verify you are human</body></html>"))
	}))
	defer captcha.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(nitterFixture))
	}))
	defer healthy.Close()

	adapter := NewNitter(testClient(), zerolog.Nop(), []string{broken.URL, captcha.URL, healthy.URL}, 30)

	items, err := adapter.FetchAndParse(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ожидали 2 твита (пустой пропущен), получили %d", len(items))
	}

	first := items[0]
	if first.Engagement == nil || *first.Engagement != 128 {
		t.Fatalf("ожидали 128 лайков, получили %v", first.Engagement)
	}
	if first.PublishedAt == nil {
		t.Fatalf("ожидали разобранное время твита")
	}
	if got := first.PublishedAt.Format("2006-01-02 15:04"); got != "2023-11-14 22:13" {
		t.Fatalf("время твита разобрано неверно: %s", got)
	}
	if first.URL != healthy.URL+"/someone/status/1" {
		t.Fatalf("неверный URL твита: %s", first.URL)
	}

	// нечитаемая дата — это пропуск поля, а не пропуск твита
	if items[1].PublishedAt != nil {
		t.Fatalf("нечитаемая дата должна оставлять PublishedAt пустым")
	}
}

func TestNitterAllMirrorsDown(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	adapter := NewNitter(testClient(), zerolog.Nop(), []string{broken.URL, broken.URL}, 30)

	_, err := adapter.FetchAndParse(context.Background())
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("ожидали ErrSourceUnavailable, получили %v", err)
	}
}
