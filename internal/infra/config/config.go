package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов. Загружается один раз
// на старте процесса и дальше не меняется.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Scrape struct {
		Sources        []string      `envconfig:"SCRAPE_SOURCES" default:"reddit,cointelegraph,cryptonews,nitter"`
		RequestDelay   time.Duration `envconfig:"SCRAPE_REQUEST_DELAY" default:"2s"`
		RequestTimeout time.Duration `envconfig:"SCRAPE_REQUEST_TIMEOUT" default:"15s"`
		PerSourceLimit int           `envconfig:"SCRAPE_PER_SOURCE_LIMIT" default:"30"`
		MinContentLen  int           `envconfig:"SCRAPE_MIN_CONTENT_LEN" default:"10"`
	} `envconfig:""`

	Sentiment struct {
		PositiveThreshold float64 `envconfig:"SENTIMENT_POSITIVE_THRESHOLD" default:"0.05"`
		NegativeThreshold float64 `envconfig:"SENTIMENT_NEGATIVE_THRESHOLD" default:"-0.05"`
		BatchSize         int     `envconfig:"SENTIMENT_BATCH_SIZE" default:"200"`
		// SymbolTableJSON — JSON-объект alias→symbol, заменяющий встроенную таблицу.
		SymbolTableJSON string `envconfig:"SENTIMENT_SYMBOL_TABLE"`
	} `envconfig:""`

	Schedule struct {
		CollectInterval time.Duration `envconfig:"COLLECT_INTERVAL" default:"30m"`
	} `envconfig:""`

	Queues struct {
		Jobs string `envconfig:"JOBS_QUEUE_KEY" default:"pipeline_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
