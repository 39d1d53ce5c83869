package analyze

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// defaultAliases — таблица "алиас → тикер". Тикеры ссылаются сами на себя,
// полные названия монет переводятся в тикер.
var defaultAliases = map[string]string{
	"BTC": "BTC", "Bitcoin": "BTC",
	"ETH": "ETH", "Ethereum": "ETH",
	"USDT": "USDT", "Tether": "USDT",
	"BNB": "BNB", "Binance Coin": "BNB",
	"SOL": "SOL", "Solana": "SOL",
	"XRP": "XRP", "Ripple": "XRP",
	"USDC": "USDC", "USD Coin": "USDC",
	"ADA": "ADA", "Cardano": "ADA",
	"DOGE": "DOGE", "Dogecoin": "DOGE",
	"TRX": "TRX", "Tron": "TRX",
	"AVAX": "AVAX", "Avalanche": "AVAX",
	"DOT": "DOT", "Polkadot": "DOT",
	"MATIC": "MATIC", "Polygon": "MATIC",
	"LINK": "LINK", "Chainlink": "LINK",
	"UNI": "UNI", "Uniswap": "UNI",
	"ATOM": "ATOM", "Cosmos": "ATOM",
	"LTC": "LTC", "Litecoin": "LTC",
	"BCH": "BCH", "Bitcoin Cash": "BCH",
	"XLM": "XLM", "Stellar": "XLM",
	"ALGO": "ALGO", "Algorand": "ALGO",
	"VET": "VET", "VeChain": "VET",
	"ICP": "ICP", "Internet Computer": "ICP",
	"FIL": "FIL", "Filecoin": "FIL",
	"APT": "APT", "Aptos": "APT",
	"ARB": "ARB", "Arbitrum": "ARB",
	"OP": "OP", "Optimism": "OP",
}

type aliasPattern struct {
	re     *regexp.Regexp
	symbol string
}

// SymbolTable ищет упоминания криптовалют в тексте по границам слов.
type SymbolTable struct {
	patterns []aliasPattern
}

// NewSymbolTable компилирует таблицу алиасов. Алиас матчится
// без учёта регистра и только целым словом: "BTCUSD" — не упоминание BTC.
func NewSymbolTable(aliases map[string]string) (*SymbolTable, error) {
	patterns := make([]aliasPattern, 0, len(aliases))
	for alias, symbol := range aliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(symbol) == "" {
			return nil, fmt.Errorf("пустой алиас или тикер в таблице символов")
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(alias) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("алиас %q: %w", alias, err)
		}
		patterns = append(patterns, aliasPattern{re: re, symbol: strings.ToUpper(symbol)})
	}
	return &SymbolTable{patterns: patterns}, nil
}

// DefaultSymbolTable возвращает встроенную таблицу популярных монет.
func DefaultSymbolTable() *SymbolTable {
	table, err := NewSymbolTable(defaultAliases)
	if err != nil {
		panic(err)
	}
	return table
}

// SymbolTableFromJSON разбирает пользовательскую таблицу вида
// {"алиас": "ТИКЕР", ...}. Пустая строка — встроенная таблица.
func SymbolTableFromJSON(raw string) (*SymbolTable, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultSymbolTable(), nil
	}
	var aliases map[string]string
	if err := json.Unmarshal([]byte(raw), &aliases); err != nil {
		return nil, fmt.Errorf("таблица символов: %w", err)
	}
	return NewSymbolTable(aliases)
}

// Detect возвращает отсортированный набор тикеров без повторов.
// Отсутствие упоминаний — пустой срез, не nil.
func (t *SymbolTable) Detect(text string) []string {
	found := make(map[string]struct{})
	for _, p := range t.patterns {
		if p.re.MatchString(text) {
			found[p.symbol] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(found))
	for symbol := range found {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
