package domain

import "strings"

// SourceTag — каноническое имя источника из закрытого перечисления.
type SourceTag string

const (
	SourceReddit        SourceTag = "reddit"
	SourceCointelegraph SourceTag = "cointelegraph"
	SourceCryptoNews    SourceTag = "cryptonews"
	SourceNitter        SourceTag = "nitter"
)

// KnownSources перечисляет все поддерживаемые источники в порядке обхода.
func KnownSources() []SourceTag {
	return []SourceTag{SourceReddit, SourceCointelegraph, SourceCryptoNews, SourceNitter}
}

// Valid проверяет, что тег входит в перечисление.
func (t SourceTag) Valid() bool {
	switch t {
	case SourceReddit, SourceCointelegraph, SourceCryptoNews, SourceNitter:
		return true
	}
	return false
}

// CanonicalSource приводит произвольную строку к каноническому тегу.
func CanonicalSource(raw string) (SourceTag, bool) {
	tag := SourceTag(strings.ToLower(strings.TrimSpace(raw)))
	if tag.Valid() {
		return tag, true
	}
	return "", false
}
