package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CollapseWhitespace обрезает и схлопывает внутренние пробельные символы.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Fingerprint считает отпечаток содержимого для дедупликации.
// Пара (source, fingerprint) уникальна в хранилище: перед хэшированием
// текст схлопывается по пробелам и приводится к нижнему регистру, поэтому
// репосты с иной разбивкой строк дают тот же отпечаток.
func Fingerprint(source SourceTag, content string) string {
	canon := strings.ToLower(CollapseWhitespace(content))
	sum := sha256.Sum256([]byte(string(source) + "\n" + canon))
	return hex.EncodeToString(sum[:])
}
