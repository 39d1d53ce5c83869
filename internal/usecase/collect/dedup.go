package collect

import (
	"context"
	"fmt"

	"crypto-sentiment-monitor/internal/domain"
)

// Deduplicator решает, принимать ли нормализованную запись, по множеству
// отпечатков текущего прохода и по хранилищу. Живёт один проход сбора.
type Deduplicator struct {
	store domain.RecordRepo
	seen  map[string]struct{}
}

// NewDeduplicator создаёт дедупликатор для одного прохода.
func NewDeduplicator(store domain.RecordRepo) *Deduplicator {
	return &Deduplicator{store: store, seen: make(map[string]struct{})}
}

// Accept возвращает true, если запись ещё не встречалась ни в проходе,
// ни в хранилище. Отказ — ожидаемое событие, не ошибка.
func (d *Deduplicator) Accept(ctx context.Context, rec domain.Record) (bool, error) {
	key := string(rec.Source) + ":" + rec.Fingerprint
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	exists, err := d.store.HasFingerprint(ctx, rec.Source, rec.Fingerprint)
	if err != nil {
		return false, fmt.Errorf("проверка отпечатка: %w", err)
	}
	if exists {
		d.seen[key] = struct{}{}
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}
