package domain

import (
	"context"
	"time"
)

// SourceAdapter скачивает листинг одного источника и разбирает его в сырые элементы.
// Структурный сбой разбора отдельного элемента не прерывает выдачу остальных;
// недоступность всех зеркал источника — это ErrSourceUnavailable.
type SourceAdapter interface {
	Source() SourceTag
	FetchAndParse(ctx context.Context) ([]RawItem, error)
}

// RecordRepo — минимальный контракт хранилища записей.
type RecordRepo interface {
	// Insert сохраняет запись и возвращает присвоенный id.
	// При конфликте (source, fingerprint) возвращает ErrDuplicate.
	Insert(ctx context.Context, rec Record) (int64, error)
	// HasFingerprint проверяет отпечаток по хранилищу.
	HasFingerprint(ctx context.Context, source SourceTag, fingerprint string) (bool, error)
	// FetchUnenriched возвращает необогащённые записи, не более limit.
	FetchUnenriched(ctx context.Context, limit int) ([]Record, error)
	// UpdateEnrichment записывает результат обогащения ровно один раз.
	// Возвращает ErrNotFound при отсутствии id и ErrAlreadyEnriched,
	// если запись уже вышла из необогащённого состояния.
	UpdateEnrichment(ctx context.Context, id int64, e Enrichment) error
	// ListByTimeRange возвращает обогащённые записи с timestamp >= since.
	// Пустой source означает все источники.
	ListByTimeRange(ctx context.Context, since time.Time, source SourceTag) ([]Record, error)
	// Stats возвращает агрегированную статистику хранилища.
	Stats(ctx context.Context) (Stats, error)
}
