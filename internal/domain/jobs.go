package domain

import (
	"context"
	"time"
)

// JobKind — тип фоновой задачи пайплайна.
type JobKind string

const (
	// JobCollect — проход сбора по всем источникам.
	JobCollect JobKind = "collect"
	// JobAnalyze — проход обогащения необогащённых записей.
	JobAnalyze JobKind = "analyze"
)

// Job описывает задачу, проходящую через очередь.
type Job struct {
	ID          string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	RequestedAt time.Time `json:"requested_at"`
}

// AckFunc подтверждает обработку задачи или возвращает её в очередь.
type AckFunc func(success bool) error

// JobQueue — очередь задач между планировщиком и воркером.
type JobQueue interface {
	Enqueue(ctx context.Context, job Job) error
	Receive(ctx context.Context) (Job, AckFunc, error)
}
