package domain

import "errors"

// ErrDuplicate возвращается хранилищем при вставке уже известного отпечатка.
var ErrDuplicate = errors.New("запись с таким отпечатком уже существует")

// ErrNotFound возвращается, если записи с указанным id нет.
var ErrNotFound = errors.New("запись не найдена")

// ErrAlreadyEnriched возвращается при попытке повторного обогащения записи.
var ErrAlreadyEnriched = errors.New("запись уже обогащена")

// ErrSourceUnavailable возвращается адаптером, когда все зеркала источника недоступны.
var ErrSourceUnavailable = errors.New("источник недоступен")
