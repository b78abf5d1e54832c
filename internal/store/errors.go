package store

import "errors"

var (
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("idempotency key already used")
)
