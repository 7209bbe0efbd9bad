package storage

import "errors"

var (
	ErrBackendUnreachable = errors.New("vector backend unreachable")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrInvalidDocument    = errors.New("invalid document")
)
