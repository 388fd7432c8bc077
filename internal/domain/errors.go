package domain

import "errors"

var (
	ErrNotFound          = errors.New("session not found")
	ErrInvalidDescriptor = errors.New("invalid magnet descriptor")
	ErrInvalidFileIndex  = errors.New("file index out of range")
	ErrDelivery          = errors.New("delivery failed")
)
