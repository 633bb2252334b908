package types

import "errors"

// Record errors.
var (
	ErrNotFound    = errors.New("record not found")
	ErrInvalidID   = errors.New("invalid record id")
	ErrInvalidName = errors.New("invalid record name")
	ErrInvalidData = errors.New("invalid record data")
)

// Configuration errors.
var (
	ErrDataDirEmpty    = errors.New("data directory not set")
	ErrClientIDEmpty   = errors.New("client id not set")
	ErrDeviceNameEmpty = errors.New("device name not set")
)

// Lock errors.
var (
	ErrLockHeld      = errors.New("sync lock held by another device")
	ErrNotLockHolder = errors.New("sync lock not held by this device")
)
