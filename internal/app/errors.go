package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrRemote            = errors.New("remote request failed")
	ErrRemoteDisabled    = errors.New("remote sync disabled")
	ErrInvalidPageSize   = errors.New("invalid page size")
	ErrInvalidSource     = errors.New("invalid load source")
	ErrUnsupportedFormat = errors.New("unsupported snapshot version")
)
