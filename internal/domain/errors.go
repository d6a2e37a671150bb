package domain

import "errors"

var (
	ErrInvalidID     = errors.New("invalid id")
	ErrInvalidText   = errors.New("invalid text")
	ErrInvalidStatus = errors.New("invalid status")
)
