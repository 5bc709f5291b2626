package model

import (
	"errors"
)

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrValidationFailed  = errors.New("validation failed")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrNotFound          = errors.New("not found")
	ErrChannel           = errors.New("channel error")
	ErrInvalidInput      = errors.New("invalid input")
)
