package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrNoRules  = errors.New("no rules configured")
)
