package user

import "errors"

var (
	ErrSettingsNotFound = errors.New("user settings not found")
	ErrInvalidTimezone  = errors.New("invalid timezone")
	ErrInternal         = errors.New("internal error")
)
