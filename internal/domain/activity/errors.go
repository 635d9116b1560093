package activity

import "errors"

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrInternal      = errors.New("internal error")
)
