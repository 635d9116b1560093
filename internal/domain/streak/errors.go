package streak

import "errors"

var (
	ErrUnknownKind = errors.New("unknown streak kind")
	ErrInternal    = errors.New("internal error")
)
