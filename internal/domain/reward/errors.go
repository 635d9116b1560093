package reward

import "errors"

// ErrInvalidEvent is the only error Handle returns.
var ErrInvalidEvent = errors.New("invalid domain event")
