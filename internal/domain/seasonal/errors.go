package seasonal

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound   = errors.New("seasonal event not found")
	ErrUnknownRuleType = errors.New("unknown rule type")
	ErrInternal        = errors.New("internal error")
)

// ConfigError rejects an admin write whose rules or window would corrupt
// evaluation. It never reaches the evaluation path.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid seasonal config: %s: %s", e.Field, e.Message)
}
