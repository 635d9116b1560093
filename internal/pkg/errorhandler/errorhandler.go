package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/echoapp/echo-rewards/internal/pkg/logger"
	"github.com/echoapp/echo-rewards/internal/pkg/response"
)

// HandleError logs err on the request logger and writes a sanitized error
// body. The underlying error never reaches the client.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	l := logger.FromContext(ctx)

	var event *zerolog.Event
	switch {
	case errors.Is(err, context.Canceled):
		// caller hung up; nothing to alert on
		event = l.Info()
	case status >= http.StatusInternalServerError:
		event = l.Error()
	default:
		event = l.Warn()
	}

	event.
		Err(err).
		Str("error_code", code).
		Int("status_code", status).
		Msg(message)

	response.Error(w, status, code, message)
}

// HandlePanicError logs a recovered panic with its stack and answers 500.
func HandlePanicError(ctx context.Context, w http.ResponseWriter, panicErr interface{}, stackTrace string) {
	logger.FromContext(ctx).Error().
		Interface("panic_error", panicErr).
		Str("panic_stack", stackTrace).
		Msg("Request panic")

	response.InternalError(w)
}

// LogValidationError logs validation failures at warn level.
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	d := zerolog.Dict()
	for field, msg := range fieldErrors {
		d = d.Str(field, msg)
	}
	logger.FromContext(ctx).Warn().
		Dict("validation_errors", d).
		Msg("Validation error")
}
