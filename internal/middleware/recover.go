package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/echoapp/echo-rewards/internal/pkg/errorhandler"
	"github.com/echoapp/echo-rewards/internal/pkg/metrics"
)

// Recover turns a handler panic into a 500 and counts it.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				metrics.RecordFailure("panic")
				errorhandler.HandlePanicError(r.Context(), w, rec, string(debug.Stack()))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
