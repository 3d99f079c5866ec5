package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/models"
)

// Recovery turns a handler panic into the generic 500 envelope. The panic
// value and stack go to the log only. http.ErrAbortHandler is re-raised so
// net/http can abort the connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				RequestLogger(r.Context(), log).Error().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				models.NewInternalError(GetRequestID(r.Context()), "Internal server error").
					WithMessage("An unexpected error occurred").
					Write(w)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
