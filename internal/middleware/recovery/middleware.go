package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"travelsec/internal/middleware"
	"travelsec/pkg/errors"
)

// Config holds recovery middleware configuration
type Config struct {
	// StackTrace enables stack trace logging
	StackTrace bool
	// PanicHandler is called when a panic occurs (optional)
	PanicHandler func(ctx context.Context, recovered interface{}, stack []byte)
}

// Middleware creates panic recovery middleware
func Middleware(config Config, logger *slog.Logger) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				logger.Error("panic recovered",
					"panic", fmt.Sprintf("%v", rec),
					"path", r.URL.Path,
					"method", r.Method,
				)
				if config.StackTrace {
					logger.Error("stack trace", "stack", string(stack))
				}
				if config.PanicHandler != nil {
					config.PanicHandler(r.Context(), rec, stack)
				}

				middleware.WriteError(w, logger, errors.NewError(errors.ErrorTypeInternal, "Internal server error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Default creates recovery middleware with default configuration
func Default(logger *slog.Logger) middleware.Middleware {
	return Middleware(Config{
		StackTrace: true,
	}, logger)
}
