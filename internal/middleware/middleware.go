package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jub0bs/cors"
	"golang.org/x/time/rate"

	"github.com/information-sharing-networks/abillio-demo/internal/apperrors"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
	"github.com/information-sharing-networks/abillio-demo/internal/response"
)

// CORS returns a CORS middleware using the provided pre-built middleware instance.
func CORS(middleware *cors.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return middleware.Wrap(next)
	}
}

func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			w.Header().Set("X-Content-Type-Options", "nosniff")

			// for legacy support
			w.Header().Set("X-Frame-Options", "DENY")

			// highlighted code snippets use inline styles
			w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; frame-ancestors 'none';")

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if environment == "prod" || environment == "staging" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestSizeLimit limits the size of request bodies and adds the limit as a header for client awareness
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			w.Header().Set("X-Max-Request-Size", strconv.FormatInt(maxBytes, 10))

			// Check Content-Length header first (if present)
			if r.ContentLength > maxBytes {
				logger.ContextWithLogAttrs(r.Context(),
					slog.Int64("content_length", r.ContentLength),
					slog.Int64("max_bytes", maxBytes),
				)

				errorMsg := fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes)
				response.RespondWithError(w, r, http.StatusRequestEntityTooLarge,
					apperrors.ErrCodeRequestTooLarge, errorMsg)
				return
			}

			// bodies without a Content-Length are caught by the handler that decodes them
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per second across all clients.
// Each proxied request costs an upstream call, so the limit protects the API quota as well as this server.
func RateLimit(requestsPerSecond int32, burst int32) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				response.RespondWithError(w, r, http.StatusTooManyRequests,
					apperrors.ErrCodeRateLimitExceeded, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
