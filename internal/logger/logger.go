// the logger package configures slog for the demo server and provides the per-request logging middleware.
package logger

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
)

type requestRecordKey struct{}

// requestRecord is created by RequestLogging for every logged request.
// Handlers reach it through the context to log immediately or to annotate the completion line.
type requestRecord struct {
	logger *slog.Logger

	mu    sync.Mutex
	attrs []slog.Attr
}

func recordFrom(ctx context.Context) *requestRecord {
	rec, _ := ctx.Value(requestRecordKey{}).(*requestRecord)
	return rec
}

// ContextWithLogAttrs attaches attrs to the "request completed" line written by RequestLogging,
// e.g. the upstream endpoint a proxy call went to or the kind of error it failed with.
// The context is returned unchanged so calls can be chained.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	rec := recordFrom(ctx)
	if rec == nil {
		slog.Warn("log attributes dropped: request was not wrapped by RequestLogging")
		return ctx
	}
	rec.mu.Lock()
	rec.attrs = append(rec.attrs, attrs...)
	rec.mu.Unlock()
	return ctx
}

// ContextLogAttrs returns a copy of the attributes collected so far for the request
func ContextLogAttrs(ctx context.Context) []slog.Attr {
	rec := recordFrom(ctx)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]slog.Attr(nil), rec.attrs...)
}

// ContextMiddlewareLogger returns a logger tagged with the request id, for lines that
// should be written straight away rather than folded into the completion line.
// Outside a logged request it is slog.Default().
func ContextMiddlewareLogger(ctx context.Context) *slog.Logger {
	if rec := recordFrom(ctx); rec != nil {
		return rec.logger
	}
	return slog.Default()
}

// ParseLogLevel maps LOG_LEVEL to a slog level. Unrecognised values mean debug.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// InitLogger returns a tint handler on stderr in dev and a JSON handler on stdout elsewhere
func InitLogger(logLevel slog.Level, environment string) *slog.Logger {
	if environment != "dev" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))
}

// component returns the part of the site a request belongs to
func component(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/abillio/"):
		return "proxy"
	case strings.HasPrefix(path, "/api/"):
		return "api"
	case strings.HasPrefix(path, "/static/"):
		return "static"
	default:
		return "ui"
	}
}

// levelFor picks the completion line level: errors for 5xx, warnings for 4xx
func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogging writes one "request completed" line per request with the status, timing,
// size and any attributes handlers added with ContextWithLogAttrs.
// Liveness checks under /health/ are not logged. Must run after chi's RequestID middleware.
func RequestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			rec := &requestRecord{
				logger: logger.With(
					slog.String("type", "middleware"),
					slog.String("request_id", requestID),
				),
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestRecordKey{}, rec)))

			attrs := []slog.Attr{
				slog.String("type", "HTTP"),
				slog.Int("status", ww.Status()),
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("component", component(r.URL.Path)),
			}
			rec.mu.Lock()
			attrs = append(attrs, rec.attrs...)
			rec.mu.Unlock()
			attrs = append(attrs,
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
			)

			logger.LogAttrs(r.Context(), levelFor(ww.Status()), "request completed", attrs...)
		})
	}
}
