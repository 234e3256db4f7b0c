package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/apperrors"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
)

type ErrorResponse struct {
	StatusCode int                 `json:"-"`
	ErrorCode  apperrors.ErrorCode `json:"error_code" example:"example_error_code"`
	Message    string              `json:"message" example:"message describing the error"`
	ReqID      string              `json:"-"`
}

// ProxyErrorResponse is the body returned by the /api/abillio routes when the upstream call fails
type ProxyErrorResponse struct {
	Error string `json:"error" example:"abillio status 404 - not found"`
}

func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode apperrors.ErrorCode, message string) {
	reqLogger := logger.ContextMiddlewareLogger(r.Context())
	requestID := middleware.GetReqID(r.Context())

	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	reqLogger.Log(r.Context(), level, "Request failed",
		slog.Int("status", statusCode),
		slog.String("error_code", string(errorCode)),
		slog.String("error_message", message),
	)

	errResponse := ErrorResponse{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		ReqID:      requestID,
	}

	dat, err := json.Marshal(errResponse)
	if err != nil {
		reqLogger.Error("error marshaling error response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_code":"internal_error","message":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(dat)
}

// RespondWithProxyError writes {"error": message} with status 500 - the contract of the proxy routes.
// The upstream status and kind are added to the request log rather than the response.
func RespondWithProxyError(w http.ResponseWriter, r *http.Request, err error) {
	attrs := []slog.Attr{slog.String("error", err.Error())}

	var apiErr *abillio.Error
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			slog.String("error_kind", string(apiErr.Kind)),
			slog.Int("upstream_status", apiErr.StatusCode),
		)
	}
	logger.ContextWithLogAttrs(r.Context(), attrs...)

	RespondWithJSON(w, http.StatusInternalServerError, ProxyErrorResponse{Error: err.Error()})
}

func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_code":"marshal_error","message":"Internal Server Error"}`))
		return
	}

	RespondWithRawJSON(w, status, data)
}

// RespondWithRawJSON writes an already encoded JSON document without re-encoding it
func RespondWithRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
