package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
)

// HandlerService holds the dependencies shared by the page, proxy and onboarding handlers
type HandlerService struct {
	// Abillio signs and sends the upstream requests. Tests substitute a fake.
	Abillio         abillio.Requester
	DefaultLanguage string
	Environment     string
	// link to the API documentation in the page header (hidden when empty)
	DocsURL string
}

// renderPage writes the page component. Rendering failures are logged - the status has already been sent.
func (h *HandlerService) renderPage(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := component.Render(r.Context(), w); err != nil {
		reqLogger := logger.ContextMiddlewareLogger(r.Context())
		reqLogger.Error("Failed to render page", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
}

// userMessage returns the text shown in the error alert
func userMessage(err error) string {
	var apiErr *abillio.Error
	if errors.As(err, &apiErr) {
		return apiErr.UserError()
	}
	return "An error occurred. Please try again."
}
