package handlers

import (
	"net/http"

	"github.com/information-sharing-networks/abillio-demo/internal/response"
	"github.com/information-sharing-networks/abillio-demo/internal/version"
)

// LivenessHandler godoc
//
//	@Summary		Liveness Check
//	@Description	Check if the demo http service is alive and responding. The abillio API is not called.
//	@Tags			Health
//	@Produce		plain
//
//	@Success		200	{string}	string	"OK - Service is alive"
//
//	@Router			/health/live [get]
func (h *HandlerService) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// VersionHandler godoc
//
//	@Summary		Get version
//	@Description	Returns the current build details
//	@Tags			Health
//
//	@Success		200	{object}	version.Info
//
//	@Router			/version [get]
func (h *HandlerService) VersionHandler(w http.ResponseWriter, r *http.Request) {
	response.RespondWithJSON(w, http.StatusOK, version.Get())
}
