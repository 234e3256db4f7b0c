package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/apperrors"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
	"github.com/information-sharing-networks/abillio-demo/internal/onboarding"
	"github.com/information-sharing-networks/abillio-demo/internal/response"
)

type ValidationResponse struct {
	Valid  bool                    `json:"valid" example:"false"`
	Errors []onboarding.FieldError `json:"errors,omitempty"`
}

// ValidateStepHandler godoc
//
//	@Summary		Validate one onboarding step
//	@Description	Checks the submitted section (personal, address or payment) against the onboarding rules.
//	@Tags			onboarding
//
//	@Param			step	path		string	true	"onboarding step"	Enums(personal, address, payment)
//
//	@Success		200		{object}	handlers.ValidationResponse
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		404		{object}	response.ErrorResponse
//	@Failure		422		{object}	handlers.ValidationResponse
//
//	@Router			/api/onboarding/{step}/validate [post]
func (h *HandlerService) ValidateStepHandler(w http.ResponseWriter, r *http.Request) {
	step, err := onboarding.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		response.RespondWithError(w, r, http.StatusNotFound, apperrors.ErrCodeResourceNotFound, err.Error())
		return
	}

	body, ok := readJSONObject(w, r)
	if !ok {
		return
	}
	if body == nil {
		body = []byte("{}")
	}

	fieldErrors, err := onboarding.Validate(step, body)
	if err != nil {
		response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, err.Error())
		return
	}

	logger.ContextWithLogAttrs(r.Context(),
		slog.String("onboarding_step", string(step)),
		slog.Int("field_errors", len(fieldErrors)),
	)

	if len(fieldErrors) > 0 {
		response.RespondWithJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Valid: false, Errors: fieldErrors})
		return
	}
	response.RespondWithJSON(w, http.StatusOK, ValidationResponse{Valid: true})
}

// CreateFreelancerHandler godoc
//
//	@Summary		Submit a completed onboarding application
//	@Description	The body holds the three sections: {"personal": {...}, "address": {...}, "payment": {...}}.
//	@Description	When every section is valid the freelancer is created with a signed request to the abillio freelancers endpoint and the upstream JSON is returned unchanged.
//	@Tags			onboarding
//
//	@Success		200	{object}	any
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		422	{object}	handlers.ValidationResponse
//	@Failure		500	{object}	response.ProxyErrorResponse
//
//	@Router			/api/onboarding [post]
func (h *HandlerService) CreateFreelancerHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSONObject(w, r)
	if !ok {
		return
	}
	if body == nil {
		response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, "request body is required")
		return
	}

	fieldErrors, err := onboarding.ValidateApplication(body)
	if err != nil {
		if errors.Is(err, onboarding.ErrInvalidJSON) {
			response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, err.Error())
			return
		}
		response.RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeInternalError, err.Error())
		return
	}
	if len(fieldErrors) > 0 {
		logger.ContextWithLogAttrs(r.Context(), slog.Int("field_errors", len(fieldErrors)))
		response.RespondWithJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Valid: false, Errors: fieldErrors})
		return
	}

	payload, err := onboarding.FreelancerPayload(body)
	if err != nil {
		response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, err.Error())
		return
	}

	logger.ContextWithLogAttrs(r.Context(), slog.String("endpoint", abillio.EndpointFreelancers))

	result, err := abillio.CreateFreelancer(r.Context(), h.Abillio, payload)
	if err != nil {
		response.RespondWithProxyError(w, r, err)
		return
	}
	response.RespondWithRawJSON(w, http.StatusOK, result)
}
