package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

// writeServiceError maps the domain error taxonomy onto a status code. The
// description of expected errors is safe to show; anything else is logged
// and replaced with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	code, errCode := http.StatusInternalServerError, onboardsdk.ErrorCodeServerError

	switch {
	case errors.Is(err, domain.ErrConflict):
		code, errCode = http.StatusConflict, onboardsdk.ErrorCodeConflict
	case errors.Is(err, domain.ErrNotFound):
		code, errCode = http.StatusNotFound, onboardsdk.ErrorCodeNotFound
	case errors.Is(err, domain.ErrExpired):
		code, errCode = http.StatusBadRequest, onboardsdk.ErrorCodeExpired
	case errors.Is(err, domain.ErrAlreadyUsed):
		code, errCode = http.StatusBadRequest, onboardsdk.ErrorCodeAlreadyUsed
	case errors.Is(err, domain.ErrInvalid):
		code, errCode = http.StatusBadRequest, onboardsdk.ErrorCodeInvalidRequest
	case errors.Is(err, domain.ErrUnauthorized):
		code, errCode = http.StatusUnauthorized, onboardsdk.ErrorCodeUnauthorized
	}

	if code == http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error(op+" failed", "error", err)
		httpx.WriteJSON(w, code, onboardsdk.ErrorResponse{
			Error:            errCode,
			ErrorDescription: "The request could not be completed. Try again later.",
		})
		return
	}

	slogx.FromContext(r.Context()).Debug(op+" refused", "reason", err)
	httpx.WriteJSON(w, code, onboardsdk.ErrorResponse{Error: errCode, ErrorDescription: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, description string) {
	httpx.WriteJSON(w, http.StatusBadRequest, onboardsdk.ErrorResponse{
		Error:            onboardsdk.ErrorCodeInvalidRequest,
		ErrorDescription: description,
	})
}
