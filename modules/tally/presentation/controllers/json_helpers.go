package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/vtlabs/tallysync/pkg/serrors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps the structured error taxonomy onto HTTP statuses.
// Errors without a code are internal.
func writeError(w http.ResponseWriter, err error) {
	code := serrors.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case serrors.CodeNotFound:
		status = http.StatusNotFound
	case serrors.CodeValidation:
		status = http.StatusUnprocessableEntity
	case serrors.CodeConstraintViolation, serrors.CodeConflict:
		status = http.StatusConflict
	case serrors.CodeSourceUnavailable:
		status = http.StatusBadGateway
	case "":
		code = "INTERNAL_SERVER_ERROR"
	}
	writeJSON(w, status, apiError{Code: code, Message: err.Error()})
}
