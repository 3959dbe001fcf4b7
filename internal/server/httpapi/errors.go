package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

const (
	msgInvalidEmail     = "invalid email"
	msgUsernameExists   = "Username already exists"
	msgEmailExists      = "Email already exists"
	msgPasswordTooShort = "Password should be at least 8 characters long"
	msgNoFile           = "No file uploaded"
	msgInvalidFileType  = "Invalid file type"
	msgFileTooLarge     = "File too large"
	msgNotFound         = "File not found"
	msgForbidden        = "Forbidden"
	msgConflict         = "File already exists"
	msgUnauthorized     = "Unauthorized"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to a status code and a short message.
// Anything unclassified is internal.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, msgFileTooLarge
	case errors.Is(err, common.ErrorInternal):
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	case errors.Is(err, common.ErrInvalidEmail):
		return http.StatusBadRequest, msgInvalidEmail
	case errors.Is(err, common.ErrUsernameExists):
		return http.StatusBadRequest, msgUsernameExists
	case errors.Is(err, common.ErrEmailExists):
		return http.StatusBadRequest, msgEmailExists
	case errors.Is(err, common.ErrPasswordTooShort):
		return http.StatusBadRequest, msgPasswordTooShort
	case errors.Is(err, common.ErrInvalidFileType):
		return http.StatusBadRequest, msgInvalidFileType
	case errors.Is(err, common.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, msgConflict
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

// fail writes the mapped error and logs internal ones with detail.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "route", routePattern(r), "error", err)
	}
	writeError(w, status, msg)
}
