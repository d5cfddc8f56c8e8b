package handlers

import (
	"errors"
	"net/http"

	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/services"
	"github.com/seking31/tms-server/validation"
	"github.com/sirupsen/logrus"
)

type apiError struct {
	Code    int
	Message string
}

// translateError maps validation and store failures to a status and the
// message shown to the caller. notFound is the route specific 404 text.
func translateError(err error, notFound string) apiError {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return apiError{Code: http.StatusBadRequest, Message: verr.Error()}
	case errors.Is(err, services.ErrInvalidID):
		return apiError{Code: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, services.ErrMissingSearchTerm):
		return apiError{Code: http.StatusBadRequest, Message: "Missing search term"}
	case errors.Is(err, services.ErrNotFound):
		return apiError{Code: http.StatusNotFound, Message: notFound}
	default:
		return apiError{Code: http.StatusInternalServerError, Message: "Server error"}
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	apiErr := translateError(err, notFound)
	entry := logging.Logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": apiErr.Code,
	})
	if apiErr.Code >= http.StatusInternalServerError {
		entry.Errorf("Event ID: REQUEST_FAILED, Description: %v", err)
	} else {
		entry.Debugf("Event ID: REQUEST_REJECTED, Description: %v", err)
	}
	writeJSON(w, apiErr.Code, messageResponse{Message: apiErr.Message})
}
