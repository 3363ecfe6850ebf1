package httpinterface

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/walletdb/internal/core/domain"
)

type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// statusFromError maps the error kinds of the data layer to HTTP statuses.
func statusFromError(err error) int {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	switch domainErr.Kind {
	case domain.KindInvalidPassword:
		return http.StatusUnauthorized
	case domain.KindPasswordNotConfigured:
		return http.StatusPreconditionFailed
	case domain.KindDuplicateName:
		return http.StatusConflict
	case domain.KindNotImplemented:
		return http.StatusNotImplemented
	case domain.KindRecordNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	kind := "Internal"
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		kind = domainErr.Kind.String()
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Warn("request failed")
	}
	writeJSON(w, status, errorResponse{Kind: kind, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("failed to write response")
	}
}

func writeOK(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewGenericLocalError("invalid request body: %s", err)
	}
	return nil
}

type idResponse struct {
	ID string `json:"id"`
}

type countResponse struct {
	Count int `json:"count"`
}

func missingParam(name string) error {
	return domain.NewGenericLocalError("missing %s", name)
}
