package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/quentinrf/smartband-edge/internal/domain"
)

const internalErrorDetail = "Internal server error"

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeJSON(w, r, status, errorResponse{Detail: detail})
}

// writeError maps domain errors onto status codes. Storage causes are
// logged but never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeDetail(w, r, http.StatusBadRequest, verr.Error())
		return
	}

	hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	writeDetail(w, r, http.StatusInternalServerError, internalErrorDetail)
}
