package controllers

import (
	"encoding/json"
	"net/http"

	"vdi-fleet/backend/app/apperr"
	"vdi-fleet/backend/app/dto"
	"vdi-fleet/backend/global"
)

func respond(w http.ResponseWriter, status int, env dto.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func respondOK(w http.ResponseWriter, data any) {
	respond(w, http.StatusOK, dto.OK(data))
}

// respondErr maps the error taxonomy onto HTTP statuses inside the uniform
// envelope. Unclassified errors are logged and hidden behind a generic 500.
func respondErr(w http.ResponseWriter, err error) {
	switch {
	case apperr.IsNotFound(err):
		respond(w, http.StatusNotFound, dto.Fail(err.Error()))
	case apperr.IsConflict(err):
		respond(w, http.StatusConflict, dto.Fail(err.Error()))
	case apperr.IsInvalidInput(err):
		respond(w, http.StatusBadRequest, dto.Fail(err.Error()))
	default:
		global.Logger.Error().Err(err).Msg("internal error")
		respond(w, http.StatusInternalServerError, dto.Fail("internal error"))
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.InvalidInput("malformed request body: %v", err)
	}
	return nil
}
