package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/erazemk/consigna/internal/apperr"
)

type errorResponse struct {
	Error   string      `json:"error"`
	Kind    apperr.Kind `json:"kind"`
	Details any         `json:"details,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("encoding response")
		}
	}
}

// jsonError writes a JSON error response for err. Unexpected errors are
// logged with their full chain and reported without detail.
func jsonError(w http.ResponseWriter, r *http.Request, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Unexpected(err, "internal error")
	}

	resp := errorResponse{Error: typed.Message(), Kind: typed.Kind(), Details: typed.Details()}
	if typed.Kind() == apperr.KindUnexpected {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		resp = errorResponse{Error: "internal error", Kind: apperr.KindUnexpected}
	}
	jsonResponse(w, r, typed.Kind().HTTPStatus(), resp)
}

func unauthenticated(message string) *apperr.Error {
	return apperr.New(apperr.KindUnauthenticated, message)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.KindValidation, "invalid %s", name)
	}
	return id, nil
}
