package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"rollcall/internal/identity"
	"rollcall/internal/service"
	"rollcall/internal/validation"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondWithMessage(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, messageResponse{Message: message})
}

// respondWithError writes an error body. When err is set it is logged with
// logMsg, or userMsg when logMsg is empty.
func respondWithError(w http.ResponseWriter, status int, kind, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		slog.Error(logMsg, "error", err)
	}
	respondWithJSON(w, status, errorResponse{Error: kind, Message: userMsg})
}

// respondWithServiceError maps an error from the service layer to its kind.
// Anything unclassified is a server error and its cause is only logged.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve validation.Error
	switch {
	case errors.As(err, &ve):
		respondWithError(w, http.StatusBadRequest, KindValidation, ve.Error(), "", nil)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, KindNotFound, err.Error(), "", nil)
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, KindForbidden, err.Error(), "", nil)
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, KindInvalidInput, err.Error(), "", nil)
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrMissingToken):
		respondWithError(w, http.StatusUnauthorized, KindUnauthorized, ErrUnauthorized, "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, KindServerError, ErrInternalServerError,
			"Request failed: "+r.Method+" "+r.URL.Path, err)
	}
}

// decodeJSON reads a size-limited JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, KindInvalidInput, ErrInvalidJSON, "", nil)
		return false
	}
	return true
}
