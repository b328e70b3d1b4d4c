package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// kindStatus maps circulation failure kinds to HTTP status codes.
var kindStatus = map[circulation.Kind]int{
	circulation.KindValidation:      http.StatusBadRequest,
	circulation.KindNotFound:        http.StatusNotFound,
	circulation.KindInvalidState:    http.StatusConflict,
	circulation.KindDataUnavailable: http.StatusServiceUnavailable,
}

// engineError writes a circulation failure. Storage failures are logged with
// their cause; rejected requests are logged as warnings.
func engineError(w http.ResponseWriter, r *http.Request, err error, action string) {
	e, ok := circulation.AsError(err)
	if !ok {
		slog.Error(action+" failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	attrs := []any{"kind", e.Kind.String(), "error", err}
	if claims := GetClaims(r.Context()); claims != nil {
		attrs = append(attrs, "admin", claims.Username)
	}
	if e.Kind == circulation.KindDataUnavailable {
		slog.Error(action+" failed", attrs...)
	} else {
		slog.Warn(action+" rejected", attrs...)
	}
	jsonError(w, status, e.Message())
}

// storeError writes the response for a failed catalogue write.
func storeError(w http.ResponseWriter, err error, action, conflictMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		jsonError(w, http.StatusConflict, conflictMsg)
	default:
		slog.Error(action+" failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
