package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "organlink/pkg/errors"
)

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler produces the same JSON error envelope. Internal causes are never
// echoed to callers.
func writeError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	message := "internal error"
	var de *pkgerrors.DomainError
	if errors.As(err, &de) && code != pkgerrors.CodeInternal {
		message = de.Message
	}
	writeJSON(w, pkgerrors.ToHTTPStatus(code), map[string]any{
		"ok":    false,
		"code":  string(code),
		"error": message,
	})
}
