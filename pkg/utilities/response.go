package utilities

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// WriteInternal writes the generic 500 body. err's text is only exposed when
// showDetail is set (non-production).
func WriteInternal(w http.ResponseWriter, err error, showDetail bool) {
	msg := "Something went wrong"
	if showDetail && err != nil {
		msg = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Internal server error",
		"message": msg,
	})
}
