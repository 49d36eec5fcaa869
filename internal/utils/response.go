package utils

import (
	"encoding/json"
	"net/http"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// FieldErrors renders a validation failure as a per-field error map.
func FieldErrors(w http.ResponseWriter, status int, fields map[string]string) {
	JSON(w, status, map[string]any{"error": "validation failed", "fields": fields})
}
