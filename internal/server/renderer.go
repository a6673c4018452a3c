package server

import (
	"encoding/json"
	"net/http"
)

// Renderer writes API responses.
type Renderer interface {
	RenderJSON(w http.ResponseWriter, status int, v interface{}) error
	RenderError(w http.ResponseWriter, status int, message string) error
	RenderHealth(w http.ResponseWriter) error
}

// JSONRenderer implements Renderer for JSON responses.
type JSONRenderer struct{}

// NewJSONRenderer creates a new JSON renderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) RenderJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// RenderError writes {"error": message}.
func (r *JSONRenderer) RenderError(w http.ResponseWriter, status int, message string) error {
	return r.RenderJSON(w, status, map[string]string{"error": message})
}

func (r *JSONRenderer) RenderHealth(w http.ResponseWriter) error {
	return r.RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
