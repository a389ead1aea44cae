package proxy

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the error shape for every non-feed endpoint.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	cacheShort   = "public, max-age=10, s-maxage=10"
	cacheNoStore = "no-cache, no-store, must-revalidate"
)

func writeJSON(w http.ResponseWriter, status int, cacheControl string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, cacheNoStore, resp)
}
