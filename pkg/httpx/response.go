package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tickets and sessions.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Redirect writes a bare 302 with the given Location and optional Set-Cookie
// values, the shape every SSO hop answers with.
func Redirect(w http.ResponseWriter, location string, cookies ...string) {
	NoCache(w)
	for _, c := range cookies {
		w.Header().Add("Set-Cookie", c)
	}
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(http.StatusFound)
}
