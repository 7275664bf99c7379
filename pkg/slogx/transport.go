package slogx

import (
	"net/http"
	"time"
)

// Transport wraps next so that every outbound request is logged through the
// logger carried by the request context. Only method, host and path are
// recorded: query strings and cookies carry tickets.
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next}
}

type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := FromContext(r.Context()).With(
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
	)

	resp, err := t.next.RoundTrip(r)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_hop_failed", "duration_ms", duration, "error", err)
		return nil, err
	}

	logger.Debug("http_hop",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
