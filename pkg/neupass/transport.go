package neupass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// response is a fully read HTTP response. Bodies are small JSON documents,
// reading them eagerly lets every hop close the connection before parsing.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// SetCookies returns every raw Set-Cookie header value.
func (r *response) SetCookies() []string {
	return r.Header.Values("Set-Cookie")
}

// Cookie returns the value of the first Set-Cookie header starting with
// prefix. The value is the text between the first '=' and the first ';'.
func (r *response) Cookie(prefix string) (string, bool) {
	for _, raw := range r.SetCookies() {
		if strings.HasPrefix(raw, prefix) {
			return cookieValue(raw), true
		}
	}
	return "", false
}

// Location returns the redirect target, empty when absent.
func (r *response) Location() string {
	return r.Header.Get("Location")
}

func (r *response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func cookieValue(raw string) string {
	pair, _, _ := strings.Cut(raw, ";")
	_, value, _ := strings.Cut(pair, "=")
	return value
}

// cookieHeader renders name/value pairs as a Cookie request header.
func cookieHeader(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, pairs[i]+"="+pairs[i+1])
	}
	return strings.Join(parts, "; ")
}

// do performs a single hop. Redirects are never followed.
func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Requested-With", c.RequestedWith)
	req.Header.Set("X-App-Version", c.AppVersion)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		// url.Error repeats the full URL, which carries tickets in its query.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("failed to send request to %s%s: %w", req.URL.Host, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func decodeJSON(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
