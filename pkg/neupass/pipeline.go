package neupass

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/aussiebroadwan/neupass/pkg/cryptox"
)

// formBoundaryPrefix starts every multipart boundary sent to the assistant.
const formBoundaryPrefix = "----NEUPassFormBoundary"

// Request performs an authenticated GET against an app (ECode) and decodes
// the body into T. Anything but 200 means the session is gone.
func Request[T any](ctx context.Context, c *Client, session AppSession, rawURL string) (T, error) {
	const op = "app request"
	var out T

	if !session.valid() {
		return out, opError(ErrTicketFailed, op, 0).describe("app session not established")
	}

	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, session.headers(""))
	if err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, opError(ErrSessionExpired, op, resp.StatusCode)
	}

	if err := decodeJSON(resp.Body, &out); err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// RequestRolling performs an authenticated GET against the personal portal.
// It returns the envelope payload and the session to use next: the portal may
// rotate SESS_ID on any response, and the old value stops working once it has.
func RequestRolling[T any](ctx context.Context, c *Client, session PersonalSession, rawURL string) (T, PersonalSession, error) {
	const op = "personal request"
	var out T

	if !session.valid() {
		return out, session, opError(ErrTicketFailed, op, 0).describe("personal session not established")
	}

	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, session.headers())
	if err != nil {
		return out, session, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, session, opError(ErrSessionExpired, op, resp.StatusCode)
	}

	var envelope PersonalResponse[T]
	if err := decodeJSON(resp.Body, &envelope); err != nil {
		return out, session, fmt.Errorf("%s: %w", op, err)
	}

	next := session
	if sessID, ok := resp.Cookie("SESS_ID"); ok && sessID != "" {
		next.SessID = sessID
	}

	return envelope.D, next, nil
}

// RequestForm performs an authenticated assistant call. A non-empty form is
// sent as a multipart POST, otherwise the call is a plain GET.
func RequestForm[T any](ctx context.Context, c *Client, session AssistantSession, rawURL string, form map[string]string) (T, error) {
	const op = "assistant request"
	var out T

	if !session.valid() {
		return out, opError(ErrTicketFailed, op, 0).describe("assistant not logged in")
	}

	method := http.MethodGet
	headers := session.headers()
	var body io.Reader

	if len(form) > 0 {
		buf, contentType, err := encodeMultipart(form)
		if err != nil {
			return out, fmt.Errorf("%s: %w", op, err)
		}
		method = http.MethodPost
		headers["Content-Type"] = contentType
		body = buf
	}

	resp, err := c.do(ctx, method, rawURL, body, headers)
	if err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, opError(ErrSessionExpired, op, resp.StatusCode)
	}

	var envelope AssistantResponse[T]
	if err := decodeJSON(resp.Body, &envelope); err != nil {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	return envelope.D, nil
}

// encodeMultipart writes form fields in key order.
func encodeMultipart(form map[string]string) (*bytes.Buffer, string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize96)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate form boundary: %w", err)
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.SetBoundary(formBoundaryPrefix + token); err != nil {
		return nil, "", fmt.Errorf("failed to set form boundary: %w", err)
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := w.WriteField(k, form[k]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %q: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return buf, w.FormDataContentType(), nil
}
