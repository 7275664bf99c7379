package neupass

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/neupass/pkg/slogx"
)

// ECodeClient drives the ECode app: login, QR code and identity lookups.
// Calls log in lazily and rebuild the session once when it has expired.
type ECodeClient struct {
	client  *Client
	tickets portalTickets

	mu      sync.Mutex
	session *AppSession
}

// NewECodeClient creates an ECodeClient reading credentials from store.
func NewECodeClient(client *Client, store CredentialStore) *ECodeClient {
	return &ECodeClient{
		client:  client,
		tickets: portalTickets{client: client, store: store},
	}
}

// Login establishes a new ECode session, replacing any existing one.
func (e *ECodeClient) Login(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.login(ctx)
}

func (e *ECodeClient) login(ctx context.Context) error {
	ctx = beginFlow(ctx, "ecode")
	e.session = nil

	var session AppSession
	err := e.tickets.withServiceTicket(ctx, e.client.Endpoints.ECodeLoginURL(), func(ticket ServiceTicket) error {
		s, err := e.client.NewECodeSession(ctx)
		if err != nil {
			return err
		}
		if err := e.client.LoginECode(ctx, s, ticket); err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return err
	}

	e.session = &session
	slogx.FromContext(ctx).Info("ecode session established")
	return nil
}

// Session returns the current session, if any.
func (e *ECodeClient) Session() (AppSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return AppSession{}, false
	}
	return *e.session, true
}

// RestoreSession installs a previously obtained session.
func (e *ECodeClient) RestoreSession(session AppSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session = &session
}

// QRCode fetches the current identity QR code.
func (e *ECodeClient) QRCode(ctx context.Context) (ECodeQRCode, error) {
	resp, err := ecodeCall[ListedResponse[ECodeQRCode]](ctx, e, e.client.Endpoints.ECodeQRCodeURL())
	if err != nil {
		return ECodeQRCode{}, err
	}
	code, ok := resp.First()
	if !ok {
		return ECodeQRCode{}, fmt.Errorf("qr code: %w", ErrEmptyResponse)
	}
	return code, nil
}

// UserInfo fetches the identity behind the QR code.
func (e *ECodeClient) UserInfo(ctx context.Context) (ECodeUserInfo, error) {
	resp, err := ecodeCall[ListedResponse[ECodeUserInfo]](ctx, e, e.client.Endpoints.ECodeUserInfoURL())
	if err != nil {
		return ECodeUserInfo{}, err
	}
	info, ok := resp.First()
	if !ok {
		return ECodeUserInfo{}, fmt.Errorf("ecode user info: %w", ErrEmptyResponse)
	}
	return info, nil
}

func ecodeCall[T any](ctx context.Context, e *ECodeClient, rawURL string) (T, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		if err := e.login(ctx); err != nil {
			var zero T
			return zero, err
		}
	}

	out, err := Request[T](ctx, e.client, *e.session, rawURL)
	if !errors.Is(err, ErrSessionExpired) {
		return out, err
	}

	slogx.FromContext(ctx).Info("ecode session expired, logging in again")
	if err := e.login(ctx); err != nil {
		var zero T
		return zero, err
	}
	return Request[T](ctx, e.client, *e.session, rawURL)
}
