package neupass

import (
	"context"
	"errors"
	"sync"

	"github.com/aussiebroadwan/neupass/pkg/slogx"
)

// PersonalClient drives the personal data portal. Its session rolls forward
// after every call.
type PersonalClient struct {
	client  *Client
	tickets portalTickets

	mu      sync.Mutex
	session *PersonalSession
}

// NewPersonalClient creates a PersonalClient reading credentials from store.
func NewPersonalClient(client *Client, store CredentialStore) *PersonalClient {
	return &PersonalClient{
		client:  client,
		tickets: portalTickets{client: client, store: store},
	}
}

// Login establishes a new personal portal session.
func (p *PersonalClient) Login(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.login(ctx)
}

func (p *PersonalClient) login(ctx context.Context) error {
	ctx = beginFlow(ctx, "personal")
	p.session = nil

	var session PersonalSession
	err := p.tickets.withServiceTicket(ctx, p.client.Endpoints.PersonalCallbackURL(), func(ticket ServiceTicket) error {
		s, err := p.client.LoginPersonalSession(ctx, ticket)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return err
	}

	p.session = &session
	slogx.FromContext(ctx).Info("personal session established")
	return nil
}

// Session returns the latest session, including any rotated SESS_ID.
func (p *PersonalClient) Session() (PersonalSession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return PersonalSession{}, false
	}
	return *p.session, true
}

// RestoreSession installs a previously obtained session.
func (p *PersonalClient) RestoreSession(session PersonalSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = &session
}

// UserInfo fetches the portal profile.
func (p *PersonalClient) UserInfo(ctx context.Context) (UserInfo, error) {
	out, err := personalCall[UserInfoOuter](ctx, p, p.client.Endpoints.PersonalInfoURL())
	if err != nil {
		return UserInfo{}, err
	}
	return out.Info, nil
}

// DataIDs lists the available personal data keys and their detail ids.
func (p *PersonalClient) DataIDs(ctx context.Context) ([]PersonalDataID, error) {
	out, err := personalCall[PersonalDataIDs](ctx, p, p.client.Endpoints.PersonalDataItemsURL())
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// DataItem fetches the value stored under key, resolving it through ids.
// An unknown key fails with ErrKeyNotFound before any request is made.
func (p *PersonalClient) DataItem(ctx context.Context, ids []PersonalDataID, key string) (PersonalDataItem, error) {
	id, err := LookupDataID(ids, key)
	if err != nil {
		return PersonalDataItem{}, err
	}

	out, err := personalCall[PersonalDataItemOuter](ctx, p, p.client.Endpoints.PersonalDataDetailURL(id))
	if err != nil {
		return PersonalDataItem{}, err
	}
	return out.Data, nil
}

// LookupDataID returns the id of the first entry carrying key.
func LookupDataID(ids []PersonalDataID, key string) (string, error) {
	for _, item := range ids {
		if item.Key == key {
			return item.ID, nil
		}
	}
	return "", ErrKeyNotFound
}

func personalCall[T any](ctx context.Context, p *PersonalClient, rawURL string) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		if err := p.login(ctx); err != nil {
			var zero T
			return zero, err
		}
	}

	out, next, err := RequestRolling[T](ctx, p.client, *p.session, rawURL)
	if errors.Is(err, ErrSessionExpired) {
		slogx.FromContext(ctx).Info("personal session expired, logging in again")
		if err := p.login(ctx); err != nil {
			var zero T
			return zero, err
		}
		out, next, err = RequestRolling[T](ctx, p.client, *p.session, rawURL)
	}
	if err != nil {
		return out, err
	}

	p.session = &next
	return out, nil
}
