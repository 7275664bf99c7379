package neupass

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/neupass/pkg/idx"
	"github.com/aussiebroadwan/neupass/pkg/slogx"
)

// portalTickets resolves the portal ticket from the store, logging in when
// there is none usable, and drives the one-shot re-login on ticket failure.
type portalTickets struct {
	client *Client
	store  CredentialStore
}

// resolve returns the cached portal ticket unless reLogin is set, no ticket is
// cached, or the cached one was issued for other credentials.
func (p portalTickets) resolve(ctx context.Context, reLogin bool) (PortalTicket, error) {
	const op = "resolve portal ticket"
	log := slogx.FromContext(ctx)

	creds, ok := LoadCredentials(p.store)
	if !ok {
		return "", opError(ErrPasswordIncorrect, op, 0).describe("no stored credentials")
	}
	owner := creds.fingerprint()

	if !reLogin {
		cached, _ := p.store.Get(KeyPortalTicket)
		cachedOwner, _ := p.store.Get(KeyPortalTicketOwner)
		switch {
		case cached == "":
			log.Debug("no cached portal ticket")
		case cachedOwner != owner:
			log.Info("cached portal ticket belongs to other credentials")
		default:
			log.Debug("using cached portal ticket")
			return PortalTicket(cached), nil
		}
	}

	ticket, err := p.client.LoginPortalTicket(ctx, creds.StudentID, creds.Password)
	if err != nil {
		return "", err
	}

	if err := p.store.Put(KeyPortalTicket, string(ticket)); err != nil {
		return "", fmt.Errorf("failed to cache portal ticket: %w", err)
	}
	if err := p.store.Put(KeyPortalTicketOwner, owner); err != nil {
		return "", fmt.Errorf("failed to cache portal ticket owner: %w", err)
	}

	log.Info("portal ticket issued")
	return ticket, nil
}

// withServiceTicket obtains a fresh service ticket for callbackURL and hands
// it to fn. When either step fails with a ticket error the portal ticket is
// renewed from the credentials and the whole attempt runs once more.
func (p portalTickets) withServiceTicket(ctx context.Context, callbackURL string, fn func(ServiceTicket) error) error {
	err := p.attempt(ctx, callbackURL, false, fn)
	if err == nil || !errors.Is(err, ErrTicketFailed) {
		return err
	}

	slogx.FromContext(ctx).Warn("ticket rejected, renewing portal ticket", "error", err)
	return p.attempt(ctx, callbackURL, true, fn)
}

func (p portalTickets) attempt(ctx context.Context, callbackURL string, reLogin bool, fn func(ServiceTicket) error) error {
	portal, err := p.resolve(ctx, reLogin)
	if err != nil {
		return err
	}

	ticket, err := p.client.LoginServiceTicket(ctx, portal, callbackURL)
	if err != nil {
		return err
	}

	return fn(ticket)
}

// beginFlow tags ctx with a new flow id so all hops of one login share it.
func beginFlow(ctx context.Context, app string) context.Context {
	ctx = slogx.WithFlowID(ctx, idx.New())
	log := slogx.FromContext(ctx).With("app", app)
	return slogx.WithContext(ctx, log)
}
