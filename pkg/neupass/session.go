package neupass

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// appSessionLifetime is the nominal lifetime given to app sessions. The
// portals never state one; a non-200 response is what ends a session.
const appSessionLifetime = 99 * 24 * time.Hour

// AppSession is the cookie pair an app (ECode) hands out before login.
type AppSession struct {
	SessionID string
	XSRFToken string

	// ExpiresAt is advisory only.
	ExpiresAt time.Time
}

func (s AppSession) valid() bool {
	return s.SessionID != "" && s.XSRFToken != ""
}

func (s AppSession) headers(redirectURL string) map[string]string {
	pairs := []string{"SESSION", s.SessionID, "XSRF-TOKEN", s.XSRFToken}
	if redirectURL != "" {
		pairs = append(pairs, "KC_REDIRECT", redirectURL)
	}
	return map[string]string{
		"Cookie":       cookieHeader(pairs...),
		"X-XSRF-TOKEN": s.XSRFToken,
	}
}

// PersonalSession is the personal portal cookie triple. SessID rotates, so a
// session is treated as an immutable value and replaced after every call.
type PersonalSession struct {
	LC     string
	VL     string
	SessID string
}

func (s PersonalSession) valid() bool {
	return s.LC != "" && s.VL != "" && s.SessID != ""
}

func (s PersonalSession) headers() map[string]string {
	return map[string]string{
		"Cookie": cookieHeader("CK_LC", s.LC, "CK_VL", s.VL, "SESS_ID", s.SessID),
	}
}

// AssistantSession is the assistant login: the service ticket is resent as
// the "st" cookie next to the vjuid cookie.
type AssistantSession struct {
	Ticket ServiceTicket
	VJUID  string
}

func (s AssistantSession) valid() bool {
	return s.Ticket != "" && s.VJUID != ""
}

func (s AssistantSession) headers() map[string]string {
	return map[string]string{
		"Cookie": cookieHeader("cookie_vjuid_login", s.VJUID, "st", string(s.Ticket)),
	}
}

// NewSession fetches a fresh, unauthenticated app session from callbackURL.
func (c *Client) NewSession(ctx context.Context, callbackURL string) (AppSession, error) {
	const op = "new app session"

	resp, err := c.do(ctx, http.MethodGet, callbackURL, nil, nil)
	if err != nil {
		return AppSession{}, fmt.Errorf("%s: %w", op, err)
	}

	sessionID, okSession := resp.Cookie("SESSION")
	xsrf, okXSRF := resp.Cookie("XSRF-TOKEN")
	if !okSession || !okXSRF {
		return AppSession{}, opError(ErrTicketFailed, op, resp.StatusCode).describe("session cookies missing")
	}

	return AppSession{
		SessionID: sessionID,
		XSRFToken: xsrf,
		ExpiresAt: time.Now().Add(appSessionLifetime),
	}, nil
}

// NewECodeSession fetches a fresh ECode app session.
func (c *Client) NewECodeSession(ctx context.Context) (AppSession, error) {
	return c.NewSession(ctx, c.Endpoints.ECodeLoginURL())
}

// LoginApp binds ticket to session. The first hop presents the ticket, the
// second must redirect to redirectURL, which proves the login took.
func (c *Client) LoginApp(ctx context.Context, session AppSession, ticket ServiceTicket, loginURL, redirectURL string) error {
	const op = "login app"

	if !session.valid() || ticket == "" {
		return opError(ErrTicketFailed, op, 0).describe("session or ticket not set")
	}

	headers := session.headers(redirectURL)

	first, err := c.do(ctx, http.MethodGet, withQuery(loginURL, "ticket", string(ticket)), nil, headers)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if first.StatusCode != http.StatusFound {
		return opError(ErrTicketExpired, op, first.StatusCode)
	}

	second, err := c.do(ctx, http.MethodGet, loginURL, nil, headers)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if second.StatusCode != http.StatusFound {
		return opError(ErrTicketExpired, op, second.StatusCode)
	}
	if second.Location() != redirectURL {
		return opError(ErrTicketExpired, op, second.StatusCode).describe("unexpected login redirect")
	}

	return nil
}

// LoginECode binds ticket to an ECode session.
func (c *Client) LoginECode(ctx context.Context, session AppSession, ticket ServiceTicket) error {
	return c.LoginApp(ctx, session, ticket, c.Endpoints.ECodeLoginURL(), c.Endpoints.ECodeRedirectURL())
}

// LoginPersonalSession redeems ticket at the personal portal CAS callback.
func (c *Client) LoginPersonalSession(ctx context.Context, ticket ServiceTicket) (PersonalSession, error) {
	const op = "login personal session"

	if ticket == "" {
		return PersonalSession{}, opError(ErrTicketFailed, op, 0).describe("no service ticket")
	}

	resp, err := c.do(ctx, http.MethodGet, withQuery(c.Endpoints.PersonalCallbackURL(), "ticket", string(ticket)), nil, nil)
	if err != nil {
		return PersonalSession{}, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusFound {
		return PersonalSession{}, opError(ErrTicketExpired, op, resp.StatusCode)
	}

	lc, okLC := resp.Cookie("CK_LC")
	vl, okVL := resp.Cookie("CK_VL")
	sessID, okSess := resp.Cookie("SESS_ID")
	if !okLC || !okVL || !okSess {
		return PersonalSession{}, opError(ErrTicketExpired, op, resp.StatusCode).describe("session cookies missing")
	}

	return PersonalSession{LC: lc, VL: vl, SessID: sessID}, nil
}

// LoginAssistantSession redeems ticket at the assistant CAS callback.
func (c *Client) LoginAssistantSession(ctx context.Context, ticket ServiceTicket) (AssistantSession, error) {
	const op = "login assistant session"

	if ticket == "" {
		return AssistantSession{}, opError(ErrTicketFailed, op, 0).describe("no service ticket")
	}

	resp, err := c.do(ctx, http.MethodGet, withQuery(c.Endpoints.AssistantCallbackURL(), "ticket", string(ticket)), nil, nil)
	if err != nil {
		return AssistantSession{}, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusFound {
		return AssistantSession{}, opError(ErrRequestFailed, op, resp.StatusCode)
	}

	vjuid, ok := resp.Cookie("cookie_vjuid_login")
	if !ok {
		return AssistantSession{}, opError(ErrTicketFailed, op, resp.StatusCode).describe("vjuid cookie missing")
	}

	return AssistantSession{Ticket: ticket, VJUID: vjuid}, nil
}
