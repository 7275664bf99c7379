package neupass

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const serviceTicketMarker = "ticket="

// LoginPortalTicket exchanges credentials for a portal ticket at the SSO
// gateway.
func (c *Client) LoginPortalTicket(ctx context.Context, studentID, password string) (PortalTicket, error) {
	const op = "login portal ticket"

	form := url.Values{
		"username": {studentID},
		"password": {password},
	}

	resp, err := c.do(ctx, http.MethodPost, c.Endpoints.SSOLoginURL(), strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !resp.ok() {
		return "", opError(ErrRequestFailed, op, resp.StatusCode)
	}

	var body ssoLoginResponse
	if err := decodeJSON(resp.Body, &body); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if body.Code != ssoCodeSuccess {
		return "", opError(ErrPasswordIncorrect, op, 0).describe(body.Msg)
	}

	ticket, err := body.ticket()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if ticket == "" {
		return "", opError(ErrPasswordIncorrect, op, 0)
	}

	return ticket, nil
}

// LoginServiceTicket uses the portal ticket to obtain a single-use service
// ticket for callbackURL. The ticket is read from the redirect Location.
func (c *Client) LoginServiceTicket(ctx context.Context, portal PortalTicket, callbackURL string) (ServiceTicket, error) {
	const op = "login service ticket"

	if portal == "" {
		return "", opError(ErrTicketFailed, op, 0).describe("no portal ticket")
	}

	target := withQuery(c.Endpoints.ServiceTicketURL(), "service", callbackURL)
	resp, err := c.do(ctx, http.MethodGet, target, nil, map[string]string{
		"Cookie": cookieHeader("CASTGC", string(portal)),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode != http.StatusFound {
		return "", opError(ErrTicketFailed, op, resp.StatusCode)
	}

	_, ticket, found := strings.Cut(resp.Location(), serviceTicketMarker)
	if !found || ticket == "" {
		return "", opError(ErrTicketFailed, op, resp.StatusCode).describe("redirect carries no ticket")
	}

	return ServiceTicket(ticket), nil
}

// LoginECodeTicket obtains a service ticket for the ECode service.
func (c *Client) LoginECodeTicket(ctx context.Context, portal PortalTicket) (ServiceTicket, error) {
	return c.LoginServiceTicket(ctx, portal, c.Endpoints.ECodeLoginURL())
}

// LoginPersonalTicket obtains a service ticket for the personal portal.
func (c *Client) LoginPersonalTicket(ctx context.Context, portal PortalTicket) (ServiceTicket, error) {
	return c.LoginServiceTicket(ctx, portal, c.Endpoints.PersonalCallbackURL())
}

// LoginAssistantTicket obtains a service ticket for the assistant.
func (c *Client) LoginAssistantTicket(ctx context.Context, portal PortalTicket) (ServiceTicket, error) {
	return c.LoginServiceTicket(ctx, portal, c.Endpoints.AssistantCallbackURL())
}
