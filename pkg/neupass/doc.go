/*
Package neupass authenticates against the NEU unified SSO gateway and keeps
sessions with the portals behind it.

# Overview

Logging in to any campus app is a chain of hops:

 1. Credentials are exchanged for a portal ticket (the CASTGC cookie value).
 2. The portal ticket is exchanged for a single-use service ticket bound to one
    app callback URL.
 3. The app redeems the service ticket and hands out its own session cookies.
 4. Authenticated requests carry those cookies until the app stops accepting
    them.

Redirects are never followed. Every hop inspects the 302 itself, reading the
Location header and Set-Cookie values before anything else.

# Client vs Application Clients

The package is organized around two layers:

  - Client: the individual hops. It holds no credentials and no session state.
  - ECodeClient, PersonalClient, AssistantClient: one per app. They read
    credentials from a CredentialStore, cache the portal ticket there, log in
    lazily and recover from expired tickets and sessions.

Using the hops directly:

	client := neupass.NewClient(neupass.DefaultEndpoints())

	portal, err := client.LoginPortalTicket(ctx, studentID, password)
	ticket, err := client.LoginECodeTicket(ctx, portal)
	session, err := client.NewECodeSession(ctx)
	err = client.LoginECode(ctx, session, ticket)

	qr, err := neupass.Request[neupass.ListedResponse[neupass.ECodeQRCode]](
		ctx, client, session, client.Endpoints.ECodeQRCodeURL())

Using an application client:

	store := neupass.NewMemoryStore()
	_ = neupass.SaveCredentials(store, neupass.Credentials{StudentID: id, Password: pw})

	ecode := neupass.NewECodeClient(client, store)
	qr, err := ecode.QRCode(ctx)

# Rolling Sessions

The personal portal may rotate SESS_ID on any response, after which the old
value is rejected. RequestRolling therefore returns the successor session next
to the payload, and PersonalClient replaces its session after every call.

# Recovery

Application clients recover automatically in exactly two cases:

  - A ticket failure (ErrTicketFailed or ErrTicketExpired) during login: the
    portal ticket is renewed from the stored credentials and the login is
    repeated once with a fresh service ticket.
  - ErrSessionExpired on a request: the session is rebuilt by a new login and
    the request is repeated once.

Everything else, including ErrPasswordIncorrect and transport errors, is
returned to the caller.

# Error Handling

Protocol failures are *Error values compared with errors.Is:

	qr, err := ecode.QRCode(ctx)
	switch {
	case errors.Is(err, neupass.ErrPasswordIncorrect):
		// ask for new credentials
	case errors.Is(err, neupass.ErrRequestFailed):
		// portal unavailable
	}

ErrTicketExpired also matches ErrTicketFailed.

# Thread Safety

Client is safe for concurrent use. Each application client serializes its own
calls with a mutex, so a single instance can be shared. Different application
clients share only the CredentialStore.
*/
package neupass
