package neupass

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/neupass/pkg/httpx"
	"github.com/stretchr/testify/require"
)

// These walk the hops one by one against the fake portals.

func TestScenarioECodeEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFakeNEU(t)
	c := f.client()
	ctx := context.Background()

	portal, err := c.LoginPortalTicket(ctx, testStudentID, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, portal)

	ticket, err := c.LoginServiceTicket(ctx, portal, c.Endpoints.ECodeLoginURL())
	require.NoError(t, err)

	session, err := c.NewSession(ctx, c.Endpoints.ECodeLoginURL())
	require.NoError(t, err)

	require.NoError(t, c.LoginApp(ctx, session, ticket, c.Endpoints.ECodeLoginURL(), c.Endpoints.ECodeRedirectURL()))

	resp, err := Request[ListedResponse[ECodeQRCode]](ctx, c, session, c.Endpoints.ECodeQRCodeURL())
	require.NoError(t, err)
	qr, ok := resp.First()
	require.True(t, ok)
	require.Equal(t, "QR-PAYLOAD", qr.QRCode)
	require.Equal(t, int64(1700000060000), qr.QRInvalidTime)
}

func TestScenarioWrongPassword(t *testing.T) {
	t.Parallel()

	c, _ := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"code": 0, "result": []any{}, "msg": "bad"})
	})

	_, err := c.LoginPortalTicket(context.Background(), testStudentID, "nope")
	require.ErrorIs(t, err, ErrPasswordIncorrect)
}

func TestScenarioLoginRedirectMismatch(t *testing.T) {
	t.Parallel()

	c, _ := stubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("ticket") {
			httpx.Redirect(w, r.URL.Path)
			return
		}
		httpx.Redirect(w, "https://ecode.example/ecode/#/login")
	})

	session := AppSession{SessionID: "s-1", XSRFToken: "x-1"}
	err := c.LoginApp(context.Background(), session, "ST-1", c.Endpoints.ECodeLoginURL(), c.Endpoints.ECodeRedirectURL())
	require.ErrorIs(t, err, ErrTicketExpired)
}

func TestScenarioRollingSession(t *testing.T) {
	t.Parallel()

	f := newFakeNEU(t)
	f.setRotate(true)
	c := f.client()
	ctx := context.Background()

	portal, err := c.LoginPortalTicket(ctx, testStudentID, testPassword)
	require.NoError(t, err)
	ticket, err := c.LoginPersonalTicket(ctx, portal)
	require.NoError(t, err)
	old, err := c.LoginPersonalSession(ctx, ticket)
	require.NoError(t, err)

	info, next, err := RequestRolling[UserInfoOuter](ctx, c, old, c.Endpoints.PersonalInfoURL())
	require.NoError(t, err)
	require.Equal(t, testStudentID, info.Info.XGH)
	require.NotEqual(t, old.SessID, next.SessID)
	require.Equal(t, old.LC, next.LC)
	require.Equal(t, old.VL, next.VL)

	// The rotated-out SESS_ID is no longer accepted.
	_, _, err = RequestRolling[UserInfoOuter](ctx, c, old, c.Endpoints.PersonalInfoURL())
	require.ErrorIs(t, err, ErrSessionExpired)

	_, _, err = RequestRolling[PersonalDataIDs](ctx, c, next, c.Endpoints.PersonalDataItemsURL())
	require.NoError(t, err)
}
