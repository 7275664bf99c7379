package neupass

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/neupass/pkg/httpx"
	"github.com/aussiebroadwan/neupass/pkg/slogx"
)

const (
	// DefaultRequestedWith is the X-Requested-With value the portals expect
	// from the mobile app.
	DefaultRequestedWith = "com.sunyt.testdemo"

	// DefaultAppVersion is the simulated client version sent as X-App-Version.
	DefaultAppVersion = "3.1.2"

	// DefaultUserAgent is the User-Agent sent on every hop.
	DefaultUserAgent = "NEUQRCode"

	// DefaultTimeout bounds each individual hop.
	DefaultTimeout = 10 * time.Second
)

// Client performs the individual protocol hops. It holds no credentials and no
// session state, so one Client can back any number of application clients.
type Client struct {
	Endpoints  Endpoints
	HTTPClient *http.Client

	RequestedWith string
	AppVersion    string
	UserAgent     string
}

// NewClient creates a Client for the given endpoints with the default
// outbound throttle and hop logging.
func NewClient(endpoints Endpoints) *Client {
	return &Client{
		Endpoints: endpoints,
		HTTPClient: &http.Client{
			Timeout:       DefaultTimeout,
			Transport:     NewTransport(httpx.DefaultOutboundLimit),
			CheckRedirect: noFollow,
		},
		RequestedWith: DefaultRequestedWith,
		AppVersion:    DefaultAppVersion,
		UserAgent:     DefaultUserAgent,
	}
}

// NewTransport builds the outbound chain: hop logging around a per-host
// throttle around http.DefaultTransport.
func NewTransport(limit httpx.RateLimitConfig) http.RoundTripper {
	return slogx.Transport(httpx.ThrottleByHost(http.DefaultTransport, limit))
}

// noFollow stops the client at the first response so 302s and their
// Set-Cookie headers can be inspected.
func noFollow(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// httpClient returns the configured client, turning redirects off when the
// caller supplied one without a redirect policy.
func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return &http.Client{Timeout: DefaultTimeout, CheckRedirect: noFollow}
	}
	if c.HTTPClient.CheckRedirect != nil {
		return c.HTTPClient
	}
	hc := *c.HTTPClient
	hc.CheckRedirect = noFollow
	return &hc
}

// ============================================================================
// Endpoints
// ============================================================================

// Endpoints holds the base URL of every host taking part in the flow.
type Endpoints struct {
	Pass      string // SSO ticket service, e.g. https://pass.neu.edu.cn
	Personal  string // personal portal, also hosts the SSO login endpoint
	ECode     string
	Assistant string
}

// DefaultEndpoints returns the production hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Pass:      "https://pass.neu.edu.cn",
		Personal:  "https://personal.neu.edu.cn",
		ECode:     "https://ecode.neu.edu.cn",
		Assistant: "https://aia.neu.edu.cn",
	}
}

// EndpointsAt points every host at the same base URL.
func EndpointsAt(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	return Endpoints{Pass: base, Personal: base, ECode: base, Assistant: base}
}

// SSOLoginURL is where credentials are exchanged for a portal ticket.
func (e Endpoints) SSOLoginURL() string {
	return e.Personal + "/prize/Front/Oauth/User/sso"
}

// ServiceTicketURL is the CAS login endpoint issuing service tickets.
func (e Endpoints) ServiceTicketURL() string {
	return e.Pass + "/tpass/login"
}

// ECodeLoginURL is both the ECode CAS callback and its app login endpoint.
func (e Endpoints) ECodeLoginURL() string {
	return e.ECode + "/ecode/api/sso/login"
}

// ECodeRedirectURL is where a successful ECode login finally redirects.
func (e Endpoints) ECodeRedirectURL() string {
	return e.ECode + "/ecode/#/"
}

func (e Endpoints) ECodeQRCodeURL() string {
	return e.ECode + "/ecode/api/qr-code"
}

func (e Endpoints) ECodeUserInfoURL() string {
	return e.ECode + "/ecode/api/user-info"
}

// PersonalCallbackURL is the personal portal CAS callback.
func (e Endpoints) PersonalCallbackURL() string {
	return e.Personal + "/portal/manage/common/cas_login/1?redirect=" + url.QueryEscape(e.Personal+"/portal")
}

func (e Endpoints) PersonalInfoURL() string {
	return e.Personal + "/portal/personal/frontend/data/info"
}

func (e Endpoints) PersonalDataItemsURL() string {
	return e.Personal + "/portal/personal/frontend/data/items?type=personal_data"
}

func (e Endpoints) PersonalDataDetailURL(id string) string {
	return e.Personal + "/portal/personal/frontend/data/detail?id=" + url.QueryEscape(id)
}

// AssistantCallbackURL is the assistant CAS callback.
func (e Endpoints) AssistantCallbackURL() string {
	return e.Assistant + "/common/actionCasLogin?redirect_url="
}

// AssistantURL joins an assistant API path and optional query.
func (e Endpoints) AssistantURL(path string, query url.Values) string {
	u := e.Assistant + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// withQuery appends key=value to rawURL, respecting an existing query.
func withQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}
