package neupass

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/aussiebroadwan/neupass/pkg/httpx"
)

const (
	testStudentID = "20240001"
	testPassword  = "correct-horse"
)

// fakeNEU imitates the SSO gateway and the three apps on one host. Tickets and
// sessions are tracked so tests can expire them and count the hops.
type fakeNEU struct {
	srv *httptest.Server

	mu        sync.Mutex
	seq       int
	studentID string
	password  string

	portals  map[string]bool   // issued CASTGC values
	services map[string]string // unused service ticket -> service URL

	ecodeSessions map[string]string // SESSION -> XSRF-TOKEN
	ecodeAuthed   map[string]bool

	personalSessID string
	rotate         bool

	vjuids map[string]string // cookie_vjuid_login -> service ticket

	hits       map[string]int
	lastForm   map[string]string
	lastMethod string
}

func newFakeNEU(t *testing.T) *fakeNEU {
	t.Helper()

	f := &fakeNEU{
		studentID:     testStudentID,
		password:      testPassword,
		portals:       map[string]bool{},
		services:      map[string]string{},
		ecodeSessions: map[string]string{},
		ecodeAuthed:   map[string]bool{},
		vjuids:        map[string]string{},
		hits:          map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/prize/Front/Oauth/User/sso", f.handleSSO)
	mux.HandleFunc("/tpass/login", f.handleServiceTicket)
	mux.HandleFunc("/ecode/api/sso/login", f.handleECodeLogin)
	mux.HandleFunc("/ecode/api/qr-code", f.ecodeOnly(func(w http.ResponseWriter) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"data": []any{map[string]any{"attributes": map[string]any{
				"qrCode": "QR-PAYLOAD", "createTime": 1700000000000, "qrInvalidTime": 1700000060000,
			}}},
		})
	}))
	mux.HandleFunc("/ecode/api/user-info", f.ecodeOnly(func(w http.ResponseWriter) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"data": []any{map[string]any{"attributes": map[string]any{
				"userCode": testStudentID, "userName": "Li Hua", "unitName": "Software College", "idType": "student",
			}}},
		})
	}))
	mux.HandleFunc("/portal/manage/common/cas_login/1", f.handlePersonalLogin)
	mux.HandleFunc("/portal/personal/frontend/data/info", f.personalOnly(func(r *http.Request) any {
		return map[string]any{"info": map[string]any{
			"uid": "u-1", "name": "Li Hua", "xgh": testStudentID, "identity": "student",
			"identity_id": "1", "sex": 1, "depart": "Software College", "mobile": "", "email": "",
			"organ": map[string]any{}, "organs": []any{}, "avatar": "https://img/1.png", "avatar_url": "",
			"time": "2024-09-01", "is_manager": false,
		}}
	}))
	mux.HandleFunc("/portal/personal/frontend/data/items", f.personalOnly(func(r *http.Request) any {
		return map[string]any{"data": []any{
			map[string]any{"key": "card_balance", "id": "101"},
			map[string]any{"key": "net_balance", "id": "102"},
			map[string]any{"key": "card_balance", "id": "999"},
		}}
	}))
	mux.HandleFunc("/portal/personal/frontend/data/detail", f.personalOnly(func(r *http.Request) any {
		switch r.URL.Query().Get("id") {
		case "101":
			return map[string]any{"data": map[string]any{"value": "12.50", "unit": "CNY"}}
		default:
			return map[string]any{"data": map[string]any{"value": 3}}
		}
	}))
	mux.HandleFunc("/common/actionCasLogin", f.handleAssistantLogin)
	mux.HandleFunc(AssistantNewSessionIDPath, f.assistantOnly(func(r *http.Request) any {
		return "session-42"
	}))
	mux.HandleFunc(AssistantSessionUpdatePath, f.assistantOnly(func(r *http.Request) any {
		return map[string]string{"status": "ok"}
	}))

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// client returns a Client pointed at the fake with throttling disabled.
func (f *fakeNEU) client() *Client {
	c := NewClient(EndpointsAt(f.srv.URL))
	c.HTTPClient.Transport = NewTransport(httpx.RateLimitConfig{})
	return c
}

func (f *fakeNEU) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeNEU) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[name]
}

// expirePortalTickets makes every issued portal ticket unknown to the gateway.
func (f *fakeNEU) expirePortalTickets() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portals = map[string]bool{}
}

// expireSessions ends every app session.
func (f *fakeNEU) expireSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ecodeAuthed = map[string]bool{}
	f.personalSessID = ""
	f.vjuids = map[string]string{}
}

func (f *fakeNEU) setRotate(rotate bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotate = rotate
}

// redeem consumes a service ticket issued for service.
func (f *fakeNEU) redeem(ticket, service string) bool {
	issued, ok := f.services[ticket]
	if !ok || issued != service {
		return false
	}
	delete(f.services, ticket)
	return true
}

func cookieOf(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (f *fakeNEU) handleSSO(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits["sso"]++

	if r.Method != http.MethodPost || r.ParseForm() != nil {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.PostForm.Get("username") != f.studentID || r.PostForm.Get("password") != f.password {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"code": 0, "result": []any{}, "msg": "wrong password"})
		return
	}

	tgt := f.next("TGT")
	f.portals[tgt] = true
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"code": 1, "result": map[string]any{"tgt": tgt}, "msg": "ok"})
}

func (f *fakeNEU) handleServiceTicket(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits["service_ticket"]++

	service := r.URL.Query().Get("service")
	if !f.portals[cookieOf(r, "CASTGC")] || service == "" {
		// The real gateway answers with its login page.
		w.WriteHeader(http.StatusOK)
		return
	}

	ticket := f.next("ST")
	f.services[ticket] = service
	sep := "?"
	if strings.Contains(service, "?") {
		sep = "&"
	}
	httpx.Redirect(w, service+sep+"ticket="+ticket)
}

func (f *fakeNEU) handleECodeLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	loginURL := f.srv.URL + "/ecode/api/sso/login"
	session := cookieOf(r, "SESSION")
	xsrf, known := f.ecodeSessions[session]

	switch {
	case !known:
		f.hits["ecode_session"]++
		id, token := f.next("SESSION"), f.next("XSRF")
		f.ecodeSessions[id] = token
		httpx.Redirect(w, f.srv.URL+"/tpass/login?service="+loginURL,
			"XSRF-TOKEN="+token+"; Path=/",
			"SESSION="+id+"; Path=/ecode; HttpOnly",
		)
	case r.Header.Get("X-XSRF-TOKEN") != xsrf:
		w.WriteHeader(http.StatusForbidden)
	case r.URL.Query().Has("ticket"):
		f.hits["ecode_ticket"]++
		if !f.redeem(r.URL.Query().Get("ticket"), loginURL) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.ecodeAuthed[session] = true
		httpx.Redirect(w, loginURL)
	case f.ecodeAuthed[session]:
		httpx.Redirect(w, cookieOf(r, "KC_REDIRECT"))
	default:
		httpx.Redirect(w, f.srv.URL+"/tpass/login?service="+loginURL)
	}
}

func (f *fakeNEU) ecodeOnly(write func(w http.ResponseWriter)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.hits[r.URL.Path]++

		session := cookieOf(r, "SESSION")
		if !f.ecodeAuthed[session] || r.Header.Get("X-XSRF-TOKEN") != f.ecodeSessions[session] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		write(w)
	}
}

func (f *fakeNEU) handlePersonalLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits["personal_login"]++

	callback := f.srv.URL + "/portal/manage/common/cas_login/1?redirect=" + url.QueryEscape(f.srv.URL+"/portal")
	if !f.redeem(r.URL.Query().Get("ticket"), callback) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.personalSessID = f.next("SESS")
	httpx.Redirect(w, f.srv.URL+"/portal",
		"CK_LC=lc-value; Path=/",
		"CK_VL=vl-value; Path=/",
		"SESS_ID="+f.personalSessID+"; Path=/; HttpOnly",
	)
}

func (f *fakeNEU) personalOnly(payload func(r *http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.hits[r.URL.Path]++

		if f.personalSessID == "" || cookieOf(r, "SESS_ID") != f.personalSessID ||
			cookieOf(r, "CK_LC") != "lc-value" || cookieOf(r, "CK_VL") != "vl-value" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if f.rotate {
			f.personalSessID = f.next("SESS")
			w.Header().Add("Set-Cookie", "SESS_ID="+f.personalSessID+"; Path=/; HttpOnly")
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"e": 0, "m": "", "d": payload(r)})
	}
}

func (f *fakeNEU) handleAssistantLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits["assistant_login"]++

	ticket := r.URL.Query().Get("ticket")
	if !f.redeem(ticket, f.srv.URL+"/common/actionCasLogin?redirect_url=") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	vjuid := f.next("VJ")
	f.vjuids[vjuid] = ticket
	httpx.Redirect(w, f.srv.URL+"/", "cookie_vjuid_login="+vjuid+"; Path=/")
}

func (f *fakeNEU) assistantOnly(payload func(r *http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.hits[r.URL.Path]++

		ticket, ok := f.vjuids[cookieOf(r, "cookie_vjuid_login")]
		if !ok || ticket != cookieOf(r, "st") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		f.lastMethod = r.Method
		f.lastForm = nil
		if r.Method == http.MethodPost {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.lastForm = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				f.lastForm[k] = v[0]
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"d": payload(r)})
	}
}

// seededStore returns a store holding the fake's credentials.
func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if err := SaveCredentials(store, Credentials{StudentID: testStudentID, Password: testPassword}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}
