package portal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"portalproxy-backend/internal/components/chrono"
	"portalproxy-backend/internal/components/telemetry"
)

const loginPageTemplate = `<html>
<head><script>var portal = {appName: '%s'};</script></head>
<body>
<form name="loginform" method="post" action="../../verify.jsp?nonBrowser=true">
  <input type="hidden" name="appName" value="%s">
  <input type="hidden" name="portalUrl" value="portal/students/%s.jsp">
  <input type="text" name="username">
  <input type="password" name="password">
</form>
</body>
</html>`

const invalidLoginPage = `<html><body><p class="error">Invalid username or password.</p></body></html>`

// fakePortal mimics a portal deployment mounted under `prefix`. Every hop of its sso
// chain refuses requests that do not replay all the cookies set so far, in order.
type fakePortal struct {
	prefix    string
	appName   string
	username  string
	password  string
	sessionId string
	// number of redirect hops after the login post, the last one answers 200
	hops int
	// when set the chain never ends
	loop bool
	// set by the login page and required on the login post when not empty
	loginPageCookie string

	gradesJSON     string
	gradesJSONType string
	gradesHTML     map[string]string

	mu    sync.Mutex
	paths []string
}

func newFakePortal(prefix, appName string) *fakePortal {
	return &fakePortal{
		prefix:         prefix,
		appName:        appName,
		username:       "alice",
		password:       "correct-horse",
		sessionId:      "s1",
		hops:           3,
		gradesJSONType: "application/json;charset=UTF-8",
		gradesHTML:     map[string]string{},
	}
}

func (f *fakePortal) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// cookiesBeforeHop is the exact Cookie header a browser would send to hop n.
func (f *fakePortal) cookiesBeforeHop(n int) string {
	cookies := []string{"JSESSIONID=" + f.sessionId, "portalApp=student"}
	// a login page JSESSIONID is replaced in place by the one of the login post
	if f.loginPageCookie != "" && !strings.HasPrefix(f.loginPageCookie, "JSESSIONID=") {
		cookies = append([]string{f.loginPageCookie}, cookies...)
	}
	for i := 1; i < n; i++ {
		cookies = append(cookies, fmt.Sprintf("hop%d=v%d", i, i))
	}
	return strings.Join(cookies, "; ")
}

func (f *fakePortal) hasSession(r *http.Request) bool {
	cookie, err := r.Cookie("JSESSIONID")
	return err == nil && cookie.Value == f.sessionId
}

func (f *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, f.prefix)
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && path == fmt.Sprintf("/campus/portal/students/%s.jsp", f.appName):
		if f.loginPageCookie != "" {
			w.Header().Set("Set-Cookie", f.loginPageCookie+"; Path=/; HttpOnly")
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, loginPageTemplate, f.appName, f.appName, f.appName)

	case r.Method == http.MethodPost && path == "/campus/verify.jsp":
		err := r.ParseForm()
		if err != nil || r.PostForm.Get("appName") != f.appName {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// a login ticket is only valid together with the cookie of the page that issued it
		if f.loginPageCookie != "" && r.Header.Get("Cookie") != f.loginPageCookie {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(invalidLoginPage))
			return
		}
		if r.PostForm.Get("username") != f.username || r.PostForm.Get("password") != f.password {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(invalidLoginPage))
			return
		}
		// comma joined on purpose, the expires date has a comma of its own
		w.Header().Set(
			"Set-Cookie",
			"JSESSIONID="+f.sessionId+"; Path=/; HttpOnly, portalApp=student; Expires=Wed, 21 Oct 2037 07:28:00 GMT; Path=/",
		)
		w.Header().Set("Location", "http://"+r.Host+f.prefix+"/sso/hop/1")
		w.WriteHeader(http.StatusFound)

	case strings.HasPrefix(path, "/sso/hop/"):
		n, err := strconv.Atoi(strings.TrimPrefix(path, "/sso/hop/"))
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !f.loop && r.Header.Get("Cookie") != f.cookiesBeforeHop(n) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Add("Set-Cookie", fmt.Sprintf("hop%d=v%d; Path=/", n, n))
		if f.loop || n < f.hops {
			w.Header().Set("Location", f.prefix+fmt.Sprintf("/sso/hop/%d", n+1))
			w.WriteHeader(http.StatusFound)
			return
		}
		w.Write([]byte("<html><body>Welcome</body></html>"))

	case path == "/campus/resources/portal/grades":
		if !f.hasSession(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.gradesJSON == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", f.gradesJSONType)
		w.Write([]byte(f.gradesJSON))

	default:
		body, ok := f.gradesHTML[path]
		if !ok || !f.hasSession(r) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}
}

// hitCounter counts requests made to a server that should never be contacted.
type hitCounter struct {
	mu   sync.Mutex
	hits int
}

func (h *hitCounter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
	w.WriteHeader(http.StatusNotFound)
}

func (h *hitCounter) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits
}

var testTime = time.Date(2024, 9, 3, 8, 30, 0, 0, time.UTC)

type testEnv struct {
	server  *httptest.Server
	portal  *Portal
	tel     *telemetry.RecorderAPI
	portals map[string]*fakePortal
}

// newTestEnv serves each fake portal under its prefix of one httptest server, the
// templates map an institution onto "/{code}" and "/{region}-{code}".
func newTestEnv(t *testing.T, overrides OverrideTable, fakes ...*fakePortal) testEnv {
	t.Helper()

	mux := http.NewServeMux()
	portals := map[string]*fakePortal{}
	for _, f := range fakes {
		mux.Handle(f.prefix+"/", f)
		portals[f.prefix] = f
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	tel := &telemetry.RecorderAPI{}
	p := New(
		Config{
			Templates: []string{
				server.URL + "/{code}",
				server.URL + "/{region}-{code}",
			},
			TimeoutSeconds:    5,
			RequestsPerSecond: 1000,
		},
		overrides,
		tel,
		chrono.FixedImpl{Time: testTime},
	)
	return testEnv{server: server, portal: p, tel: tel, portals: portals}
}
