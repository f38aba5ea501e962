package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"portalproxy-backend/internal/components/chrono"
	"portalproxy-backend/internal/components/telemetry"
	"portalproxy-backend/internal/diagnostics"
	"portalproxy-backend/internal/gradeparse"
	"portalproxy-backend/internal/scrapers/portal"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 9, 3, 8, 30, 0, 0, time.UTC)

type fakePortal struct {
	mu      sync.Mutex
	calls   int
	session portal.Session
	grades  portal.GradesResult
	err     error
}

func (f *fakePortal) Login(context.Context, portal.InstitutionDescriptor, portal.Credentials) (portal.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.session, f.err
}

func (f *fakePortal) Grades(context.Context, portal.InstitutionDescriptor, portal.Credentials) (portal.GradesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.grades, f.err
}

func (f *fakePortal) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts []diagnostics.Attempt
}

func (r *fakeRecorder) Record(_ context.Context, a diagnostics.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func (r *fakeRecorder) snapshot() []diagnostics.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]diagnostics.Attempt(nil), r.attempts...)
}

type testEnv struct {
	portal   *fakePortal
	recorder *fakeRecorder
	verifier Verifier
	server   *httptest.Server
}

func newTestEnv(t *testing.T) testEnv {
	verifier, err := NewVerifier(AuthConfig{
		Secret:   "test-secret",
		Issuer:   "host-app",
		Audience: "portal-proxy",
	}, chrono.FixedImpl{Time: now})
	require.NoError(t, err)

	fake := &fakePortal{}
	recorder := &fakeRecorder{}
	svc := NewService(fake, verifier, recorder, &telemetry.RecorderAPI{})
	server := httptest.NewServer(svc.Handler(HTTPOptions{}))
	t.Cleanup(server.Close)

	return testEnv{portal: fake, recorder: recorder, verifier: verifier, server: server}
}

func (e testEnv) token(t *testing.T) string {
	token, err := e.verifier.Mint("user-42", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

type envelope struct {
	Success  bool                           `json:"success"`
	Session  *SessionSummary                `json:"session"`
	Grades   []gradeparse.CourseGradeRecord `json:"grades"`
	Degraded *bool                          `json:"degraded"`
	Error    *errorBody                     `json:"error"`
}

func (e testEnv) post(t *testing.T, authorization string, body any) (int, envelope, map[string]any) {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/v1/portal", bytes.NewReader(encoded))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)

	var parsed envelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	return res.StatusCode, parsed, raw
}

func gradesRequest() ActionRequest {
	return ActionRequest{
		Action:      ActionGetGrades,
		Institution: portal.InstitutionDescriptor{Code: "Wake", Region: "NC"},
		Credentials: portal.Credentials{Username: "alice", Password: "correct-horse"},
	}
}

func TestUnauthorizedNeverReachesPortal(t *testing.T) {
	env := newTestEnv(t)

	other, err := NewVerifier(AuthConfig{Secret: "other-secret", Issuer: "host-app", Audience: "portal-proxy"}, chrono.FixedImpl{Time: now})
	require.NoError(t, err)
	forged, err := other.Mint("user-42", time.Hour)
	require.NoError(t, err)
	expired, err := env.verifier.Mint("user-42", -time.Minute)
	require.NoError(t, err)

	testCases := []struct {
		name          string
		authorization string
	}{
		{name: "missing"},
		{name: "not bearer", authorization: "Basic YWxpY2U6cGFzcw=="},
		{name: "garbage", authorization: "Bearer not-a-token"},
		{name: "wrong secret", authorization: "Bearer " + forged},
		{name: "expired", authorization: "Bearer " + expired},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			status, body, _ := env.post(t, test.authorization, gradesRequest())
			require.Equal(t, http.StatusUnauthorized, status)
			require.False(t, body.Success)
			require.Equal(t, KindUnauthorized, body.Error.Kind)
		})
	}
	require.Equal(t, 0, env.portal.callCount())
}

func TestVerifierClaims(t *testing.T) {
	verifier, err := NewVerifier(AuthConfig{Secret: "s", Issuer: "host-app", Audience: "portal-proxy"}, chrono.FixedImpl{Time: now})
	require.NoError(t, err)
	wrongAudience, err := NewVerifier(AuthConfig{Secret: "s", Issuer: "host-app", Audience: "someone-else"}, chrono.FixedImpl{Time: now})
	require.NoError(t, err)

	token, err := wrongAudience.Mint("user-42", time.Hour)
	require.NoError(t, err)
	_, err = verifier.Verify("Bearer " + token)
	require.Error(t, err)

	token, err = verifier.Mint("", time.Hour)
	require.NoError(t, err)
	_, err = verifier.Verify("Bearer " + token)
	require.ErrorIs(t, err, errNoSubject)

	token, err = verifier.Mint("user-42", time.Hour)
	require.NoError(t, err)
	principal, err := verifier.Verify("bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "user-42", principal.Subject)

	_, err = NewVerifier(AuthConfig{}, chrono.FixedImpl{Time: now})
	require.Error(t, err)
}

func TestBadRequest(t *testing.T) {
	env := newTestEnv(t)

	missingCode := gradesRequest()
	missingCode.Institution.Code = ""
	missingPassword := gradesRequest()
	missingPassword.Credentials.Password = ""
	unknownAction := gradesRequest()
	unknownAction.Action = "deleteGrades"

	for name, req := range map[string]ActionRequest{
		"missing code":     missingCode,
		"missing password": missingPassword,
		"unknown action":   unknownAction,
	} {
		t.Run(name, func(t *testing.T) {
			status, body, _ := env.post(t, env.token(t), req)
			require.Equal(t, http.StatusBadRequest, status)
			require.Equal(t, KindBadRequest, body.Error.Kind)
		})
	}
	require.Equal(t, 0, env.portal.callCount())
}

func TestLoginSummaryHasNoCookieValues(t *testing.T) {
	env := newTestEnv(t)
	env.portal.session = portal.Session{
		BaseUrl:       "https://campus.wcpss.net",
		CookieHeader:  "JSESSIONID=secret-value; portalApp=student",
		EstablishedAt: now,
		Hops:          []portal.Hop{{Index: 0, URL: "https://campus.wcpss.net/campus/verify.jsp", Status: 302}},
	}

	req := gradesRequest()
	req.Action = ActionLogin
	status, body, raw := env.post(t, env.token(t), req)
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)
	require.Equal(t, []string{"JSESSIONID", "portalApp"}, body.Session.CookieNames)
	require.NotContains(t, raw["session"], "cookieHeader")

	encoded, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NotContains(t, string(encoded), "secret-value")
	require.NotContains(t, string(encoded), "correct-horse")
}

func TestGetGrades(t *testing.T) {
	env := newTestEnv(t)
	score, letter := 91.5, "A-"
	env.portal.grades = portal.GradesResult{
		Session: portal.Session{BaseUrl: "https://campus.wcpss.net"},
		Source:  gradeparse.Raw{Format: gradeparse.FormatJSON, Path: "/campus/resources/portal/grades"},
		Result: gradeparse.Result{
			Records:  []gradeparse.CourseGradeRecord{{CourseName: "Algebra II", CurrentScore: &score, LetterGrade: &letter}},
			Strategy: gradeparse.StrategyJSON,
		},
	}

	status, body, _ := env.post(t, env.token(t), gradesRequest())
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)
	require.Len(t, body.Grades, 1)
	require.Equal(t, "Algebra II", body.Grades[0].CourseName)
	require.Equal(t, 91.5, *body.Grades[0].CurrentScore)
	require.Equal(t, "A-", *body.Grades[0].LetterGrade)
	require.False(t, *body.Degraded)

	attempts := env.recorder.snapshot()
	require.Len(t, attempts, 1)
	require.Equal(t, diagnostics.Attempt{
		Institution: "wake",
		Region:      "nc",
		BaseUrl:     "https://campus.wcpss.net",
		Path:        "/campus/resources/portal/grades",
		Format:      "json",
		Strategy:    gradeparse.StrategyJSON,
		RecordCount: 1,
	}, attempts[0])
}

func TestGetGradesEmptyIsSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.portal.grades = portal.GradesResult{
		Source: gradeparse.Raw{Format: gradeparse.FormatHTML, Path: "/campus/portal/grades.jsp"},
		Result: gradeparse.Result{Strategy: gradeparse.StrategyNone},
	}

	status, body, raw := env.post(t, env.token(t), gradesRequest())
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)
	require.True(t, *body.Degraded)
	require.Equal(t, []any{}, raw["grades"])
	require.True(t, env.recorder.snapshot()[0].Degraded)
}

func TestUpstreamErrors(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		status    int
		kind      Kind
		message   string
		attempted []string
	}{
		{
			name:    "invalid credentials",
			err:     &portal.AuthError{Reason: portal.ReasonInvalidCredentials, Status: 200},
			status:  http.StatusBadGateway,
			kind:    KindUpstreamAuthFailed,
			message: "invalid credentials",
		},
		{
			name:    "redirect loop",
			err:     &portal.AuthError{Reason: portal.ReasonRedirectLoop, Status: 302},
			status:  http.StatusBadGateway,
			kind:    KindUpstreamAuthFailed,
			message: "redirect loop",
		},
		{
			name:      "not found",
			err:       &portal.NotFoundError{Institution: "wake/nc", Attempted: []string{"https://a", "https://b"}},
			status:    http.StatusBadGateway,
			kind:      KindUpstreamUnavailable,
			message:   "no portal endpoint found for institution",
			attempted: []string{"https://a", "https://b"},
		},
		{
			name: "fetch timeout",
			err: &portal.FetchError{
				Attempted: []string{"/campus/resources/portal/grades"},
				Errs:      []error{context.DeadlineExceeded},
			},
			status:    http.StatusGatewayTimeout,
			kind:      KindUpstreamUnavailable,
			message:   "no grade page could be fetched",
			attempted: []string{"/campus/resources/portal/grades"},
		},
		{
			name:    "transport",
			err:     errors.New("connection reset by peer"),
			status:  http.StatusBadGateway,
			kind:    KindUpstreamUnavailable,
			message: "portal request failed",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.portal.err = test.err

			status, body, _ := env.post(t, env.token(t), gradesRequest())
			require.Equal(t, test.status, status)
			require.False(t, body.Success)
			require.Equal(t, test.kind, body.Error.Kind)
			require.Equal(t, test.message, body.Error.Message)
			require.Equal(t, test.attempted, body.Error.Attempted)
			require.Empty(t, env.recorder.snapshot())
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	res, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestConnect(t *testing.T) {
	env := newTestEnv(t)
	score := 84.0
	env.portal.grades = portal.GradesResult{
		Result: gradeparse.Result{
			Records:  []gradeparse.CourseGradeRecord{{CourseName: "Chemistry", CurrentScore: &score}},
			Strategy: gradeparse.StrategyRows,
		},
	}

	client := connect.NewClient[PortalRequest, GetGradesResponse](
		http.DefaultClient,
		env.server.URL+GetGradesProcedure,
		connect.WithCodec(JSONCodec{}),
	)
	msg := &PortalRequest{
		Institution: portal.InstitutionDescriptor{Code: "lincoln"},
		Credentials: portal.Credentials{Username: "alice", Password: "correct-horse"},
	}

	_, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	require.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	require.Equal(t, 0, env.portal.callCount())

	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", env.token(t))
	res, err := client.CallUnary(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Msg.Grades, 1)
	require.Equal(t, "Chemistry", res.Msg.Grades[0].CourseName)
	require.Equal(t, gradeparse.StrategyRows, res.Msg.Strategy)

	env.portal.err = &portal.AuthError{Reason: portal.ReasonInvalidCredentials}
	req = connect.NewRequest(msg)
	req.Header().Set("Authorization", env.token(t))
	_, err = client.CallUnary(context.Background(), req)
	require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	var connectErr *connect.Error
	require.ErrorAs(t, err, &connectErr)
	require.Equal(t, string(KindUpstreamAuthFailed), connectErr.Meta().Get("Portal-Error-Kind"))
}
