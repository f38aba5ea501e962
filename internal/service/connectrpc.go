package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"portalproxy-backend/internal/gradeparse"
	"portalproxy-backend/internal/scrapers/portal"
	"portalproxy-backend/lib/serviceutil"

	"connectrpc.com/connect"
)

const (
	ServiceName         = "portalproxy.v1.PortalProxyService"
	LoginProcedure      = "/" + ServiceName + "/Login"
	GetGradesProcedure  = "/" + ServiceName + "/GetGrades"
	jsonCodecName       = "json"
	principalContextKey = contextKey("principal")
)

type contextKey string

// JSONCodec lets connect carry plain go structs as json messages.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return jsonCodecName
}

func (JSONCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (JSONCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, message)
}

type PortalRequest struct {
	Institution portal.InstitutionDescriptor `json:"institutionDescriptor"`
	Credentials portal.Credentials           `json:"credentials"`
}

type LoginResponse struct {
	Session SessionSummary `json:"session"`
}

type GetGradesResponse struct {
	Grades   []gradeparse.CourseGradeRecord `json:"grades"`
	Degraded bool                           `json:"degraded"`
	Strategy string                         `json:"strategy"`
}

type authInterceptor = func(ctx context.Context, token string) (context.Context, error)

type genericAuthInterceptor struct {
	fn authInterceptor
}

func newGenericAuthInterceptor(fn authInterceptor) genericAuthInterceptor {
	return genericAuthInterceptor{fn: fn}
}

func (a genericAuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		var err error
		ctx, err = a.fn(ctx, req.Header().Get("Authorization"))
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a genericAuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a genericAuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, shc connect.StreamingHandlerConn) error {
		var err error
		ctx, err = a.fn(ctx, shc.RequestHeader().Get("Authorization"))
		if err != nil {
			return err
		}
		return next(ctx, shc)
	}
}

func toConnectError(err error) error {
	serviceErr := classify(err)
	message := serviceErr.Message
	if len(serviceErr.Attempted) > 0 {
		message = fmt.Sprintf("%s (attempted: %s)", message, strings.Join(serviceErr.Attempted, ", "))
	}
	connectErr := connect.NewError(serviceErr.ConnectCode(), fmt.Errorf("%s", message))
	connectErr.Meta().Set("Portal-Error-Kind", string(serviceErr.Kind))
	return connectErr
}

func (s Service) verifyConnect(ctx context.Context, header string) (context.Context, error) {
	principal, err := s.Authenticate(header)
	if err != nil {
		return nil, toConnectError(err)
	}
	return context.WithValue(ctx, principalContextKey, principal), nil
}

func principalFrom(ctx context.Context) Principal {
	principal, _ := ctx.Value(principalContextKey).(Principal)
	return principal
}

func (s Service) connectLogin(ctx context.Context, req *connect.Request[PortalRequest]) (*connect.Response[LoginResponse], error) {
	summary, err := s.Login(ctx, principalFrom(ctx), req.Msg.Institution, req.Msg.Credentials)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&LoginResponse{Session: summary}), nil
}

func (s Service) connectGetGrades(ctx context.Context, req *connect.Request[PortalRequest]) (*connect.Response[GetGradesResponse], error) {
	grades, err := s.GetGrades(ctx, principalFrom(ctx), req.Msg.Institution, req.Msg.Credentials)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetGradesResponse{
		Grades:   grades.Records,
		Degraded: grades.Degraded,
		Strategy: grades.Strategy,
	}), nil
}

// connectHandlers returns the connect procedures keyed by their path. The auth
// interceptor runs before any handler so unauthenticated calls never reach the portal.
func (s Service) connectHandlers() map[string]http.Handler {
	options := connect.WithHandlerOptions(
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(
			serviceutil.NewConnectOtelInterceptor(),
			newGenericAuthInterceptor(s.verifyConnect),
		),
	)

	return map[string]http.Handler{
		LoginProcedure:     connect.NewUnaryHandler(LoginProcedure, s.connectLogin, options),
		GetGradesProcedure: connect.NewUnaryHandler(GetGradesProcedure, s.connectGetGrades, options),
	}
}
