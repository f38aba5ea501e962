package service

import (
	"context"
	"time"

	"portalproxy-backend/internal/components/assert"
	"portalproxy-backend/internal/components/telemetry"
	"portalproxy-backend/internal/diagnostics"
	"portalproxy-backend/internal/gradeparse"
	"portalproxy-backend/internal/scrapers/portal"
	"portalproxy-backend/lib/textutil"
)

const (
	report_service_auth   = "service.auth"
	report_service_login  = "service.login"
	report_service_grades = "service.grades"
)

const (
	ActionLogin     = "login"
	ActionGetGrades = "getGrades"
)

// PortalAPI describes the portal operations the service exposes.
//
// note: fault injection point
type PortalAPI interface {
	Login(ctx context.Context, d portal.InstitutionDescriptor, creds portal.Credentials) (portal.Session, error)
	Grades(ctx context.Context, d portal.InstitutionDescriptor, creds portal.Credentials) (portal.GradesResult, error)
}

// RecorderAPI keeps a diagnostic record of every grade retrieval.
type RecorderAPI interface {
	Record(ctx context.Context, attempt diagnostics.Attempt)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, diagnostics.Attempt) {}

// SessionSummary describes a portal session without any of its cookie values.
type SessionSummary struct {
	BaseUrl       string       `json:"baseUrl"`
	EstablishedAt time.Time    `json:"establishedAt"`
	CookieNames   []string     `json:"cookieNames"`
	Hops          []portal.Hop `json:"hops"`
}

func summarize(s portal.Session) SessionSummary {
	return SessionSummary{
		BaseUrl:       s.BaseUrl,
		EstablishedAt: s.EstablishedAt,
		CookieNames:   s.CookieNames(),
		Hops:          s.Hops,
	}
}

type Grades struct {
	Records  []gradeparse.CourseGradeRecord `json:"grades"`
	Degraded bool                           `json:"degraded"`
	Strategy string                         `json:"strategy"`
}

type Service struct {
	portal   PortalAPI
	verifier Verifier
	recorder RecorderAPI
	tel      telemetry.API
}

// NewService creates a Service, `recorder` may be nil.
func NewService(api PortalAPI, verifier Verifier, recorder RecorderAPI, tel telemetry.API) Service {
	assert.NotNil(api)
	assert.NotNil(tel)

	if recorder == nil {
		recorder = noopRecorder{}
	}
	return Service{
		portal:   api,
		verifier: verifier,
		recorder: recorder,
		tel:      telemetry.NewScopedAPI("service", tel),
	}
}

// Authenticate verifies the host application's Authorization header.
func (s Service) Authenticate(header string) (Principal, error) {
	principal, err := s.verifier.Verify(header)
	if err != nil {
		s.tel.ReportDebug(report_service_auth, err)
		return Principal{}, unauthorized(err)
	}
	return principal, nil
}

func validate(d portal.InstitutionDescriptor, creds portal.Credentials) error {
	err := d.Validate()
	if err != nil {
		return badRequest(err)
	}
	err = creds.Validate(d)
	if err != nil {
		return badRequest(err)
	}
	return nil
}

func (s Service) Login(
	ctx context.Context,
	principal Principal,
	d portal.InstitutionDescriptor,
	creds portal.Credentials,
) (SessionSummary, error) {
	err := validate(d, creds)
	if err != nil {
		return SessionSummary{}, err
	}

	session, err := s.portal.Login(ctx, d, creds)
	if err != nil {
		serviceErr := classify(err)
		s.tel.ReportDebug(report_service_login, principal.Subject, d.String(), serviceErr.Kind, err)
		return SessionSummary{}, serviceErr
	}
	return summarize(session), nil
}

// GetGrades always logs in again, sessions are never kept between calls. An empty
// grade list is a success with Degraded set.
func (s Service) GetGrades(
	ctx context.Context,
	principal Principal,
	d portal.InstitutionDescriptor,
	creds portal.Credentials,
) (Grades, error) {
	err := validate(d, creds)
	if err != nil {
		return Grades{}, err
	}

	result, err := s.portal.Grades(ctx, d, creds)
	if err != nil {
		serviceErr := classify(err)
		s.tel.ReportDebug(report_service_grades, principal.Subject, d.String(), serviceErr.Kind, err)
		return Grades{}, serviceErr
	}

	s.recorder.Record(ctx, diagnostics.Attempt{
		Institution: textutil.NormalizeName(d.Code),
		Region:      textutil.NormalizeName(d.Region),
		BaseUrl:     result.Session.BaseUrl,
		Path:        result.Source.Path,
		Format:      string(result.Source.Format),
		Strategy:    result.Strategy,
		RecordCount: len(result.Records),
		Degraded:    result.Degraded(),
	})

	records := result.Records
	if records == nil {
		records = []gradeparse.CourseGradeRecord{}
	}
	return Grades{
		Records:  records,
		Degraded: result.Degraded(),
		Strategy: result.Strategy,
	}, nil
}
