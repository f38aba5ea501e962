// Package portal signs into a school information portal the way a browser would and
// reads back the student's grades.
package portal

import (
	"context"

	"portalproxy-backend/internal/components/assert"
	"portalproxy-backend/internal/components/chrono"
	"portalproxy-backend/internal/components/telemetry"
	"portalproxy-backend/internal/gradeparse"
	"portalproxy-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_portal_grades = "portal.grades"
	report_parser_parse  = "parser.parse"
)

var tracer = otel.Tracer("portalproxy/scrapers/portal")

var meter = otel.Meter("portalproxy/scrapers/portal")
var loginCounter, _ = meter.Int64Counter("portal.logins")
var degradedCounter, _ = meter.Int64Counter("portal.degraded_parses")

// Portal holds configuration only, every call builds its own http client, rate limiter
// and cookie header so no session state is shared between calls.
type Portal struct {
	config    Config
	overrides OverrideTable
	tel       telemetry.API
	time      chrono.API
	dump      restyutil.InstrumentOutput
}

func New(config Config, overrides OverrideTable, tel telemetry.API, time chrono.API) *Portal {
	assert.NotNil(tel)
	assert.NotNil(time)

	return &Portal{
		config:    config,
		overrides: overrides,
		tel:       telemetry.NewScopedAPI("portal", tel),
		time:      time,
	}
}

// SetDumpOutput makes every following call write its http exchanges (redacted) to `out`.
func (p *Portal) SetDumpOutput(out restyutil.InstrumentOutput) {
	p.dump = out
}

func (p *Portal) Overrides() OverrideTable {
	return p.overrides
}

// Resolve finds the base url serving an institution.
func (p *Portal) Resolve(ctx context.Context, d InstitutionDescriptor) (Endpoint, error) {
	err := d.Validate()
	if err != nil {
		return Endpoint{}, err
	}
	return p.resolve(ctx, p.newHttpClient(), d.normalized())
}

func (p *Portal) Login(ctx context.Context, d InstitutionDescriptor, creds Credentials) (Session, error) {
	session, _, err := p.startSession(ctx, d, creds)
	return session, err
}

type GradesResult struct {
	Session Session
	Source  gradeparse.Raw
	gradeparse.Result
}

// Grades logs in with a fresh session and parses the grade page. A page without any
// records is not an error, check Degraded on the result.
func (p *Portal) Grades(ctx context.Context, d InstitutionDescriptor, creds Credentials) (GradesResult, error) {
	session, http, err := p.startSession(ctx, d, creds)
	if err != nil {
		return GradesResult{}, err
	}

	raw, err := p.fetchRaw(ctx, http, session)
	if err != nil {
		return GradesResult{}, err
	}

	result := gradeparse.Parse(raw)
	if result.Degraded() {
		p.tel.ReportWarning(report_parser_parse, "no records", d.normalized().String(), raw.Path, raw.Format)
		degradedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("institution", d.normalized().String()),
			attribute.String("format", string(raw.Format)),
		))
	}
	p.tel.ReportDebug(report_portal_grades, d.normalized().String(), raw.Path, result.Strategy, len(result.Records))

	return GradesResult{
		Session: session,
		Source:  gradeparse.Raw{Format: raw.Format, Path: raw.Path},
		Result:  result,
	}, nil
}

func (p *Portal) startSession(ctx context.Context, d InstitutionDescriptor, creds Credentials) (Session, *resty.Client, error) {
	err := d.Validate()
	if err != nil {
		return Session{}, nil, err
	}
	d = d.normalized()
	err = creds.Validate(d)
	if err != nil {
		return Session{}, nil, err
	}

	http := p.newHttpClient()
	endpoint, err := p.resolve(ctx, http, d)
	if err != nil {
		loginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "not_found")))
		return Session{}, nil, err
	}

	session, err := p.login(ctx, http, endpoint, d, creds)
	if err != nil {
		loginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return Session{}, nil, err
	}
	loginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return session, http, nil
}
