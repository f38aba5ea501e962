package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_resolver_probe   = "resolver.probe"
	report_resolver_resolve = "resolver.resolve"
)

type candidate struct {
	baseUrl string
	appName string
}

func (c candidate) loginPageUrl() string {
	return c.baseUrl + fmt.Sprintf(loginPagePath, c.appName)
}

// candidates lists the base urls that may serve an institution: its override entry
// first, then the generic templates. Templates that need a region are skipped when
// there is none.
func (p *Portal) candidates(d InstitutionDescriptor) []candidate {
	var out []candidate
	seen := map[string]bool{}
	add := func(c candidate) {
		if c.baseUrl == "" || seen[c.baseUrl] {
			return
		}
		seen[c.baseUrl] = true
		out = append(out, c)
	}

	if override, ok := p.overrides.Lookup(d.Code, d.Region); ok {
		appName := override.AppName
		if appName == "" {
			appName = d.Code
		}
		add(candidate{baseUrl: override.BaseUrl, appName: appName})
	}

	for _, template := range p.config.templates() {
		if d.Region == "" && strings.Contains(template, "{region}") {
			continue
		}
		add(candidate{
			baseUrl: expandTemplate(template, d.Code, d.Region, p.config.baseDomain()),
			appName: d.Code,
		})
	}
	return out
}

func (p *Portal) resolve(ctx context.Context, http *resty.Client, d InstitutionDescriptor) (Endpoint, error) {
	ctx, span := tracer.Start(ctx, "resolve")
	defer span.End()
	span.SetAttributes(attribute.String("institution", d.String()))

	var attempted []string
	var errs []error
	for _, c := range p.candidates(d) {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		link := c.loginPageUrl()
		attempted = append(attempted, link)

		res, err := http.R().
			SetContext(ctx).
			Get(link)
		if err != nil {
			p.tel.ReportDebug(report_resolver_probe, link, err)
			errs = append(errs, fmt.Errorf("%s: %w", link, err))
			continue
		}
		if !res.IsSuccess() {
			p.tel.ReportDebug(report_resolver_probe, link, res.StatusCode())
			errs = append(errs, fmt.Errorf("%s: status %d", link, res.StatusCode()))
			continue
		}

		span.SetAttributes(attribute.String("base_url", c.baseUrl))
		return Endpoint{
			BaseUrl:      c.baseUrl,
			LoginPageUrl: link,
			AppName:      c.appName,
			Body:         res.Body(),
			Cookies:      MergeCookies("", res.Header().Values("Set-Cookie")...),
		}, nil
	}

	err := &NotFoundError{
		Institution: d.String(),
		Attempted:   attempted,
		Suggestion:  p.overrides.Suggest(d.Code, d.Region),
		Errs:        errs,
	}
	p.tel.ReportWarning(report_resolver_resolve, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "no endpoint found")
	return Endpoint{}, err
}
