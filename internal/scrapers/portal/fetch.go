package portal

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"portalproxy-backend/internal/gradeparse"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_retriever_json  = "retriever.json"
	report_retriever_html  = "retriever.html"
	report_retriever_fetch = "retriever.fetch"
)

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// fetchRaw gets the grade page of a session. The json endpoint is only taken when it
// actually contains grades, otherwise the html pages are tried in order.
func (p *Portal) fetchRaw(ctx context.Context, http *resty.Client, session Session) (gradeparse.Raw, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()

	var attempted []string
	var errs []error

	attempted = append(attempted, gradesJSONPath)
	res, err := http.R().
		SetContext(ctx).
		SetHeader("Cookie", session.CookieHeader).
		SetHeader("Accept", "application/json").
		Get(session.BaseUrl + gradesJSONPath)
	switch {
	case err != nil:
		p.tel.ReportDebug(report_retriever_json, err)
		errs = append(errs, fmt.Errorf("%s: %w", gradesJSONPath, err))
	case !res.IsSuccess():
		p.tel.ReportDebug(report_retriever_json, res.StatusCode())
		errs = append(errs, fmt.Errorf("%s: status %d", gradesJSONPath, res.StatusCode()))
	case !isJSONContentType(res.Header().Get("Content-Type")):
		p.tel.ReportDebug(report_retriever_json, "not json", res.Header().Get("Content-Type"))
		errs = append(errs, fmt.Errorf("%s: content type %q", gradesJSONPath, res.Header().Get("Content-Type")))
	default:
		raw := gradeparse.Raw{
			Format: gradeparse.FormatJSON,
			Body:   res.Body(),
			Path:   gradesJSONPath,
		}
		if !gradeparse.Parse(raw).Degraded() {
			span.SetAttributes(attribute.String("path", gradesJSONPath))
			return raw, nil
		}
		p.tel.ReportDebug(report_retriever_json, "no records")
		errs = append(errs, fmt.Errorf("%s: no records", gradesJSONPath))
	}

	for _, path := range gradesHTMLPaths {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		attempted = append(attempted, path)
		res, err := http.R().
			SetContext(ctx).
			SetHeader("Cookie", session.CookieHeader).
			Get(session.BaseUrl + path)
		if err != nil {
			p.tel.ReportDebug(report_retriever_html, path, err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if !res.IsSuccess() {
			p.tel.ReportDebug(report_retriever_html, path, res.StatusCode())
			errs = append(errs, fmt.Errorf("%s: status %d", path, res.StatusCode()))
			continue
		}

		span.SetAttributes(attribute.String("path", path))
		return gradeparse.Raw{
			Format: gradeparse.FormatHTML,
			Body:   res.Body(),
			Path:   path,
		}, nil
	}

	fetchErr := &FetchError{Attempted: attempted, Errs: errs}
	p.tel.ReportWarning(report_retriever_fetch, fetchErr)
	span.RecordError(fetchErr)
	span.SetStatus(codes.Error, "no grade page")
	return gradeparse.Raw{}, fetchErr
}
