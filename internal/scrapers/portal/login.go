package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"portalproxy-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_sequencer_login = "sequencer.login"
	report_sequencer_hop   = "sequencer.hop"
)

var appNameScriptRegex = regexp.MustCompile(`appName\s*[:=]\s*["']([^"']+)["']`)

type loginForm struct {
	action        string
	usernameField string
	passwordField string
	hidden        url.Values
}

// parseLoginForm reads the form a browser would submit from the login page. Pages
// without a form give the default field names and no action.
func parseLoginForm(body []byte) (loginForm, error) {
	form := loginForm{
		usernameField: "username",
		passwordField: "password",
		hidden:        url.Values{},
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return loginForm{}, err
	}

	selection := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[type=password]").Length() > 0
	}).First()
	if selection.Length() == 0 {
		selection = doc.Find("form").First()
	}

	foundUsername := false
	selection.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := strings.TrimSpace(input.AttrOr("name", ""))
		if name == "" {
			return
		}
		switch strings.ToLower(input.AttrOr("type", "text")) {
		case "hidden":
			form.hidden.Set(name, input.AttrOr("value", ""))
		case "password":
			form.passwordField = name
		case "text", "email":
			if !foundUsername {
				form.usernameField = name
				foundUsername = true
			}
		}
	})
	form.action = strings.TrimSpace(selection.AttrOr("action", ""))

	if form.hidden.Get("appName") == "" {
		doc.Find("script").EachWithBreak(func(_ int, script *goquery.Selection) bool {
			groups := appNameScriptRegex.FindStringSubmatch(htmlutil.GetText(script.Get(0)))
			if len(groups) < 2 {
				return true
			}
			form.hidden.Set("appName", groups[1])
			return false
		})
	}

	return form, nil
}

func resolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	next, err := base.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", err
	}
	return next.String(), nil
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// login submits the credentials to the endpoint's login form and then follows the
// redirect chain by hand, replaying every cookie collected so far on each hop.
func (p *Portal) login(
	ctx context.Context,
	http *resty.Client,
	endpoint Endpoint,
	d InstitutionDescriptor,
	creds Credentials,
) (Session, error) {
	ctx, span := tracer.Start(ctx, "login")
	defer span.End()

	fail := func(err error) (Session, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Session{}, err
	}

	form, err := parseLoginForm(endpoint.Body)
	if err != nil {
		p.tel.ReportBroken(report_sequencer_login, fmt.Errorf("parse login page: %w", err))
		return fail(fmt.Errorf("parse login page: %w", err))
	}

	postUrl := endpoint.BaseUrl + verifyPath
	if form.action != "" {
		postUrl, err = resolveLocation(endpoint.LoginPageUrl, form.action)
		if err != nil {
			p.tel.ReportWarning(report_sequencer_login, fmt.Errorf("resolve form action: %w", err), form.action)
			return fail(fmt.Errorf("resolve form action: %w", err))
		}
	}

	values := url.Values{}
	for key, v := range form.hidden {
		values[key] = v
	}
	if values.Get("appName") == "" {
		values.Set("appName", endpoint.AppName)
	}
	values.Set(form.usernameField, creds.loginId(d))
	values.Set(form.passwordField, creds.Password)

	req := http.R().
		SetContext(ctx).
		SetFormDataFromValues(values)
	if endpoint.Cookies != "" {
		req.SetHeader("Cookie", endpoint.Cookies)
	}
	res, err := req.Post(postUrl)
	if err != nil {
		return fail(fmt.Errorf("submit login form: %w", err))
	}

	status := res.StatusCode()
	setCookies := res.Header().Values("Set-Cookie")
	hops := []Hop{{Index: 0, URL: postUrl, Status: status}}

	if !isRedirect(status) || len(setCookies) == 0 {
		reason := ReasonUnexpectedStatus
		if isSuccess(status) || (status >= 400 && status < 500) {
			reason = ReasonInvalidCredentials
		}
		authErr := &AuthError{Reason: reason, URL: postUrl, Status: status}
		if reason == ReasonInvalidCredentials {
			p.tel.ReportDebug(report_sequencer_login, authErr)
		} else {
			p.tel.ReportWarning(report_sequencer_login, authErr)
		}
		return fail(authErr)
	}

	cookies := MergeCookies(endpoint.Cookies, setCookies...)
	if cookies == "" {
		authErr := &AuthError{Reason: ReasonUnexpectedStatus, URL: postUrl, Status: status}
		p.tel.ReportWarning(report_sequencer_login, authErr, "no usable cookies")
		return fail(authErr)
	}

	current := postUrl
	location := res.Header().Get("Location")
	for i := 1; i <= maxHops; i++ {
		if location == "" {
			authErr := &AuthError{Reason: ReasonUnexpectedStatus, URL: current, Status: hops[len(hops)-1].Status}
			p.tel.ReportWarning(report_sequencer_login, authErr, "redirect without location")
			return fail(authErr)
		}

		next, err := resolveLocation(current, location)
		if err != nil {
			p.tel.ReportWarning(report_sequencer_hop, fmt.Errorf("resolve location: %w", err), location)
			return fail(&AuthError{Reason: ReasonUnexpectedStatus, URL: current})
		}

		res, err := http.R().
			SetContext(ctx).
			SetHeader("Cookie", cookies).
			Get(next)
		if err != nil {
			return fail(fmt.Errorf("follow redirect %d: %w", i, err))
		}

		cookies = MergeCookies(cookies, res.Header().Values("Set-Cookie")...)
		hops = append(hops, Hop{Index: i, URL: next, Status: res.StatusCode()})
		p.tel.ReportDebug(report_sequencer_hop, i, next, res.StatusCode())

		switch {
		case isSuccess(res.StatusCode()):
			span.SetAttributes(attribute.Int("hops", i))
			return Session{
				BaseUrl:       endpoint.BaseUrl,
				CookieHeader:  cookies,
				EstablishedAt: p.time.Now(),
				Hops:          hops,
			}, nil
		case isRedirect(res.StatusCode()):
			current = next
			location = res.Header().Get("Location")
		default:
			authErr := &AuthError{Reason: ReasonUnexpectedStatus, URL: next, Status: res.StatusCode()}
			p.tel.ReportWarning(report_sequencer_login, authErr)
			return fail(authErr)
		}
	}

	authErr := &AuthError{Reason: ReasonRedirectLoop, URL: current, Status: hops[len(hops)-1].Status}
	p.tel.ReportWarning(report_sequencer_login, authErr, len(hops))
	return fail(authErr)
}
