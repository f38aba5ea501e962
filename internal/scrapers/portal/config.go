package portal

import (
	"strings"
	"time"
)

const (
	loginPagePath  = "/campus/portal/students/%s.jsp"
	verifyPath     = "/campus/verify.jsp"
	gradesJSONPath = "/campus/resources/portal/grades"

	maxHops = 5

	defaultBaseDomain        = "infinitecampus.org"
	defaultTimeout           = 20 * time.Second
	defaultRequestsPerSecond = 5
	defaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var gradesHTMLPaths = []string{
	"/campus/portal/students/grades.jsp",
	"/campus/portal/portal.xsl?x=portal.PortalGrades",
	"/campus/portal/grades.jsp",
}

// the generic host conventions, in the order they are tried
var defaultTemplates = []string{
	"https://{code}.{domain}",
	"https://{region}-{code}.{domain}",
	"https://{region}{code}.{domain}",
	"https://{code}{region}.{domain}",
}

type Config struct {
	// BaseDomain fills the {domain} placeholder of the templates.
	BaseDomain string `json:"base_domain"`
	// Templates are base url templates with {code}, {region} and {domain} placeholders.
	Templates         []string `json:"templates"`
	OverridesFile     string   `json:"overrides_file"`
	TimeoutSeconds    int      `json:"timeout_seconds"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	UserAgent         string   `json:"user_agent"`
}

func (c Config) baseDomain() string {
	if c.BaseDomain == "" {
		return defaultBaseDomain
	}
	return c.BaseDomain
}

func (c Config) templates() []string {
	if len(c.Templates) == 0 {
		return defaultTemplates
	}
	return c.Templates
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) requestsPerSecond() float64 {
	if c.RequestsPerSecond <= 0 {
		return defaultRequestsPerSecond
	}
	return c.RequestsPerSecond
}

func (c Config) userAgent() string {
	if c.UserAgent == "" {
		return defaultUserAgent
	}
	return c.UserAgent
}

func expandTemplate(template, code, region, domain string) string {
	replacer := strings.NewReplacer(
		"{code}", code,
		"{region}", region,
		"{domain}", domain,
	)
	return strings.TrimSuffix(replacer.Replace(template), "/")
}
