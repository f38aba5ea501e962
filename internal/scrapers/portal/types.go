package portal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"portalproxy-backend/lib/textutil"
)

var (
	ErrInvalidDescriptor  = errors.New("institution code is required")
	ErrMissingCredentials = errors.New("credentials are incomplete")
)

// InstitutionDescriptor identifies the portal deployment of one institution.
type InstitutionDescriptor struct {
	Code   string `json:"code"`
	Region string `json:"region,omitempty"`
	// StudentNumber is accepted by some institutions in place of a username.
	StudentNumber string `json:"studentNumber,omitempty"`
}

func (d InstitutionDescriptor) normalized() InstitutionDescriptor {
	return InstitutionDescriptor{
		Code:          textutil.NormalizeName(d.Code),
		Region:        textutil.NormalizeName(d.Region),
		StudentNumber: strings.TrimSpace(d.StudentNumber),
	}
}

func (d InstitutionDescriptor) Validate() error {
	if strings.TrimSpace(d.Code) == "" {
		return ErrInvalidDescriptor
	}
	return nil
}

func (d InstitutionDescriptor) String() string {
	if d.Region == "" {
		return d.Code
	}
	return fmt.Sprintf("%s/%s", d.Code, d.Region)
}

// Credentials are only held for the duration of a single login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: [redacted]}", c.Username)
}

func (c Credentials) GoString() string {
	return c.String()
}

func (c Credentials) loginId(d InstitutionDescriptor) string {
	if strings.TrimSpace(c.Username) != "" {
		return strings.TrimSpace(c.Username)
	}
	return d.StudentNumber
}

func (c Credentials) Validate(d InstitutionDescriptor) error {
	if c.loginId(d) == "" {
		return fmt.Errorf("%w: username or student number is required", ErrMissingCredentials)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", ErrMissingCredentials)
	}
	return nil
}

// Endpoint is a candidate base url that answered its login page.
type Endpoint struct {
	BaseUrl      string
	LoginPageUrl string
	AppName      string
	Body         []byte
	// Cookies is the Cookie header built from what the login page set, the login
	// form is only accepted together with them.
	Cookies string
}

type Hop struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Status int    `json:"status"`
}

// Session is an authenticated portal session, it lives for exactly one request.
type Session struct {
	BaseUrl       string
	CookieHeader  string
	EstablishedAt time.Time
	Hops          []Hop
}

// CookieNames lists the names of the session cookies without their values.
func (s Session) CookieNames() []string {
	pairs := parseCookieHeader(s.CookieHeader)
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.name
	}
	return names
}
