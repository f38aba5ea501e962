package portal

import (
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// a comma only separates two cookies if what follows it looks like "name="
var cookieStartRegex = regexp.MustCompile("^\\s*[!#$%&'*+\\-.^_`|~0-9A-Za-z]+=")

func splitSetCookie(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if len(out) > 0 && !cookieStartRegex.MatchString(part) {
			out[len(out)-1] += "," + part
			continue
		}
		out = append(out, part)
	}
	return out
}

type cookiePair struct {
	name  string
	value string
}

func parseCookieHeader(header string) []cookiePair {
	var pairs []cookiePair
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		pairs = append(pairs, cookiePair{name: name, value: strings.TrimSpace(value)})
	}
	return pairs
}

func renderCookieHeader(pairs []cookiePair) string {
	rendered := make([]string, len(pairs))
	for i, p := range pairs {
		rendered[i] = p.name + "=" + p.value
	}
	return strings.Join(rendered, "; ")
}

// expired reports whether the attributes of a Set-Cookie value tell the client to
// delete the cookie, that is a Max-Age of zero or less or an Expires date in the past.
func expired(attributes string, now time.Time) bool {
	for _, attribute := range strings.Split(attributes, ";") {
		key, value, _ := strings.Cut(strings.TrimSpace(attribute), "=")
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "max-age":
			seconds, err := strconv.Atoi(value)
			if err == nil && seconds <= 0 {
				return true
			}
		case "expires":
			at, err := http.ParseTime(value)
			if err == nil && !at.After(now) {
				return true
			}
		}
	}
	return false
}

// MergeCookies adds the name=value pairs of the given Set-Cookie values to a Cookie
// header. Attributes are dropped, first seen order is kept and a cookie that is
// already present has its value replaced in place. A Set-Cookie that expires its
// cookie removes it from the header.
func MergeCookies(existing string, setCookies ...string) string {
	pairs := parseCookieHeader(existing)
	now := time.Now()

	for _, setCookie := range setCookies {
		for _, cookie := range splitSetCookie(setCookie) {
			first, attributes, _ := strings.Cut(cookie, ";")
			name, value, ok := strings.Cut(strings.TrimSpace(first), "=")
			name = strings.TrimSpace(name)
			if !ok || name == "" {
				continue
			}
			value = strings.TrimSpace(value)

			i := slices.IndexFunc(pairs, func(p cookiePair) bool { return p.name == name })
			switch {
			case expired(attributes, now):
				if i >= 0 {
					pairs = slices.Delete(pairs, i, i+1)
				}
			case i >= 0:
				pairs[i].value = value
			default:
				pairs = append(pairs, cookiePair{name: name, value: value})
			}
		}
	}

	return renderCookieHeader(pairs)
}
