package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

const redacted = "[redacted]"

var sensitiveFormFields = []string{"password", "pass", "passwd"}

// redactCookieList turns "a=1; b=2" into "a=[redacted]; b=[redacted]".
func redactCookieList(value string) string {
	parts := strings.Split(value, ";")
	for i, p := range parts {
		name, _, found := strings.Cut(strings.TrimSpace(p), "=")
		if !found {
			parts[i] = strings.TrimSpace(p)
			continue
		}
		parts[i] = name + "=" + redacted
	}
	return strings.Join(parts, "; ")
}

func redactHeader(key, value string) string {
	switch http.CanonicalHeaderKey(key) {
	case "Cookie":
		return redactCookieList(value)
	case "Set-Cookie":
		name, _, _ := strings.Cut(value, "=")
		return name + "=" + redacted
	case "Authorization":
		return redacted
	}
	return value
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			out.WriteString(fmt.Sprintf("%s: %s\n", k, redactHeader(k, v)))
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func redactFormBody(body string) string {
	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}
	changed := false
	for _, field := range sensitiveFormFields {
		if values.Has(field) {
			values.Set(field, redacted)
			changed = true
		}
	}
	if !changed {
		return body
	}
	return values.Encode()
}

func formatRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	if strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return redactFormBody(string(readBody))
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response url
// 7: response headers in ("Key: Value" format)
// 8: response body
const messageInfoTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

func formatHttpMessage(res *resty.Response) string {
	requestHeaders := formatHeaders(res.Request.RawRequest.Header)
	responseHeaders := formatHeaders(res.Header())

	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = redirected.String()
		}
	}

	return fmt.Sprintf(
		messageInfoTemplate,

		res.Request.Method, res.Request.URL,
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),

		strconv.Itoa(res.StatusCode()), responseUrl,
		responseHeaders,
		res.String(),
	)
}
