package restyutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Add("Cookie", "JSESSIONID=abc; portalApp=student")
	headers.Add("Set-Cookie", "tool=xyz; Path=/; HttpOnly")
	headers.Add("Content-Type", "text/html")

	require.Equal(
		t,
		"Content-Type: text/html\n"+
			"Cookie: JSESSIONID=[redacted]; portalApp=[redacted]\n"+
			"Set-Cookie: tool=[redacted]",
		formatHeaders(headers),
	)
}

func TestRedactFormBody(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "password",
			body:     "username=alice&password=hunter2",
			expected: "password=%5Bredacted%5D&username=alice",
		},
		{
			name:     "no sensitive fields",
			body:     "appName=wake&x=1",
			expected: "appName=wake&x=1",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, redactFormBody(test.body))
		})
	}
}
