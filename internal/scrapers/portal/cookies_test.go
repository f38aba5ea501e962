package portal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeCookies(t *testing.T) {
	testCases := []struct {
		name       string
		existing   string
		setCookies []string
		expected   string
	}{
		{
			name:       "attributes are dropped",
			setCookies: []string{"JSESSIONID=abc; Path=/campus; HttpOnly; Secure"},
			expected:   "JSESSIONID=abc",
		},
		{
			name:       "appends in first seen order",
			existing:   "a=1",
			setCookies: []string{"b=2; Path=/", "c=3"},
			expected:   "a=1; b=2; c=3",
		},
		{
			name:       "comma joined values",
			setCookies: []string{"a=1; Expires=Wed, 21 Oct 2037 07:28:00 GMT; Path=/, b=2; HttpOnly"},
			expected:   "a=1; b=2",
		},
		{
			name:       "present cookie replaces its value in place",
			existing:   "a=1; b=2; c=3",
			setCookies: []string{"b=20"},
			expected:   "a=1; b=20; c=3",
		},
		{
			name:       "malformed values are skipped",
			existing:   "a=1",
			setCookies: []string{"", "novalue", "=orphan"},
			expected:   "a=1",
		},
		{
			name:       "empty value is kept",
			setCookies: []string{"flag=; Path=/"},
			expected:   "flag=",
		},
		{
			name:       "max age zero deletes",
			existing:   "a=1; cleared=2; b=3",
			setCookies: []string{"cleared=; Max-Age=0"},
			expected:   "a=1; b=3",
		},
		{
			name:       "past expires deletes",
			existing:   "a=1; cleared=2",
			setCookies: []string{"cleared=deleted; Expires=Thu, 01 Jan 1970 00:00:00 GMT; Path=/"},
			expected:   "a=1",
		},
		{
			name:       "expired cookie that was never set is ignored",
			existing:   "a=1",
			setCookies: []string{"ghost=; Max-Age=-1", "b=2; Max-Age=3600"},
			expected:   "a=1; b=2",
		},
		{
			name:       "set again after deletion is appended",
			existing:   "a=1; b=2",
			setCookies: []string{"a=; Max-Age=0", "a=3"},
			expected:   "b=2; a=3",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, MergeCookies(test.existing, test.setCookies...))
		})
	}
}

func TestMergeCookiesIdempotent(t *testing.T) {
	sequences := [][]string{
		{"a=1"},
		{"a=1; Path=/", "b=2; HttpOnly"},
		{"x=1, y=2; Expires=Thu, 01 Jan 1970 00:00:00 GMT", "z=3"},
		{"a=1", "a=1", "b=2", "a=1"},
	}

	for _, setCookies := range sequences {
		header := ""
		for _, c := range setCookies {
			header = MergeCookies(header, c)
		}
		for _, c := range setCookies {
			require.Equal(t, header, MergeCookies(header, c), "merging %q again changed the header", c)
		}
		require.Equal(t, header, MergeCookies(header, setCookies...))
	}
}

func TestSessionCookieNames(t *testing.T) {
	session := Session{CookieHeader: "JSESSIONID=abc; portalApp=student; hop1=v1"}
	require.Equal(t, []string{"JSESSIONID", "portalApp", "hop1"}, session.CookieNames())
}
