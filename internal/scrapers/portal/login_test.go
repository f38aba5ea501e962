package portal

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLoginForm(t *testing.T) {
	testCases := []struct {
		name     string
		page     string
		expected loginForm
	}{
		{
			name: "form with hidden tokens",
			page: `<html><body>
				<form id="search" action="/search"><input type="text" name="q"></form>
				<form action="/campus/verify.jsp?nonBrowser=true" method="post">
					<input type="hidden" name="appName" value="wake">
					<input type="hidden" name="lt" value="LT-123">
					<input type="text" name="j_username">
					<input type="text" name="nickname">
					<input type="password" name="j_password">
					<input type="submit" value="Log In">
				</form>
			</body></html>`,
			expected: loginForm{
				action:        "/campus/verify.jsp?nonBrowser=true",
				usernameField: "j_username",
				passwordField: "j_password",
				hidden:        url.Values{"appName": {"wake"}, "lt": {"LT-123"}},
			},
		},
		{
			name: "app name from script",
			page: `<html><head><script>var portal = { appName: 'durham' };</script></head>
				<body><div>Loading...</div></body></html>`,
			expected: loginForm{
				usernameField: "username",
				passwordField: "password",
				hidden:        url.Values{"appName": {"durham"}},
			},
		},
		{
			name: "no form at all",
			page: `<html><body><p>Maintenance</p></body></html>`,
			expected: loginForm{
				usernameField: "username",
				passwordField: "password",
				hidden:        url.Values{},
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			form, err := parseLoginForm([]byte(test.page))
			require.NoError(t, err)
			require.Equal(t, test.expected, form)
		})
	}
}

func TestResolveLocation(t *testing.T) {
	testCases := []struct {
		current  string
		location string
		expected string
	}{
		{
			current:  "https://wake.infinitecampus.org/campus/verify.jsp",
			location: "/campus/portal/home.jsp",
			expected: "https://wake.infinitecampus.org/campus/portal/home.jsp",
		},
		{
			current:  "https://wake.infinitecampus.org/campus/portal/students/wake.jsp",
			location: "sso.jsp?step=2",
			expected: "https://wake.infinitecampus.org/campus/portal/students/sso.jsp?step=2",
		},
		{
			current:  "https://wake.infinitecampus.org/campus/verify.jsp",
			location: "https://idp.example.org/saml",
			expected: "https://idp.example.org/saml",
		},
	}

	for _, test := range testCases {
		resolved, err := resolveLocation(test.current, test.location)
		require.NoError(t, err)
		require.Equal(t, test.expected, resolved)
	}
}

func TestStatusClasses(t *testing.T) {
	require.True(t, isRedirect(302))
	require.True(t, isRedirect(307))
	require.False(t, isRedirect(200))
	require.True(t, isSuccess(204))
	require.False(t, isSuccess(401))
}
