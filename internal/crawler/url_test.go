package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps explicit port", "https://example.com:8443/a", "https://example.com:8443/a"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"sorts query parameters", "https://example.com/a?z=1&a=2", "https://example.com/a?a=2&z=1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLEquivalentFormsCollapse(t *testing.T) {
	t.Parallel()

	a, err := NormalizeURL("HTTP://Example.com:80/page?b=2&a=1#top")
	require.NoError(t, err)
	b, err := NormalizeURL("http://example.com/page?a=1&b=2")
	require.NoError(t, err)
	require.Equal(t, b, a)
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	t.Parallel()

	_, err := NormalizeURL("/just/a/path")
	require.Error(t, err)
	_, err = NormalizeURL("not a url at all")
	require.Error(t, err)
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	domain, err := DomainOf("https://Sub.Example.COM:8080/page")
	require.NoError(t, err)
	require.Equal(t, "sub.example.com", domain)

	_, err = DomainOf("/relative")
	require.Error(t, err)
}
