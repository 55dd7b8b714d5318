package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func remoteAfter(t *testing.T, trusted []netip.Prefix, remote string, headers map[string]string) string {
	t.Helper()
	var got string
	h := RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.RemoteAddr
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestRealIPIgnoresHeadersFromUntrustedPeer(t *testing.T) {
	got := remoteAfter(t, nil, "203.0.113.9:4000", map[string]string{
		"X-Forwarded-For": "1.2.3.4",
		"X-Real-IP":       "5.6.7.8",
	})
	require.Equal(t, "203.0.113.9:4000", got)

	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	got = remoteAfter(t, proxies, "203.0.113.9:4000", map[string]string{"X-Forwarded-For": "1.2.3.4"})
	require.Equal(t, "203.0.113.9:4000", got)
}

func TestRealIPFromTrustedProxy(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	// A client-supplied hop in front of the real one is skipped.
	got := remoteAfter(t, proxies, "10.1.1.1:4000", map[string]string{"X-Forwarded-For": "6.6.6.6, 198.51.100.4, 10.2.2.2"})
	require.Equal(t, "198.51.100.4", got)

	got = remoteAfter(t, proxies, "10.1.1.1:4000", map[string]string{"X-Real-IP": "198.51.100.5"})
	require.Equal(t, "198.51.100.5", got)

	got = remoteAfter(t, proxies, "10.1.1.1:4000", map[string]string{"X-Forwarded-For": "not-an-ip"})
	require.Equal(t, "10.1.1.1:4000", got)
}
