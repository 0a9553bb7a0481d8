package server

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrustedRealIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name       string
		proxies    []netip.Prefix
		remoteAddr string
		want       string
	}{
		{name: "no proxies configured", remoteAddr: "192.0.2.7:51000", want: "192.0.2.7:51000"},
		{name: "untrusted peer", proxies: proxies, remoteAddr: "192.0.2.7:51000", want: "192.0.2.7:51000"},
		{name: "trusted peer", proxies: proxies, remoteAddr: "10.1.2.3:51000", want: "203.0.113.9"},
		{name: "garbage remote addr", proxies: proxies, remoteAddr: "not-an-ip", want: "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := trustedRealIP(tt.proxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/authenticate", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			h.ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, tt.want, seen)
		})
	}
}
