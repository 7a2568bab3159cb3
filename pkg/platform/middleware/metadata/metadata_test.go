package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"rescue/pkg/requestcontext"
)

func TestDeviceClass(t *testing.T) {
	assert.Equal(t, "unknown", DeviceClass(""))
	assert.Equal(t, "mobile", DeviceClass("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"))
	assert.Equal(t, "desktop", DeviceClass("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"))
	assert.Equal(t, "bot", DeviceClass("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"))
}

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "first forwarded address", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.2 "}, want: "198.51.100.2"},
		{name: "remote addr", remote: "192.0.2.10:5555", want: "192.0.2.10"},
		{name: "ipv6 remote addr", remote: "[::1]:8080", want: "[::1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req))
		})
	}
}

func TestClientMetadataPopulatesContext(t *testing.T) {
	var ip, device string
	h := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		device = requestcontext.Device(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", ip)
	assert.Equal(t, "unknown", device)
}
