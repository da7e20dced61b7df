package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestClientIPFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:443", "203.0.113.9"},
		{"real ip header", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.2:443", "198.51.100.4"},
		{"remote addr without port", nil, "192.0.2.10:51234", "192.0.2.10"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:8080", "2001:db8::1"},
		{"remote addr without port left as is", nil, "192.0.2.10", "192.0.2.10"},
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

func TestClientMetadataMiddleware(t *testing.T) {
	var gotIP, gotUA string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotIP = ClientIP(r.Context())
		gotUA = UserAgent(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1000"
	req.Header.Set("User-Agent", "curl/8.0")

	ClientMetadata(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.1", gotIP)
	assert.Equal(t, "curl/8.0", gotUA)
}

type DeviceNameSuite struct {
	suite.Suite
}

func TestDeviceNameSuite(t *testing.T) {
	suite.Run(t, new(DeviceNameSuite))
}

func (s *DeviceNameSuite) TestDeviceName() {
	s.Run("empty user agent returns unknown device", func() {
		s.Equal("Unknown Device", DeviceName("  "))
	})

	s.Run("chrome on desktop includes browser and OS", func() {
		name := DeviceName("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		s.Contains(name, "Chrome")
		s.Contains(name, " on ")
		s.NotContains(name, "  ")
	})

	s.Run("safari on iphone includes platform", func() {
		name := DeviceName("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		s.Contains(name, "iPhone")
	})

	s.Run("firefox on linux includes browser and OS", func() {
		name := DeviceName("Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")
		s.Contains(name, "Firefox")
		s.Contains(name, "Linux")
	})

	s.Run("unrecognised agent still renders", func() {
		name := DeviceName("Unknown/1.0")
		s.Contains(name, " on ")
	})
}
