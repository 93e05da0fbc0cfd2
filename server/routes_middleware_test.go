package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAllowedHost(t *testing.T) {
	t.Setenv("DALLE_ORIGINS", "https://studio.example.com,https://*.example.org")

	cases := map[string]bool{
		"":                   true,
		"localhost":          true,
		"LOCALHOST":          true,
		"box.local":          true,
		"svc.internal":       true,
		"app.localhost":      true,
		"studio.example.com": true,
		"example.com":        false,
		"a.example.org":      false,
		"evil.com":           false,
	}

	for host, want := range cases {
		if got := allowedHost(host); got != want {
			t.Errorf("allowedHost(%q) = %v, erwartet %v", host, got, want)
		}
	}
}

func TestAllowedHostsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := func(addr net.Addr) http.Handler {
		r := gin.New()
		r.Use(allowedHostsMiddleware(addr))
		r.Any("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	loopback := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 11500}
	public := &net.TCPAddr{IP: net.IPv4(0, 0, 0, 0), Port: 11500}

	cases := []struct {
		name   string
		addr   net.Addr
		method string
		host   string
		want   int
	}{
		{"no addr", nil, http.MethodGet, "evil.com", http.StatusOK},
		{"public bind", public, http.MethodGet, "evil.com", http.StatusOK},
		{"loopback ip", loopback, http.MethodGet, "127.0.0.1:11500", http.StatusOK},
		{"private ip", loopback, http.MethodGet, "192.168.1.10", http.StatusOK},
		{"localhost", loopback, http.MethodGet, "localhost:11500", http.StatusOK},
		{"options", loopback, http.MethodOptions, "localhost", http.StatusNoContent},
		{"foreign host", loopback, http.MethodGet, "evil.com", http.StatusForbidden},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Host = tt.host
			w := httptest.NewRecorder()
			router(tt.addr).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status %d, erwartet %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	const id = "0d8f5c9e-4a1b-4b8e-9f7a-2c3d4e5f6a7b"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", id)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != id || w.Header().Get("X-Request-Id") != id {
		t.Errorf("vorhandene ID sollte uebernommen werden: %q", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "not-a-uuid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Body.String(); got == "not-a-uuid" || got == "" {
		t.Errorf("ungueltige ID sollte ersetzt werden: %q", got)
	}
}
