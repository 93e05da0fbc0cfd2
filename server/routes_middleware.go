// routes_middleware.go - Middleware fuer den HTTP-Router
// Enthaelt: requestIDMiddleware(), requestLogger(), allowedHostsMiddleware()

package server

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ollama/dalle/envconfig"
)

// requestIDMiddleware vergibt jeder Anfrage eine ID (X-Request-Id).
// Gueltige UUIDs vom Client werden uebernommen.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// requestLogger loggt jede Anfrage mit Status, Dauer und Request-ID
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey))
	}
}

// localAddr prueft ob ip lokal erreichbar ist (Loopback, privat oder eigenes Interface)
func localAddr(ip netip.Addr) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			if prefix, err := netip.ParsePrefix(a.String()); err == nil && prefix.Addr() == ip {
				return true
			}
		}
	}

	return false
}

// originHosts gibt die Hostnamen aus DALLE_ORIGINS ohne Wildcards zurueck
func originHosts() []string {
	var hosts []string
	for _, origin := range envconfig.AllowedOrigins() {
		u, err := url.Parse(origin)
		if err != nil || strings.Contains(u.Host, "*") {
			continue
		}
		hosts = append(hosts, strings.ToLower(u.Hostname()))
	}
	return hosts
}

// allowedHost prueft einen Host-Header gegen lokale Namen und DALLE_ORIGINS
func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	for _, tld := range []string{"localhost", "local", "internal"} {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return slices.Contains(originHosts(), host)
}

// allowedHostsMiddleware schuetzt einen auf Loopback gebundenen Server
// gegen DNS-Rebinding: fremde Host-Header werden mit 403 abgewiesen.
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if ip, err := netip.ParseAddr(host); err == nil && localAddr(ip) {
			c.Next()
			return
		}

		if !allowedHost(host) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
