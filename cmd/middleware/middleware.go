package middleware

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventform/internal/dto"
	"eventform/internal/metrics"
	"eventform/internal/ratelimit"
)

func LoggingMiddleware(log *zerolog.Logger) gin.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}

// Recovery turns a handler panic into the generic 500 body.
func Recovery(log *zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *ginext.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("handler panicked")
		dto.InternalServerError(c)
		c.Abort()
	})
}

// SecurityHeaders sets the usual hardening headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *ginext.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-DNS-Prefetch-Control", "off")
		h.Set("X-Download-Options", "noopen")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}

// RateLimit allows limit requests per client address per window. A failing
// store lets the request through.
func RateLimit(store ratelimit.Store, limit int, window time.Duration, log *zerolog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *ginext.Context) {
		key := "submit:" + c.ClientIP()
		allowed, err := store.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			log.Error().Err(err).Str("client_ip", c.ClientIP()).Msg("rate limit store failed")
			c.Next()
			return
		}
		if !allowed {
			m.IncRateLimited()
			dto.TooManyRequestsError(c)
			return
		}
		c.Next()
	}
}
