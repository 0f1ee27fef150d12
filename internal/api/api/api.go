package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventform/cmd/middleware"
	"eventform/internal/metrics"
	"eventform/internal/ratelimit"
	"eventform/internal/service"
)

type Routers struct {
	Service   service.Service
	Log       *zerolog.Logger
	Metrics   *metrics.Metrics
	RateStore ratelimit.Store

	SubmitLimit  int
	SubmitWindow time.Duration

	// TrustedProxies may set X-Forwarded-For; nil keys clients by socket address.
	TrustedProxies []string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")
	if err := app.SetTrustedProxies(r.TrustedProxies); err != nil {
		r.Log.Error().Err(err).Strs("trusted_proxies", r.TrustedProxies).Msg("invalid trusted proxies, trusting none")
		_ = app.SetTrustedProxies(nil)
	}

	app.Use(middleware.LoggingMiddleware(r.Log))
	app.Use(middleware.Recovery(r.Log))
	app.Use(middleware.SecurityHeaders())
	app.Use(cors.Default())

	apiGroup := app.Group("/api")

	submit := []gin.HandlerFunc{r.Service.Submit}
	if r.RateStore != nil && r.SubmitLimit > 0 {
		submit = append([]gin.HandlerFunc{
			middleware.RateLimit(r.RateStore, r.SubmitLimit, r.SubmitWindow, r.Log, r.Metrics),
		}, submit...)
	}
	apiGroup.POST("/submit", submit...)
	apiGroup.POST("/payment/callback", r.Service.PaymentCallback)
	apiGroup.GET("/export/csv", r.Service.ExportCSV)
	apiGroup.GET("/export/excel", r.Service.ExportExcel)

	app.GET("/healthz", func(c *ginext.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if r.Metrics != nil {
		app.GET("/metrics", gin.WrapH(r.Metrics.Handler()))
	}

	return app
}
