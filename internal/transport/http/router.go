package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/finmen/healcoin-wallet/internal/auth"
	"github.com/finmen/healcoin-wallet/internal/config"
	"github.com/finmen/healcoin-wallet/internal/metrics"
	"github.com/finmen/healcoin-wallet/internal/service"
)

// Deps is everything the router wires together.
type Deps struct {
	Wallets     *service.WalletService
	Redemptions *service.RedemptionService
	Metrics     *metrics.Collector
	Log         *zap.SugaredLogger
	RateLimit   config.RateLimitConfig
	JWTSecret   string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(d.Log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", d.Metrics.Handler())
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "healcoin-wallet"})
	})

	h := &Handler{wallets: d.Wallets, redemptions: d.Redemptions, log: d.Log}
	api := r.Group("/api")
	api.Use(RateLimitMiddleware(d.RateLimit.RPS, d.RateLimit.Burst))
	api.Use(auth.Middleware(d.JWTSecret))
	RegisterHandlers(api, h)
	return r
}
