// Package metrics exposes Prometheus collectors for the HTTP layer and the
// HealCoin ledger.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "healcoin"

// Collector owns a private registry so several instances can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	coinsCredited  prometheus.Counter
	coinsDebited   prometheus.Counter
	coinsRedeemed  prometheus.Counter
	coinsRefunded  prometheus.Counter
	redemptions    *prometheus.CounterVec
	ledgerFailures *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	c.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	c.coinsCredited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "coins_credited_total", Help: "HealCoins credited to wallets",
	})
	c.coinsDebited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "coins_debited_total", Help: "HealCoins spent from wallets",
	})
	c.coinsRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "coins_redeemed_total", Help: "HealCoins held by submitted redemptions",
	})
	c.coinsRefunded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "coins_refunded_total", Help: "HealCoins returned by rejected redemptions",
	})
	c.redemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "redemptions_total", Help: "Redemption transitions by resulting status",
	}, []string{"status"})
	c.ledgerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "ledger_failures_total", Help: "Rejected ledger operations by reason",
	}, []string{"operation", "reason"})

	c.registry.MustRegister(
		c.httpRequestsTotal, c.httpRequestDuration,
		c.coinsCredited, c.coinsDebited, c.coinsRedeemed, c.coinsRefunded,
		c.redemptions, c.ledgerFailures,
	)
	return c
}

// Middleware records request counts and latency per route template.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := ctx.Request.Method
		c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return func(ctx *gin.Context) {
		h.ServeHTTP(ctx.Writer, ctx.Request)
	}
}

// The recorders below accept a nil receiver so services can run without metrics.

func (c *Collector) Credited(amt decimal.Decimal) {
	if c != nil {
		c.coinsCredited.Add(amt.InexactFloat64())
	}
}

func (c *Collector) Debited(amt decimal.Decimal) {
	if c != nil {
		c.coinsDebited.Add(amt.InexactFloat64())
	}
}

func (c *Collector) Redeemed(amt decimal.Decimal) {
	if c != nil {
		c.coinsRedeemed.Add(amt.InexactFloat64())
		c.redemptions.WithLabelValues("pending").Inc()
	}
}

func (c *Collector) Resolved(status string, refunded decimal.Decimal) {
	if c == nil {
		return
	}
	c.redemptions.WithLabelValues(status).Inc()
	if refunded.IsPositive() {
		c.coinsRefunded.Add(refunded.InexactFloat64())
	}
}

func (c *Collector) Failed(operation, reason string) {
	if c != nil {
		c.ledgerFailures.WithLabelValues(operation, reason).Inc()
	}
}
