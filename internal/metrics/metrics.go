package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BattleRoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "luleme_battle_rooms_active",
		Help: "Current number of in-memory battle rooms",
	})
	BattleTapsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "luleme_battle_taps_total",
		Help: "Total number of accepted battle taps",
	})
	DailyRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "luleme_daily_records_total",
		Help: "Total number of daily tap records written",
	})
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "luleme_ws_connections",
		Help: "Current number of active battle websocket connections",
	})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		BattleRoomsActive, BattleTapsTotal, DailyRecordsTotal,
		WsConnections, HttpRequestsTotal, HttpRequestDuration,
	)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
