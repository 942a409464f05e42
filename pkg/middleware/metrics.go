package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics はHTTPリクエストのPrometheusメトリクスを保持する。
type HTTPMetrics struct {
	// requests はルート・メソッド・ステータスごとのリクエスト数。
	requests *prometheus.CounterVec
	// latency はルート・メソッド・ステータスごとのレイテンシ分布。
	latency *prometheus.HistogramVec
}

// NewHTTPMetrics はHTTPメトリクスを生成し、指定されたレジストリに登録する。
func NewHTTPMetrics(reg prometheus.Registerer, namespace string) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

// Handler はリクエストを計測するGinミドルウェアを返す。
// ラベルのカーディナリティを抑えるため、ルートはパステンプレートで記録する。
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"route":  route,
			"method": c.Request.Method,
			"code":   strconv.Itoa(c.Writer.Status()),
		}
		m.requests.With(labels).Inc()
		m.latency.With(labels).Observe(time.Since(start).Seconds())
	}
}
