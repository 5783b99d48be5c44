package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// ActivePolls 正在轮询中的存款数
	ActivePolls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_active_polls",
			Help: "Number of deposits currently being polled",
		},
	)

	// DepositOutcomes 到达终态的存款计数
	DepositOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_deposit_outcomes_total",
			Help: "Deposits that reached a terminal status",
		},
		[]string{"status"},
	)

	// QuizSubmissions 按结果统计的测验提交数
	QuizSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_submissions_total",
			Help: "Quiz submissions by result",
		},
		[]string{"result"},
	)

	// AffiliateEvents 推广点击/成交事件
	AffiliateEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affiliate_events_total",
			Help: "Affiliate click and conversion events",
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ActivePolls)
	prometheus.MustRegister(DepositOutcomes)
	prometheus.MustRegister(QuizSubmissions)
	prometheus.MustRegister(AffiliateEvents)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
