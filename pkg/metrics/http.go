package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	httpReqCnt = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paygate",
		Name:      "http_requests_total",
		Help:      "HTTP requests partitioned by status code, method and route.",
	}, []string{"code", "method", "route"})

	httpReqDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paygate",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
	}, []string{"code", "method", "route"})
)

// GinMiddleware records request count and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		code := strconv.Itoa(c.Writer.Status())
		httpReqCnt.WithLabelValues(code, c.Request.Method, route).Inc()
		httpReqDur.WithLabelValues(code, c.Request.Method, route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Serve starts a standalone listener exposing /metrics. Returns the server so
// the caller can shut it down.
func Serve(addr string, log *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server error: %v", err)
		}
	}()
	return srv
}
