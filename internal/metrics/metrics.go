package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "gostash_http_request_duration_seconds",
	Help:    "HTTP request latency, by method, route and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// Register attaches the Prometheus scrape endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// ObserveRequest records the latency of one handled request. Unmatched
// paths collapse into a single label so probes cannot explode cardinality.
func ObserveRequest(c *gin.Context, started time.Time) {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	requestDuration.
		WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
		Observe(time.Since(started).Seconds())
}
