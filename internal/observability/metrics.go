package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bridge_http_requests_total",
			Help: "Total number of HTTP requests processed by the local bridge.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_bridge_http_request_duration_seconds",
			Help:    "Bridge HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_connection_state",
			Help: "1 for the current websocket connection state, 0 otherwise.",
		},
		[]string{"state"},
	)
	wsReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_reconnects_total",
			Help: "Total number of websocket reconnect attempts.",
		},
	)
	wsFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_frames_total",
			Help: "Total number of websocket frames by direction, kind and outcome.",
		},
		[]string{"direction", "kind", "outcome"},
	)
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "Notification decisions for incoming messages.",
		},
		[]string{"outcome"},
	)
	storeMergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_merges_total",
			Help: "Total number of REST snapshots merged into the conversation store.",
		},
		[]string{"kind"},
	)
	restRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rest_requests_total",
			Help: "Total number of REST collaborator calls by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

var connectionStates = []string{"DISCONNECTED", "CONNECTING", "CONNECTED", "FAILED"}

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsConnectionState,
		wsReconnectsTotal,
		wsFramesTotal,
		notificationsTotal,
		storeMergesTotal,
		restRequestsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// SetWSState marks state as the only active connection state.
func SetWSState(state string) {
	for _, s := range connectionStates {
		if s == state {
			wsConnectionState.WithLabelValues(s).Set(1)
		} else {
			wsConnectionState.WithLabelValues(s).Set(0)
		}
	}
}

func IncWSReconnect() {
	wsReconnectsTotal.Inc()
}

func IncWSFrame(direction, kind, outcome string) {
	wsFramesTotal.WithLabelValues(direction, kind, outcome).Inc()
}

func IncNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

func IncStoreMerge(kind string) {
	storeMergesTotal.WithLabelValues(kind).Inc()
}

func IncRESTRequest(endpoint, result string) {
	restRequestsTotal.WithLabelValues(endpoint, result).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
