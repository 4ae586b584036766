package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pod_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pod_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Protocol metrics
	AgentsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pod_agents_registered_total",
			Help: "Total agents registered",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pod_messages_sent_total",
			Help: "Total direct messages recorded",
		},
	)

	BroadcastsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pod_broadcasts_sent_total",
			Help: "Total channel broadcasts",
		},
		[]string{"visibility"}, // "public" or "private"
	)

	ChannelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pod_channels_created_total",
			Help: "Total channels created",
		},
	)

	EscrowDeposits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pod_escrow_deposits_total",
			Help: "Total escrow deposits",
		},
	)

	CommitConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pod_commit_conflicts_total",
			Help: "Total optimistic commit conflicts",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pod_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pod_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pod_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pod_store_latency_seconds",
			Help:    "Account store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
