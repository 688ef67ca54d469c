package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue", "outcome"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation", "table"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 里程碑状态迁移计数
	MilestoneTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milestone_transition_total",
			Help: "Total number of milestone transitions",
		},
		[]string{"transition"}, // completed, unlocked, approved, template_applied
	)

	ProgressMutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "progress_mutation_duration_seconds",
			Help:    "Duration of serialized progress document mutations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "result"},
	)

	ChatMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_total",
			Help: "Total number of persisted chat messages",
		},
		[]string{"mode"}, // direct, broadcast, broadcast_teachers
	)

	ChatRejectedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rejected_total",
			Help: "Total number of rejected chat send intents",
		},
		[]string{"code"},
	)

	ChatDroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_dropped_frames_total",
			Help: "Frames dropped because a connection's outbound queue was full",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_live_connections",
			Help: "Number of open websocket connections on this instance",
		},
	)

	NotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_created_total",
			Help: "Total number of stored notifications",
		},
		[]string{"kind"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue, outcome string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue, outcome).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(operation, table string) {
	SlowQueryCount.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementMilestoneTransition(transition string) {
	MilestoneTransitionCount.WithLabelValues(transition).Inc()
}

func RecordProgressMutation(operation, result string, duration time.Duration) {
	ProgressMutationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

func IncrementChatMessage(mode string) {
	ChatMessageCount.WithLabelValues(mode).Inc()
}

func IncrementChatRejected(code string) {
	ChatRejectedCount.WithLabelValues(code).Inc()
}

func IncrementNotification(kind string) {
	NotificationCount.WithLabelValues(kind).Inc()
}
