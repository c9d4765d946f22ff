package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"command"},
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

	// 勾选清单项计数
	ChecklistToggleCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_toggle_count",
			Help: "Total number of checklist toggles",
		},
		[]string{"tier", "result"}, // result: ok, invalid, error
	)

	// 阶段状态变更计数
	PhaseTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phase_transition_count",
			Help: "Total number of phase status transitions",
		},
		[]string{"from", "to"},
	)

	// 看板缓存命中
	DashboardCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_cache_count",
			Help: "Dashboard cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// onboarding 提交计数
	OnboardingCommitCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_commit_count",
			Help: "Total number of onboarding commits",
		},
		[]string{"tier", "status"}, // status: success, rejected, failed
	)

	// Outbox 发布结果
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_count",
			Help: "Outbox events published to MQ",
		},
		[]string{"routing_key", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 熔断器状态：0 closed, 1 open, 2 half_open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state",
		},
		[]string{"name"},
	)
)

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录一次慢查询
func IncrementSlowQuery(command string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(command).Inc()
	DBQueryDuration.WithLabelValues("slow", command).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementChecklistToggle 记录一次勾选
func IncrementChecklistToggle(tier, result string) {
	ChecklistToggleCount.WithLabelValues(tier, result).Inc()
}

// IncrementPhaseTransition 记录阶段状态变化
func IncrementPhaseTransition(from, to string) {
	if from == to {
		return
	}
	PhaseTransitionCount.WithLabelValues(from, to).Inc()
}

// IncrementDashboardCache 记录缓存结果
func IncrementDashboardCache(result string) {
	DashboardCacheCount.WithLabelValues(result).Inc()
}

// IncrementOnboardingCommit 记录 onboarding 提交
func IncrementOnboardingCommit(tier, status string) {
	OnboardingCommitCount.WithLabelValues(tier, status).Inc()
}

// IncrementOutboxPublish 记录 outbox 发布结果
func IncrementOutboxPublish(routingKey, status string) {
	OutboxPublishCount.WithLabelValues(routingKey, status).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// SetCircuitBreakerState 记录熔断器当前状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
