package metrics

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"rangestaker/core/events"
	"rangestaker/core/types"
	"rangestaker/native/staker"
)

// StakerMetrics tracks engine outcomes, emitted events and rpc traffic.
type StakerMetrics struct {
	operations *prometheus.CounterVec
	events     *prometheus.CounterVec
	rewards    *prometheus.CounterVec
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	throttles  *prometheus.CounterVec
}

var (
	stakerOnce     sync.Once
	stakerRegistry *StakerMetrics
)

// Staker returns the lazily registered metrics singleton.
func Staker() *StakerMetrics {
	stakerOnce.Do(func() {
		stakerRegistry = &StakerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rangestaker",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine mutations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rangestaker",
				Subsystem: "engine",
				Name:      "events_total",
				Help:      "Committed engine events by type.",
			}, []string{"type"}),
			rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rangestaker",
				Subsystem: "engine",
				Name:      "reward_volume_total",
				Help:      "Reward amounts moved, by reward token and flow and flow.",
			}, []string{"token", "flow"}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rangestaker",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rangestaker",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rangestaker",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests rejected by the per-caller rate limiter.",
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			stakerRegistry.operations,
			stakerRegistry.events,
			stakerRegistry.rewards,
			stakerRegistry.requests,
			stakerRegistry.latency,
			stakerRegistry.throttles,
		)
	})
	return stakerRegistry
}

// ObserveOperation records the outcome of an engine mutation.
func (m *StakerMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(label(operation), outcome).Inc()
}

// ObserveRequest records a served JSON-RPC call.
func (m *StakerMetrics) ObserveRequest(method string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "error"
	}
	method = label(method)
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle counts a rate limited request.
func (m *StakerMetrics) RecordThrottle(method string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(label(method)).Inc()
}

// OperationsVec exposes the operation counter for assertions.
func (m *StakerMetrics) OperationsVec() *prometheus.CounterVec { return m.operations }

// EventsVec exposes the event counter for assertions.
func (m *StakerMetrics) EventsVec() *prometheus.CounterVec { return m.events }

// RewardsVec exposes the reward volume counter for assertions.
func (m *StakerMetrics) RewardsVec() *prometheus.CounterVec { return m.rewards }

// RequestsVec exposes the rpc request counter for assertions.
func (m *StakerMetrics) RequestsVec() *prometheus.CounterVec { return m.requests }

// LatencyVec exposes the rpc latency histogram for assertions.
func (m *StakerMetrics) LatencyVec() *prometheus.HistogramVec { return m.latency }

// ThrottlesVec exposes the throttle counter for assertions.
func (m *StakerMetrics) ThrottlesVec() *prometheus.CounterVec { return m.throttles }

// EventEmitter returns an events.Emitter feeding the event and reward counters.
func (m *StakerMetrics) EventEmitter() events.Emitter { return eventMetrics{m: m} }

type eventMetrics struct{ m *StakerMetrics }

// reward flows keyed by event type and the attribute holding the amount
var rewardFlows = map[string][2]string{
	staker.EventTypeIncentiveCreated: {"reward", "funded"},
	staker.EventTypeTokenUnstaked:    {"reward", "accrued"},
	staker.EventTypeRewardClaimed:    {"amount", "claimed"},
	staker.EventTypeIncentiveEnded:   {"refund", "refunded"},
}

// Emit implements events.Emitter.
func (e eventMetrics) Emit(evt events.Event) {
	if e.m == nil || evt == nil {
		return
	}
	kind := evt.EventType()
	e.m.events.WithLabelValues(label(kind)).Inc()
	flow, ok := rewardFlows[kind]
	if !ok {
		return
	}
	payload, ok := evt.(types.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	raw := payload.Event()
	amount, err := uint256.FromDecimal(raw.Attr(flow[0]))
	if err != nil || amount.IsZero() {
		return
	}
	e.m.rewards.WithLabelValues(label(raw.Attr("rewardToken")), flow[1]).Add(toFloat(amount))
}

func label(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return "unknown"
	}
	return value
}

func toFloat(value *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(value.ToBig()).Float64()
	return f
}
