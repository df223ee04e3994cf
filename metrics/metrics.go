// Package metrics records operational counters for the response pipeline.
// Collectors are registered on an injected registerer so tests get isolated
// instances.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "firstresponder"

// Collector implements every recorder interface used by the pipeline.
type Collector struct {
	plansGenerated    *prometheus.CounterVec
	planCompleteness  prometheus.Histogram
	lastCompleteness  prometheus.Gauge
	actionsExecuted   *prometheus.CounterVec
	actionTypes       *prometheus.CounterVec
	memoryOperations  *prometheus.CounterVec
	feedCache         *prometheus.CounterVec
	feedFetchFailures *prometheus.CounterVec
	pipelineOutcomes  *prometheus.CounterVec
	pipelineLatency   prometheus.Histogram
}

// New creates a Collector and registers it on reg. A nil reg creates a
// private registry.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		plansGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_generated_total",
			Help:      "Plans produced by the planner, by outcome.",
		}, []string{"outcome"}),
		planCompleteness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_completeness",
			Help:      "Number of non-empty plan sections (0-4).",
			Buckets:   []float64{0, 1, 2, 3, 4},
		}),
		lastCompleteness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_plan_completeness",
			Help:      "Completeness score of the most recent plan.",
		}),
		actionsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_executed_total",
			Help:      "Plan actions executed, by outcome.",
		}, []string{"outcome"}),
		actionTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_type_total",
			Help:      "Plan actions executed, by action type.",
		}, []string{"type"}),
		memoryOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_operations_total",
			Help:      "Memory store operations, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		feedCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_cache_lookups_total",
			Help:      "Feed cache lookups, by result (hit or miss).",
		}, []string{"result"}),
		feedFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_failures_total",
			Help:      "Failed upstream feed fetches, by source.",
		}, []string{"source"}),
		pipelineOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_requests_total",
			Help:      "Processed emergency messages, by terminal state.",
		}, []string{"state"}),
		pipelineLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end processing time of one emergency message.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	reg.MustRegister(
		c.plansGenerated, c.planCompleteness, c.lastCompleteness,
		c.actionsExecuted, c.actionTypes, c.memoryOperations,
		c.feedCache, c.feedFetchFailures,
		c.pipelineOutcomes, c.pipelineLatency,
	)
	return c
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordPlanGeneration counts a plan and its 0-4 completeness score.
func (c *Collector) RecordPlanGeneration(completeness int, success bool) {
	c.plansGenerated.WithLabelValues(outcome(success)).Inc()
	c.planCompleteness.Observe(float64(completeness))
	c.lastCompleteness.Set(float64(completeness))
}

// RecordActionExecution counts one executed action and its type.
func (c *Collector) RecordActionExecution(actionType string, success bool) {
	c.actionsExecuted.WithLabelValues(outcome(success)).Inc()
	c.actionTypes.WithLabelValues(ActionTypeLabel(actionType)).Inc()
}

// RecordMemoryOperation counts store, retrieve, awareness and feedback calls.
func (c *Collector) RecordMemoryOperation(op string, success bool) {
	c.memoryOperations.WithLabelValues(op, outcome(success)).Inc()
}

func (c *Collector) RecordCacheLookup(hit bool) {
	if hit {
		c.feedCache.WithLabelValues("hit").Inc()
		return
	}
	c.feedCache.WithLabelValues("miss").Inc()
}

func (c *Collector) RecordFeedFailure(source string) {
	c.feedFetchFailures.WithLabelValues(source).Inc()
}

// RecordPipeline records the terminal state of one request and its duration.
func (c *Collector) RecordPipeline(state string, elapsed time.Duration) {
	c.pipelineOutcomes.WithLabelValues(state).Inc()
	c.pipelineLatency.Observe(elapsed.Seconds())
}

// ActionTypeLabel normalizes a free-form action type into a label value.
func ActionTypeLabel(actionType string) string {
	label := strings.ToLower(strings.TrimSpace(actionType))
	if label == "" {
		return "unknown"
	}
	return strings.ReplaceAll(label, " ", "_")
}
