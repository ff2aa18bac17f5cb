// Package metrics exposes engine activity as Prometheus collectors.
//
// A Collector is fed through domain.Hooks, so it can be merged with any
// other hooks the host installs:
//
//	m := metrics.New()
//	hooks := m.Hooks().Merge(auditHooks)
//
// The collectors live on a private registry. Hosts that run their own
// exporter can register them elsewhere through Collectors.
package metrics

import (
	"context"
	"fmt"
	"io"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "sam"

// Collector counts batches, commands and lifecycle transitions.
type Collector struct {
	registry *prometheus.Registry

	batches       prometheus.Counter
	batchDuration prometheus.Histogram
	commands      *prometheus.CounterVec
	commandTime   *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	dropped       *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of command batches applied.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of command batches.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of executed commands.",
		}, []string{"type", "origin", "result"}),
		commandTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of individual commands.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by source and target phase.",
		}, []string{"event", "from", "to"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Events consumed without effect while processing.",
		}, []string{"event"}),
	}

	c.registry.MustRegister(c.Collectors()...)
	return c
}

// Collectors returns every collector for registration on another registry.
func (c *Collector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.batches, c.batchDuration, c.commands, c.commandTime, c.transitions, c.dropped,
	}
}

// Registry returns the private registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Hooks returns the lifecycle hooks that feed the collectors.
func (c *Collector) Hooks() domain.Hooks {
	return domain.Hooks{
		OnBatchEnd: func(_ context.Context, e *domain.BatchEvent) {
			c.batches.Inc()
			c.batchDuration.Observe(e.Duration.Seconds())
		},
		OnCommand: func(_ context.Context, e *domain.CommandEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			c.commands.WithLabelValues(string(e.Type), string(e.Origin), result).Inc()
			c.commandTime.WithLabelValues(string(e.Type)).Observe(e.Duration.Seconds())
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			if e.Dropped {
				c.dropped.WithLabelValues(string(e.Event)).Inc()
				return
			}
			c.transitions.WithLabelValues(string(e.Event), string(e.From), string(e.To)).Inc()
		},
	}
}

// WriteText dumps the registry in the Prometheus text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
