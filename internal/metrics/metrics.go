// Package metrics records bot activity as Prometheus collectors fed by domain.Hooks.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the bot's metrics on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	syncs        *prometheus.CounterVec
	syncDuration prometheus.Histogram
	kicks        *prometheus.CounterVec
	keywords     prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripwire_commands_total",
				Help: "Handled chat commands by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripwire_syncs_total",
				Help: "Keyword sync attempts by result",
			},
			[]string{"result"},
		),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripwire_sync_duration_seconds",
			Help:    "Duration of keyword sync attempts",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		kicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripwire_kicks_total",
				Help: "Members removed for matching a keyword",
			},
			[]string{"result"},
		),
		keywords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwire_keywords",
			Help: "Number of keywords after the last handled command",
		}),
	}
	c.registry.MustRegister(c.commands, c.syncs, c.syncDuration, c.kicks, c.keywords)
	return c
}

// Registry exposes the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Hooks returns domain hooks that update the collectors.
func (c *Collectors) Hooks() domain.Hooks {
	return domain.Hooks{
		OnCommand: func(_ context.Context, e *domain.CommandEvent) {
			c.commands.WithLabelValues(string(e.Command), e.Outcome).Inc()
			c.keywords.Set(float64(e.Keywords))
		},
		OnSync: func(_ context.Context, e *domain.SyncEvent) {
			c.syncs.WithLabelValues(syncResult(e.Err)).Inc()
			c.syncDuration.Observe(e.Duration.Seconds())
		},
		OnKick: func(_ context.Context, e *domain.KickEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			c.kicks.WithLabelValues(result).Inc()
		},
	}
}

func syncResult(err error) string {
	if err == nil {
		return "ok"
	}
	var syncErr *domain.SyncError
	if errors.As(err, &syncErr) {
		return string(syncErr.Kind)
	}
	return "error"
}
