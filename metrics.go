// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package ledger_eos_go

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const commandLabel = "command"

// Metrics counts APDU exchanges per command kind. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	commands *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the exchange metrics under namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "apdu_commands",
			Help:      "Number of APDU commands sent to the device",
		}, []string{commandLabel}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "apdu_failures",
			Help:      "Number of APDU commands that failed or returned a non-success status word",
		}, []string{commandLabel}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apdu_latency_seconds",
			Help:      "Time spent waiting for the device to answer a command",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
		}, []string{commandLabel}),
	}
	err := errors.Join(
		reg.Register(m.commands),
		reg.Register(m.failures),
		reg.Register(m.latency),
	)
	return m, err
}

func (m *Metrics) observe(kind CommandKind, start time.Time, err error) {
	if m == nil {
		return
	}
	label := kind.String()
	m.commands.WithLabelValues(label).Inc()
	m.latency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(label).Inc()
	}
}
