// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts flow outcomes.
type Metrics struct {
	Flows *prometheus.CounterVec
}

// NewMetrics creates and registers the flow counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Flows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_flow_total",
				Help: "Auth flow invocations by flow and outcome code",
			},
			[]string{"flow", "outcome"},
		),
	}
	reg.MustRegister(m.Flows)
	return m
}

func (m *Metrics) observe(flow string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(CodeOf(err))
	}
	m.Flows.WithLabelValues(flow, outcome).Inc()
}
