// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the savevault Prometheus metrics. It satisfies
// auth.Recorder.
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	RegistrationsTotal *prometheus.CounterVec
	SavesTotal         *prometheus.CounterVec
	BackendInfo        *prometheus.GaugeVec
}

// NewMetrics creates and registers the savevault metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savevault_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savevault_registrations_total",
				Help: "Account registrations by outcome",
			},
			[]string{"outcome"},
		),
		SavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "savevault_saves_total",
				Help: "Progress saves by outcome",
			},
			[]string{"outcome"},
		),
		BackendInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "savevault_backend_info",
				Help: "Set to 1 for the storage backend in use",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.LoginsTotal, m.RegistrationsTotal, m.SavesTotal, m.BackendInfo)
	return m
}

// RecordLogin counts one login outcome.
func (m *Metrics) RecordLogin(outcome string) {
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordRegistration counts one registration outcome.
func (m *Metrics) RecordRegistration(outcome string) {
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordSave counts one save outcome.
func (m *Metrics) RecordSave(outcome string) {
	m.SavesTotal.WithLabelValues(outcome).Inc()
}

// SetBackend marks kind as the active backend.
func (m *Metrics) SetBackend(kind string) {
	m.BackendInfo.Reset()
	m.BackendInfo.WithLabelValues(kind).Set(1)
}
