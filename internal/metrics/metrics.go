// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus collectors for the sync client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Channel state gauge values.
const (
	StateClosed     = 0
	StateConnecting = 1
	StateOpen       = 2
)

// Metrics holds the client's collectors on a private registry, so tests can
// create instances freely without duplicate registration panics.
type Metrics struct {
	registry *prometheus.Registry

	ChannelState          prometheus.Gauge
	ReconnectAttempts     prometheus.Counter
	NotificationsIngested prometheus.Counter
	HeartbeatsAnswered    prometheus.Counter
	FramesDropped         prometheus.Counter
	APIErrors             prometheus.Counter
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChannelState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketsync_channel_state",
			Help: "Notification channel state (0=closed, 1=connecting, 2=open).",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsync_channel_reconnect_attempts_total",
			Help: "Reconnection attempts after abnormal channel closures.",
		}),
		NotificationsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsync_notifications_ingested_total",
			Help: "Real-time notifications ingested from the channel.",
		}),
		HeartbeatsAnswered: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsync_channel_heartbeats_total",
			Help: "Heartbeat frames answered on the channel.",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsync_channel_frames_dropped_total",
			Help: "Malformed inbound frames dropped.",
		}),
		APIErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketsync_api_errors_total",
			Help: "Failed calls against the marketplace REST API.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
