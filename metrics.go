// Copyright (c) 2014 VMware, Inc. All Rights Reserved.

package ipmi

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Packet results
const (
	resultHandled = "handled"
	resultSilent  = "silent"
	resultDropped = "dropped"
)

// Metrics are the simulator's prometheus collectors
type Metrics struct {
	Packets        *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	SessionsActive prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg, if not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipmisim",
			Name:      "packets_total",
			Help:      "IPMI packets received, by result.",
		}, []string{"result"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ipmisim",
			Name:      "commands_total",
			Help:      "IPMI commands dispatched, by network function and command.",
		}, []string{"netfn", "cmd"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ipmisim",
			Name:      "sessions_active",
			Help:      "Sessions in the session table.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Packets, m.Commands, m.SessionsActive)
	}

	return m
}

func (m *Metrics) packet(result string) {
	m.Packets.WithLabelValues(result).Inc()
}

func (m *Metrics) command(netfn NetworkFunction, cmd Command) {
	m.Commands.WithLabelValues(fmt.Sprintf("0x%02x", uint8(netfn)), fmt.Sprintf("0x%02x", uint8(cmd))).Inc()
}
