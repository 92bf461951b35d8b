/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package core

import (
	"time"

	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger/fabric-lib-go/common/metrics"
)

var (
	generationsOpts = metrics.CounterOpts{
		Namespace:  "globalconf",
		Subsystem:  "assembler",
		Name:       "generations_total",
		Help:       "The number of shared parameters assemblies by result.",
		LabelNames: []string{"result"},
	}

	durationOpts = metrics.HistogramOpts{
		Namespace: "globalconf",
		Subsystem: "assembler",
		Name:      "generation_duration_seconds",
		Help:      "The time it took to assemble shared parameters.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}

	membersOpts = metrics.GaugeOpts{
		Namespace: "globalconf",
		Subsystem: "assembler",
		Name:      "members",
		Help:      "The number of members in the last assembled shared parameters.",
	}

	securityServersOpts = metrics.GaugeOpts{
		Namespace: "globalconf",
		Subsystem: "assembler",
		Name:      "security_servers",
		Help:      "The number of security servers in the last assembled shared parameters.",
	}
)

type Metrics struct {
	Successes       metrics.Counter
	Failures        metrics.Counter
	Duration        metrics.Histogram
	Members         metrics.Gauge
	SecurityServers metrics.Gauge
}

func NewMetrics(p metrics.Provider) *Metrics {
	generations := p.NewCounter(generationsOpts)
	return &Metrics{
		Successes:       generations.With([]string{"success"}...),
		Failures:        generations.With([]string{"failure"}...),
		Duration:        p.NewHistogram(durationOpts),
		Members:         p.NewGauge(membersOpts),
		SecurityServers: p.NewGauge(securityServersOpts),
	}
}

func (m *Metrics) observe(p *globalconf.SharedParameters, err error, elapsed time.Duration) {
	m.Duration.Observe(elapsed.Seconds())
	if err != nil {
		m.Failures.Add(1)
		return
	}
	m.Successes.Add(1)
	m.Members.Set(float64(len(p.Members)))
	m.SecurityServers.Set(float64(len(p.SecurityServers)))
}
