/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package confdir

import (
	"github.com/hyperledger-labs/globalconf/globalconf"
	"github.com/hyperledger/fabric-lib-go/common/metrics"
)

const (
	resultPresent = "present"
	resultAbsent  = "absent"
	resultInvalid = "invalid"
	resultError   = "error"
)

var lookupsOpts = metrics.CounterOpts{
	Namespace:  "globalconf",
	Subsystem:  "directory",
	Name:       "lookups_total",
	Help:       "The number of document lookups by kind and result.",
	LabelNames: []string{"kind", "result"},
}

type Metrics struct {
	Lookups metrics.Counter
}

func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{Lookups: p.NewCounter(lookupsOpts)}
}

func (m *Metrics) lookup(kind globalconf.Kind, result string) {
	m.Lookups.With(string(kind), result).Add(1)
}
