// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "xcrouter"

type metrics struct {
	messages      *prometheus.CounterVec
	failures      *prometheus.CounterVec
	provisioned   prometheus.Counter
	dispatched    prometheus.Counter
	bridgeForward *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages",
			Help:      "Number of execute messages handled, by message",
		}, []string{"msg"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures",
			Help:      "Number of execute messages that failed, by message",
		}, []string{"msg"}),
		provisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "interpreters_provisioned",
			Help:      "Number of interpreter instantiation replies recorded",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "programs_dispatched",
			Help:      "Number of programs dispatched to an interpreter",
		}),
		bridgeForward: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bridge_forwards",
			Help:      "Number of programs forwarded to another network, by path",
		}, []string{"path"}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.messages),
		registerer.Register(m.failures),
		registerer.Register(m.provisioned),
		registerer.Register(m.dispatched),
		registerer.Register(m.bridgeForward),
	)
	return m, errs.Err
}
