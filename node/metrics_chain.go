// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type statsProvider interface {
	NetName() string
	Stats() map[string]float64
}

type chainMetrics struct {
	sync.Mutex
	metricsByName map[string]prometheus.Gauge
	registerer    prometheus.Registerer
	logger        zerolog.Logger
	netName       string

	chain statsProvider
}

// MetricsOfChain exposes every value of chain.Stats as a gauge.
func MetricsOfChain(chain statsProvider, registerer prometheus.Registerer, logger zerolog.Logger) IMetric {
	return &chainMetrics{
		chain:         chain,
		registerer:    registerer,
		logger:        logger.With().Str("ctx", "metrics").Logger(),
		netName:       chain.NetName(),
		metricsByName: make(map[string]prometheus.Gauge),
	}
}

func (s *chainMetrics) Read() {
	stats := s.chain.Stats()
	for name, value := range stats {
		s.updateGauge(prometheus.BuildFQName("xpcd", "chain", name), value)
	}
}

func (s *chainMetrics) updateGauge(name string, value float64) {
	s.Lock()
	defer s.Unlock()

	m, ok := s.metricsByName[name]
	if !ok {
		m = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			ConstLabels: map[string]string{"net_name": s.netName},
		})
		if err := s.registerer.Register(m); err != nil {
			s.logger.Error().Err(err).Str("metric", name).Msg("can't register metric")
		}
		s.metricsByName[name] = m
	}
	m.Set(value)
}
