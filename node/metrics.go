// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// IMetric is a metric reader refreshed by the metrics manager.
type IMetric interface {
	Read()
}

// IMetricManager periodically reads its metrics and serves them.
type IMetricManager interface {
	Add(metrics ...IMetric)
	Registry() *prometheus.Registry
	Listen(ctx context.Context, route string, port uint16) error
}

type metricsManager struct {
	mtx      sync.RWMutex
	metrics  []IMetric
	interval time.Duration
	registry *prometheus.Registry
	logger   zerolog.Logger
}

// Metrics creates a metrics manager reading its metrics every interval until
// ctx is done.
func Metrics(ctx context.Context, interval time.Duration, logger zerolog.Logger) IMetricManager {
	res := &metricsManager{
		interval: interval,
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	go res.collector(ctx)
	return res
}

func (m *metricsManager) Add(metrics ...IMetric) {
	m.mtx.Lock()
	m.metrics = append(m.metrics, metrics...)
	m.mtx.Unlock()
}

func (m *metricsManager) Registry() *prometheus.Registry { return m.registry }

func (m *metricsManager) read() {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	for _, v := range m.metrics {
		v.Read()
	}
}

func (m *metricsManager) collector(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.read()
		}
	}
}

// Listen serves the registry on route until ctx is done.
func (m *metricsManager) Listen(ctx context.Context, route string, port uint16) error {
	mux := http.NewServeMux()
	mux.Handle(route, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			m.logger.Error().Err(err).Msg("metrics server shutdown")
		}
	}()

	m.logger.Info().Uint16("port", port).Str("route", route).Msg("Metrics server listening")
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
