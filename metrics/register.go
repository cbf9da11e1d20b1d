// Copyright 2025 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultSet = NewSet(prometheus.DefaultRegisterer)

// Set is a group of metrics registered with one prometheus registerer.
type Set struct {
	mu       sync.Mutex
	reg      prometheus.Registerer
	counters map[string]*counter
	gauges   map[string]*gauge
}

func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		reg:      reg,
		counters: map[string]*counter{},
		gauges:   map[string]*gauge{},
	}
}

// GetOrCreateCounter returns registered counter with the given name
// or creates new counter if the registry doesn't contain counter with
// the given name.
//
// name must be valid Prometheus-compatible metric with possible labels.
// For instance,
//
//   - foo
//   - foo{bar="baz"}
//   - foo{bar="baz",aaa="b"}
//
// The returned counter is safe to use from concurrent goroutines.
func GetOrCreateCounter(name string, help ...string) Counter {
	c, err := defaultSet.GetOrCreateCounter(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new counter: %w", err))
	}

	return c
}

// GetOrCreateGauge returns registered gauge with the given name
// or creates new gauge if the registry doesn't contain gauge with
// the given name. See GetOrCreateCounter for the name format.
func GetOrCreateGauge(name string, help ...string) Gauge {
	g, err := defaultSet.GetOrCreateGauge(name, help...)
	if err != nil {
		panic(fmt.Errorf("could not get or create new gauge: %w", err))
	}

	return g
}

// Handler serves the metrics registered with the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (s *Set) GetOrCreateCounter(name string, help ...string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.counters[name]; ok {
		return c, nil
	}

	opts, err := counterOpts(name, help)
	if err != nil {
		return nil, err
	}

	var pc prometheus.Counter = prometheus.NewCounter(opts)
	if err := s.reg.Register(pc); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register counter %s: %w", name, err)
		}
		existing, ok := are.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("metric %s already registered with another type", name)
		}
		pc = existing
	}

	c := &counter{pc}
	s.counters[name] = c
	return c, nil
}

func (s *Set) GetOrCreateGauge(name string, help ...string) (Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gauges[name]; ok {
		return g, nil
	}

	copts, err := counterOpts(name, help)
	if err != nil {
		return nil, err
	}

	var pg prometheus.Gauge = prometheus.NewGauge(prometheus.GaugeOpts(copts))
	if err := s.reg.Register(pg); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register gauge %s: %w", name, err)
		}
		existing, ok := are.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, fmt.Errorf("metric %s already registered with another type", name)
		}
		pg = existing
	}

	g := &gauge{pg}
	s.gauges[name] = g
	return g, nil
}

func counterOpts(name string, help []string) (prometheus.CounterOpts, error) {
	metricName, labels, err := parseMetric(name)
	if err != nil {
		return prometheus.CounterOpts{}, err
	}

	opts := prometheus.CounterOpts{
		Name:        metricName,
		Help:        metricName,
		ConstLabels: labels,
	}
	if len(help) > 0 {
		opts.Help = strings.Join(help, " ")
	}
	return opts, nil
}

// parseMetric splits `foo{bar="baz",aaa="b"}` into its name and labels.
func parseMetric(s string) (string, prometheus.Labels, error) {
	if len(s) == 0 {
		return "", nil, errors.New("metric cannot be empty")
	}

	n := strings.IndexByte(s, '{')
	if n < 0 {
		return s, nil, nil
	}

	name := s[:n]
	if len(name) == 0 {
		return "", nil, fmt.Errorf("metric %q has no name", s)
	}
	if s[len(s)-1] != '}' {
		return "", nil, fmt.Errorf("metric %q must end with '}'", s)
	}

	labels := prometheus.Labels{}
	body := s[n+1 : len(s)-1]
	if len(body) == 0 {
		return name, nil, nil
	}
	for _, pair := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return "", nil, fmt.Errorf("metric %q has malformed label %q", s, pair)
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
			return "", nil, fmt.Errorf("metric %q label %q value must be quoted", s, k)
		}
		labels[k] = v[1 : len(v)-1]
	}

	return name, labels, nil
}
