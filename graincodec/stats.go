// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package graincodec

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StatisticsSink is the narrow counters-and-timing interface named in §4.7
// and §6. All updates must be non-blocking. Enabled reports the sink's
// collection flag; the engine does not consult it and calls the update
// methods on every operation.
type StatisticsSink interface {
	Enabled() bool

	IncCopies()
	IncSerializations()
	IncDeserializations()
	IncFallbackCopies()
	IncFallbackSerializations()
	IncFallbackDeserializations()

	ObserveCopyTime(d time.Duration)
	ObserveSerTime(d time.Duration)
	ObserveDeserTime(d time.Duration)
	ObserveFallbackCopyTime(d time.Duration)
	ObserveFallbackSerTime(d time.Duration)
	ObserveFallbackDeserTime(d time.Duration)

	// Warn surfaces a non-fatal, user-visible notice — used today for the
	// "large object" allocation warning of §4.5/§9; it never alters
	// control flow.
	Warn(msg string, args ...interface{})
}

// NoopSink discards everything; it is the default when the host does not
// pass a sink to NewEngine.
type NoopSink struct{}

func (NoopSink) Enabled() bool                                { return false }
func (NoopSink) IncCopies()                                   {}
func (NoopSink) IncSerializations()                           {}
func (NoopSink) IncDeserializations()                         {}
func (NoopSink) IncFallbackCopies()                           {}
func (NoopSink) IncFallbackSerializations()                   {}
func (NoopSink) IncFallbackDeserializations()                 {}
func (NoopSink) ObserveCopyTime(time.Duration)                {}
func (NoopSink) ObserveSerTime(time.Duration)                 {}
func (NoopSink) ObserveDeserTime(time.Duration)               {}
func (NoopSink) ObserveFallbackCopyTime(time.Duration)        {}
func (NoopSink) ObserveFallbackSerTime(time.Duration)         {}
func (NoopSink) ObserveFallbackDeserTime(time.Duration)       {}
func (NoopSink) Warn(string, ...interface{})                  {}

// CountingSink is a dependency-free, atomic-counter sink for hosts that want
// statistics without running Prometheus. Timings are accumulated as total
// nanoseconds; divide by the matching counter for a mean.
type CountingSink struct {
	enabled int32

	copies, serializations, deserializations                            int64
	fallbackCopies, fallbackSerializations, fallbackDeserializations     int64
	copyTimeNs, serTimeNs, deserTimeNs                                   int64
	fallbackCopyTimeNs, fallbackSerTimeNs, fallbackDeserTimeNs           int64
	warnings []string
}

// NewCountingSink returns a sink whose Enabled reports enabled. Its counters
// and timings are updated whether or not enabled is true.
func NewCountingSink(enabled bool) *CountingSink {
	s := &CountingSink{}
	if enabled {
		atomic.StoreInt32(&s.enabled, 1)
	}
	return s
}

func (s *CountingSink) Enabled() bool { return atomic.LoadInt32(&s.enabled) != 0 }

func (s *CountingSink) IncCopies()                   { atomic.AddInt64(&s.copies, 1) }
func (s *CountingSink) IncSerializations()           { atomic.AddInt64(&s.serializations, 1) }
func (s *CountingSink) IncDeserializations()         { atomic.AddInt64(&s.deserializations, 1) }
func (s *CountingSink) IncFallbackCopies()           { atomic.AddInt64(&s.fallbackCopies, 1) }
func (s *CountingSink) IncFallbackSerializations()   { atomic.AddInt64(&s.fallbackSerializations, 1) }
func (s *CountingSink) IncFallbackDeserializations() { atomic.AddInt64(&s.fallbackDeserializations, 1) }

func (s *CountingSink) ObserveCopyTime(d time.Duration)          { atomic.AddInt64(&s.copyTimeNs, int64(d)) }
func (s *CountingSink) ObserveSerTime(d time.Duration)           { atomic.AddInt64(&s.serTimeNs, int64(d)) }
func (s *CountingSink) ObserveDeserTime(d time.Duration)         { atomic.AddInt64(&s.deserTimeNs, int64(d)) }
func (s *CountingSink) ObserveFallbackCopyTime(d time.Duration)  { atomic.AddInt64(&s.fallbackCopyTimeNs, int64(d)) }
func (s *CountingSink) ObserveFallbackSerTime(d time.Duration)   { atomic.AddInt64(&s.fallbackSerTimeNs, int64(d)) }
func (s *CountingSink) ObserveFallbackDeserTime(d time.Duration) { atomic.AddInt64(&s.fallbackDeserTimeNs, int64(d)) }

// Counts is a snapshot of the six counters named in §6.
type Counts struct {
	Copies, Serializations, Deserializations                        int64
	FallbackCopies, FallbackSerializations, FallbackDeserializations int64
}

func (s *CountingSink) Snapshot() Counts {
	return Counts{
		Copies:                 atomic.LoadInt64(&s.copies),
		Serializations:         atomic.LoadInt64(&s.serializations),
		Deserializations:       atomic.LoadInt64(&s.deserializations),
		FallbackCopies:         atomic.LoadInt64(&s.fallbackCopies),
		FallbackSerializations: atomic.LoadInt64(&s.fallbackSerializations),
		FallbackDeserializations: atomic.LoadInt64(&s.fallbackDeserializations),
	}
}

func (s *CountingSink) Warn(msg string, args ...interface{}) {
	_ = args
	s.warnings = append(s.warnings, msg)
}

// PrometheusSink backs StatisticsSink with real prometheus.CounterVec /
// HistogramVec metrics, for hosts that already scrape this process.
type PrometheusSink struct {
	counters  *prometheus.CounterVec
	timings   *prometheus.HistogramVec
	collectOn bool
}

// NewPrometheusSink registers its metrics on reg (pass prometheus.DefaultRegisterer
// for the global registry) under the "graincodec" namespace.
func NewPrometheusSink(reg prometheus.Registerer, collect bool) *PrometheusSink {
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graincodec",
		Name:      "operations_total",
		Help:      "Count of codec operations by kind.",
	}, []string{"kind"})
	timings := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "graincodec",
		Name:      "operation_seconds",
		Help:      "Duration of codec operations by kind.",
	}, []string{"kind"})
	if reg != nil {
		reg.MustRegister(counters, timings)
	}
	return &PrometheusSink{counters: counters, timings: timings, collectOn: collect}
}

func (s *PrometheusSink) Enabled() bool { return s.collectOn }

func (s *PrometheusSink) IncCopies()                   { s.counters.WithLabelValues("copy").Inc() }
func (s *PrometheusSink) IncSerializations()           { s.counters.WithLabelValues("ser").Inc() }
func (s *PrometheusSink) IncDeserializations()         { s.counters.WithLabelValues("deser").Inc() }
func (s *PrometheusSink) IncFallbackCopies()           { s.counters.WithLabelValues("fallback_copy").Inc() }
func (s *PrometheusSink) IncFallbackSerializations()   { s.counters.WithLabelValues("fallback_ser").Inc() }
func (s *PrometheusSink) IncFallbackDeserializations() { s.counters.WithLabelValues("fallback_deser").Inc() }

func (s *PrometheusSink) ObserveCopyTime(d time.Duration) {
	s.timings.WithLabelValues("copy").Observe(d.Seconds())
}
func (s *PrometheusSink) ObserveSerTime(d time.Duration) {
	s.timings.WithLabelValues("ser").Observe(d.Seconds())
}
func (s *PrometheusSink) ObserveDeserTime(d time.Duration) {
	s.timings.WithLabelValues("deser").Observe(d.Seconds())
}
func (s *PrometheusSink) ObserveFallbackCopyTime(d time.Duration) {
	s.timings.WithLabelValues("fallback_copy").Observe(d.Seconds())
}
func (s *PrometheusSink) ObserveFallbackSerTime(d time.Duration) {
	s.timings.WithLabelValues("fallback_ser").Observe(d.Seconds())
}
func (s *PrometheusSink) ObserveFallbackDeserTime(d time.Duration) {
	s.timings.WithLabelValues("fallback_deser").Observe(d.Seconds())
}

func (s *PrometheusSink) Warn(msg string, args ...interface{}) {
	_ = msg
	_ = args
}
