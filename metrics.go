// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "msgtunnel"

type counterDesc struct {
	desc  *prometheus.Desc
	value func(s *Statistics) int64
}

// Collector exports the statistics of a Mux as prometheus metrics.
type Collector struct {
	m         *Mux
	counters  []counterDesc
	overflows *prometheus.Desc
	channels  *prometheus.Desc
}

// NewCollector returns a collector of m, role is attached as a constant
// label.
func NewCollector(m *Mux, role string) *Collector {
	labels := prometheus.Labels{"role": role}
	counter := func(name, help string, value func(s *Statistics) int64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, labels),
			value: value,
		}
	}

	return &Collector{
		m: m,
		counters: []counterDesc{
			counter("packets_read_total", "Packets read from the shared stream.",
				func(s *Statistics) int64 { return s.ReadedCount }),
			counter("payload_read_bytes_total", "Payload bytes read from the shared stream.",
				func(s *Statistics) int64 { return s.ReadedBytes }),
			counter("packets_written_total", "Packets written to the shared stream.",
				func(s *Statistics) int64 { return s.WrittenCount }),
			counter("payload_written_bytes_total", "Payload bytes written to the shared stream.",
				func(s *Statistics) int64 { return s.WrittenBytes }),
			counter("packets_queued_total", "Packets accepted by the outbound queue.",
				func(s *Statistics) int64 { return s.OutputCount }),
			counter("packets_dropped_total", "Data packets dropped by a full outbound queue.",
				func(s *Statistics) int64 { return s.DroppedCount }),
			counter("decode_errors_total", "Malformed frames skipped.",
				func(s *Statistics) int64 { return s.DecodeErrorCount }),
		},
		overflows: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "channels_overflowed_total"),
			"Channels closed because their write queue was full.", nil, labels),
		channels: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "channels"),
			"Open channels.", nil, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.overflows
	ch <- c.channels
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stat := c.m.Statistics()
	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(&stat)))
	}
	ch <- prometheus.MustNewConstMetric(c.overflows, prometheus.CounterValue, float64(c.m.Overflows()))
	ch <- prometheus.MustNewConstMetric(c.channels, prometheus.GaugeValue, float64(c.m.Channels()))
}
