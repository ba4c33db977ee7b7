package platform

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const promMetricPrefix = "pciebw_"

// Collector exports the committed round of a Platform as Prometheus gauges. Each scrape
// reads one snapshot, so all series of a scrape come from the same round.
type Collector struct {
	platform   *Platform
	readBytes  *prometheus.Desc
	writeBytes *prometheus.Desc
	eventCount *prometheus.Desc
}

func NewCollector(p *Platform) *Collector {
	constLabels := prometheus.Labels{"generation": p.Name()}
	return &Collector{
		platform: p,
		readBytes: prometheus.NewDesc(promMetricPrefix+"read_bytes",
			"PCIe read bandwidth in bytes for the last sampling round", []string{"socket"}, constLabels),
		writeBytes: prometheus.NewDesc(promMetricPrefix+"write_bytes",
			"PCIe write bandwidth in bytes for the last sampling round", []string{"socket"}, constLabels),
		eventCount: prometheus.NewDesc(promMetricPrefix+"event_count",
			"Uncore TOR insert count for the last sampling round", []string{"socket", "event", "filter"}, constLabels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.readBytes
	ch <- c.writeBytes
	ch <- c.eventCount
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.platform.Snapshot()
	names := c.platform.Descriptor().EventNames()
	for socket := 0; socket < snap.Sockets(); socket++ {
		label := strconv.Itoa(socket)
		ch <- prometheus.MustNewConstMetric(c.readBytes, prometheus.GaugeValue,
			float64(snap.ReadBandwidthFor(socket, Total)), label)
		ch <- prometheus.MustNewConstMetric(c.writeBytes, prometheus.GaugeValue,
			float64(snap.WriteBandwidthFor(socket, Total)), label)
		for idx, name := range names {
			for _, filter := range Filters {
				value, ok := snap.Lookup(socket, filter, idx)
				if !ok {
					continue
				}
				ch <- prometheus.MustNewConstMetric(c.eventCount, prometheus.GaugeValue,
					float64(value), label, name, filter.Label())
			}
		}
	}
}
