package prometheus

import (
	"strconv"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/ledgerlane/sessionkit/metrics/export/internaldefs"
)

// Collector exposes controller metrics to a client_golang registry. Values
// are read from the source on every scrape.
type Collector struct {
	source     MetricsSource
	counters   []*promclient.Desc
	histograms []*promclient.Desc
	dropped    *promclient.Desc
	bounds     []float64
}

var _ promclient.Collector = (*Collector)(nil)

// NewCollector returns a Collector over source. constLabels are attached to
// every series, e.g. to tell instances apart.
func NewCollector(source MetricsSource, constLabels promclient.Labels) *Collector {
	c := &Collector{
		source:  source,
		dropped: promclient.NewDesc(internaldefs.EventsDroppedName, "Session events dropped due to dispatcher backpressure.", nil, constLabels),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, promclient.NewDesc(def.Name, def.Help, nil, constLabels))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, promclient.NewDesc(def.Name, def.Help, nil, constLabels))
	}
	for _, le := range internaldefs.HistogramBounds[:len(internaldefs.HistogramBounds)-1] {
		v, _ := strconv.ParseFloat(le, 64)
		c.bounds = append(c.bounds, v)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *promclient.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	for _, d := range c.histograms {
		ch <- d
	}
	ch <- c.dropped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- promclient.Metric) {
	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- promclient.MustNewConstMetric(c.counters[i], promclient.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for i, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(c.bounds))
		for j, le := range c.bounds {
			buckets[le] = cumulative[j]
		}
		ch <- promclient.MustNewConstHistogram(c.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- promclient.MustNewConstMetric(c.dropped, promclient.CounterValue, float64(c.source.EventsDropped()))
}
