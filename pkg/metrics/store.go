package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// CountSource reports record counts per entity kind.
type CountSource interface {
	Counts() map[string]int
}

// StoreCollector reports the size of the configuration store at scrape time.
type StoreCollector struct {
	source CountSource
	desc   *prometheus.Desc
}

func NewStoreCollector(source CountSource) *StoreCollector {
	return &StoreCollector{
		source: source,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "records"),
			"Records held in the configuration store, by kind.",
			[]string{"kind"},
			nil,
		),
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.source.Counts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[k]), k)
	}
}
