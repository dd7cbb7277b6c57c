package metrics

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheCollector implements prometheus.Collector, reporting the size of the
// synthesis artifact cache at scrape time. Walking the cache dir per scrape
// is fine at phrase-cache scale (hundreds of small files).
type CacheCollector struct {
	dir string

	cacheBytes   *prometheus.Desc
	cacheEntries *prometheus.Desc
}

// NewCacheCollector creates a collector for the local cache directory.
// dir may be empty (gauges report 0).
func NewCacheCollector(dir string) *CacheCollector {
	return &CacheCollector{
		dir: dir,
		cacheBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "bytes"),
			"Total bytes of cached synthesis artifacts on local disk.",
			nil, nil,
		),
		cacheEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Number of cached synthesis artifacts on local disk.",
			nil, nil,
		),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheBytes
	ch <- c.cacheEntries
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	var bytes int64
	var entries int64

	if c.dir != "" {
		filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				bytes += info.Size()
				entries++
			}
			return nil
		})
	}

	ch <- prometheus.MustNewConstMetric(c.cacheBytes, prometheus.GaugeValue, float64(bytes))
	ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(entries))
}

// RegisterCacheCollector wires the cache-size collector for dir into the
// default registry. Call once at startup.
func RegisterCacheCollector(dir string) {
	prometheus.MustRegister(NewCacheCollector(dir))
}
