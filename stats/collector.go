package stats

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/hupe1980/diskvfs"
)

// UsageFunc returns the current usage of a mounted image, typically
// (*diskvfs.FS).Usage. Evaluating it reads the free map and inode table, so
// it adds to the block read counter, and it must not run concurrently with
// other operations on the same FS.
type UsageFunc func() (diskvfs.Usage, error)

// Collector exports block counters as Prometheus metrics.
type Collector struct {
	src   Source
	usage UsageFunc

	reads      *prometheus.Desc
	writes     *prometheus.Desc
	readBytes  *prometheus.Desc
	writeBytes *prometheus.Desc
	freeBlocks *prometheus.Desc
	dataBlocks *prometheus.Desc
	freeInodes *prometheus.Desc
	inodes     *prometheus.Desc
}

// NewCollector creates a collector for src. usage may be nil.
// Labels are attached to every metric (e.g. the image path).
func NewCollector(src Source, usage UsageFunc, labels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("diskvfs", "", name), help, nil, labels)
	}

	return &Collector{
		src:        src,
		usage:      usage,
		reads:      desc("block_reads_total", "Blocks read from the image."),
		writes:     desc("block_writes_total", "Blocks written to the image."),
		readBytes:  desc("block_read_bytes_total", "Bytes read from the image."),
		writeBytes: desc("block_write_bytes_total", "Bytes written to the image."),
		freeBlocks: desc("free_blocks", "Free data blocks."),
		dataBlocks: desc("data_blocks", "Data blocks in the image."),
		freeInodes: desc("free_inodes", "Unused inode slots."),
		inodes:     desc("inodes", "Inode slots in the image."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reads
	ch <- c.writes
	ch <- c.readBytes
	ch <- c.writeBytes
	if c.usage != nil {
		ch <- c.freeBlocks
		ch <- c.dataBlocks
		ch <- c.freeInodes
		ch <- c.inodes
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.reads, prometheus.CounterValue, float64(s.Reads))
	ch <- prometheus.MustNewConstMetric(c.writes, prometheus.CounterValue, float64(s.Writes))
	ch <- prometheus.MustNewConstMetric(c.readBytes, prometheus.CounterValue, float64(s.BytesRead()))
	ch <- prometheus.MustNewConstMetric(c.writeBytes, prometheus.CounterValue, float64(s.BytesWritten()))

	if c.usage == nil {
		return
	}
	u, err := c.usage()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.freeBlocks, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.freeBlocks, prometheus.GaugeValue, float64(u.FreeBlocks))
	ch <- prometheus.MustNewConstMetric(c.dataBlocks, prometheus.GaugeValue, float64(u.DataBlocks))
	ch <- prometheus.MustNewConstMetric(c.freeInodes, prometheus.GaugeValue, float64(u.FreeInodes))
	ch <- prometheus.MustNewConstMetric(c.inodes, prometheus.GaugeValue, float64(u.Inodes))
}

// WriteText gathers all metrics of g and writes them in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
