package stats_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskvfs"
	"github.com/hupe1980/diskvfs/blockstore"
	"github.com/hupe1980/diskvfs/stats"
)

type fixed blockstore.Stats

func (f fixed) Stats() blockstore.Stats { return blockstore.Stats(f) }

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, stats.Report(&buf, fixed{Reads: 1500, Writes: 7, BlockSize: 1024}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "block size    1.0 kB", lines[0])
	assert.Equal(t, "block reads   1,500  (1.5 MB)", lines[1])
	assert.Equal(t, "block writes  7      (7.2 kB)", lines[2])
}

func TestCollector_BlockCounters(t *testing.T) {
	c := stats.NewCollector(fixed{Reads: 3, Writes: 2, BlockSize: 512}, nil, prometheus.Labels{"image": "disk.img"})

	assert.Equal(t, 4, testutil.CollectAndCount(c))

	expected := `
# HELP diskvfs_block_reads_total Blocks read from the image.
# TYPE diskvfs_block_reads_total counter
diskvfs_block_reads_total{image="disk.img"} 3
# HELP diskvfs_block_write_bytes_total Bytes written to the image.
# TYPE diskvfs_block_write_bytes_total counter
diskvfs_block_write_bytes_total{image="disk.img"} 1024
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"diskvfs_block_reads_total", "diskvfs_block_write_bytes_total"))
}

func TestCollector_Usage(t *testing.T) {
	fs, err := diskvfs.Init(filepath.Join(t.TempDir(), "disk.img"), 64)
	require.NoError(t, err)
	defer fs.Unmount()
	require.NoError(t, fs.WriteFile([]string{"f"}, make([]byte, 2048)))

	c := stats.NewCollector(fs, fs.Usage, nil)
	assert.Equal(t, 8, testutil.CollectAndCount(c))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "diskvfs_free_blocks", "diskvfs_data_blocks"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	var buf bytes.Buffer
	require.NoError(t, stats.WriteText(&buf, reg))
	// 60 data blocks, one for the root directory and two for f.
	assert.Contains(t, buf.String(), "diskvfs_free_blocks 57")
	assert.Contains(t, buf.String(), "diskvfs_data_blocks 60")
}

func TestCollector_UsageError(t *testing.T) {
	failing := func() (diskvfs.Usage, error) { return diskvfs.Usage{}, errors.New("unmounted") }
	c := stats.NewCollector(fixed{}, failing, nil)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	_, err := reg.Gather()
	assert.Error(t, err)
}

func TestOperationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := stats.NewOperationMetrics(reg)
	require.NoError(t, err)

	fs, err := diskvfs.Init(filepath.Join(t.TempDir(), "disk.img"), 64, diskvfs.WithMetricsCollector(m))
	require.NoError(t, err)
	defer fs.Unmount()

	require.NoError(t, fs.Creat([]string{"d"}, true))
	require.NoError(t, fs.Creat([]string{"d", "f"}, false))
	assert.ErrorIs(t, fs.Creat([]string{"d"}, true), diskvfs.ErrAlreadyExists)

	fd, err := fs.Open([]string{"d", "f"})
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(fd))
	assert.ErrorIs(t, fs.Close(fd), diskvfs.ErrInvalidDescriptor)

	expected := `
# HELP diskvfs_io_bytes_total File bytes moved by read and write.
# TYPE diskvfs_io_bytes_total counter
diskvfs_io_bytes_total{op="write"} 5
# HELP diskvfs_operation_errors_total Failed VFS operations.
# TYPE diskvfs_operation_errors_total counter
diskvfs_operation_errors_total{op="close"} 1
diskvfs_operation_errors_total{op="mkdir"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"diskvfs_io_bytes_total", "diskvfs_operation_errors_total"))

	// mkdir, creat, open, write and close observed latencies.
	n, err := testutil.GatherAndCount(reg, "diskvfs_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// A second registration on the same registry fails.
	_, err = stats.NewOperationMetrics(reg)
	assert.Error(t, err)
}
