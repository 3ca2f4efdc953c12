package stats

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/diskvfs/blockstore"
)

// Source provides block counters. *diskvfs.FS and *blockstore.Store satisfy it.
type Source interface {
	Stats() blockstore.Stats
}

// Report writes the block counter report:
//
//	block size    1.0 kB
//	block reads   12      (12 kB)
//	block writes  7       (7.2 kB)
func Report(w io.Writer, src Source) error {
	s := src.Stats()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "block size\t%s\n", humanize.Bytes(uint64(s.BlockSize)))
	fmt.Fprintf(tw, "block reads\t%s\t(%s)\n", humanize.Comma(int64(s.Reads)), humanize.Bytes(s.BytesRead()))
	fmt.Fprintf(tw, "block writes\t%s\t(%s)\n", humanize.Comma(int64(s.Writes)), humanize.Bytes(s.BytesWritten()))
	return tw.Flush()
}
