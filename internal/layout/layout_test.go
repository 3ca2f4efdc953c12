package layout

import (
	"errors"
	"testing"

	"github.com/hupe1980/diskvfs/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	t.Run("SmallImage", func(t *testing.T) {
		g, err := Compute(1024, 64, 0)
		require.NoError(t, err)

		assert.Equal(t, uint32(1), g.MapStart)
		assert.Equal(t, uint32(1), g.MapBlocks)
		assert.Equal(t, uint32(2), g.InodeStart)
		assert.Equal(t, uint32(16), g.InodeCount)
		assert.Equal(t, uint32(2), g.InodeBlocks)
		assert.Equal(t, uint32(4), g.DataStart)
		assert.Equal(t, uint32(60), g.DataBlocks())
	})

	t.Run("InodeCountRoundsUpToWholeBlocks", func(t *testing.T) {
		g, err := Compute(512, 128, 5)
		require.NoError(t, err)
		assert.Equal(t, uint32(8), g.InodeCount)
		assert.Equal(t, uint32(2), g.InodeBlocks)
	})

	t.Run("MultipleMapBlocks", func(t *testing.T) {
		g, err := Compute(512, 5000, 8)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), g.MapBlocks)
		assert.Equal(t, uint32(3), g.InodeStart)
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name       string
			blockSize  uint32
			blockCount uint32
		}{
			{"NotPowerOfTwo", 1000, 64},
			{"TooSmallBlock", 256, 64},
			{"TooLargeBlock", 128 * 1024, 64},
			{"NoDataBlocks", 1024, 3},
			{"Empty", 1024, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Compute(tt.blockSize, tt.blockCount, 0)
				assert.Error(t, err)
			})
		}
	})
}

func TestSuperblockRoundTrip(t *testing.T) {
	g, err := Compute(1024, 256, 0)
	require.NoError(t, err)

	block, err := Encode(g)
	require.NoError(t, err)
	require.Len(t, block, 1024)

	got, err := Decode(block)
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	g, err := Compute(1024, 64, 0)
	require.NoError(t, err)

	t.Run("Magic", func(t *testing.T) {
		block, err := Encode(g)
		require.NoError(t, err)
		block[0] ^= 0xff

		_, err = Decode(block)
		assert.True(t, errors.Is(err, errs.ErrCorrupt))
		assert.False(t, IsChecksumMismatch(err))
	})

	t.Run("Checksum", func(t *testing.T) {
		block, err := Encode(g)
		require.NoError(t, err)
		block[8]++ // block count

		_, err = Decode(block)
		assert.True(t, IsChecksumMismatch(err))
		assert.True(t, errors.Is(err, errs.ErrCorrupt))
	})

	t.Run("Short", func(t *testing.T) {
		_, err := Decode(make([]byte, 10))
		assert.True(t, errors.Is(err, errs.ErrCorrupt))
	})
}
