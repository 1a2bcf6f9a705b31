package newfs

import "fmt"

// BlockIO presents byte-granular reads and writes over a Device that only
// accepts I/O-unit aligned, fixed-size transfers. One logical block is
// always two I/O units (blockSize = 2 * dev.IOUnitSize()).
//
// Grounded on original_source/src/newfs_utils.c's newfs_driver_read /
// newfs_driver_write: round the window out to I/O-unit boundaries, walk it
// one I/O unit at a time, and — for writes — read the whole aligned window
// back in before overlaying the caller's bytes, unconditionally, even when
// the write is already aligned. This keeps a single code path instead of a
// fast path for aligned writes and a slow path for unaligned ones.
type BlockIO struct {
	dev    Device
	ioUnit int
}

// NewBlockIO wraps dev for aligned access.
func NewBlockIO(dev Device) *BlockIO {
	return &BlockIO{dev: dev, ioUnit: dev.IOUnitSize()}
}

func roundDown(v, round int64) int64 {
	if v%round == 0 {
		return v
	}
	return (v / round) * round
}

func roundUp(v, round int64) int64 {
	if v%round == 0 {
		return v
	}
	return (v/round + 1) * round
}

// Read returns size bytes starting at offset, reading only whole I/O units
// from the device.
func (b *BlockIO) Read(offset int64, size int) ([]byte, error) {
	unit := int64(b.ioUnit)
	alignedOff := roundDown(offset, unit)
	bias := offset - alignedOff
	alignedSize := roundUp(bias+int64(size), unit)

	scratch := make([]byte, alignedSize)
	cur := int64(0)
	for cur < alignedSize {
		n, err := b.dev.ReadAt(scratch[cur:cur+unit], alignedOff+cur)
		if err != nil {
			return nil, fmt.Errorf("%w: aligned read at %d: %v", ErrIO, alignedOff+cur, err)
		}
		if int64(n) != unit {
			return nil, fmt.Errorf("%w: short aligned read at %d (%d/%d bytes)", ErrIO, alignedOff+cur, n, unit)
		}
		cur += unit
	}

	return scratch[bias : bias+int64(size)], nil
}

// Write overlays data onto the surrounding aligned window (read via Read)
// and writes the full window back, one I/O unit at a time. Partial failure
// surfaces as a single error for the whole operation; the adapter never
// retries.
func (b *BlockIO) Write(offset int64, data []byte) error {
	unit := int64(b.ioUnit)
	alignedOff := roundDown(offset, unit)
	bias := offset - alignedOff
	alignedSize := roundUp(bias+int64(len(data)), unit)

	scratch, err := b.Read(alignedOff, int(alignedSize))
	if err != nil {
		return err
	}
	copy(scratch[bias:], data)

	cur := int64(0)
	for cur < alignedSize {
		n, err := b.dev.WriteAt(scratch[cur:cur+unit], alignedOff+cur)
		if err != nil {
			return fmt.Errorf("%w: aligned write at %d: %v", ErrIO, alignedOff+cur, err)
		}
		if int64(n) != unit {
			return fmt.Errorf("%w: short aligned write at %d (%d/%d bytes)", ErrIO, alignedOff+cur, n, unit)
		}
		cur += unit
	}

	return nil
}

// BlockSize returns the logical block size: two I/O units.
func (b *BlockIO) BlockSize() int { return b.ioUnit * 2 }
