// Package prealloc reserves space for a download's destination file before
// any chunk worker starts writing to it. Reserving the space up front means
// every worker's positional write lands inside an already-sized file
// instead of sparse-extending it, which is undefined when multiple workers
// extend the same file concurrently.
package prealloc

import (
	"fmt"
	"os"

	"github.com/detailyang/go-fallocate"
)

// fillBufferSize is the buffer size used by the manual fill loop, for both
// the non-zero fill byte case and the fallback when fallocate is
// unsupported by the destination filesystem.
const fillBufferSize = 1 << 20 // 1 MiB

// Reserve grows f to size bytes, filled with fillByte. When fillByte is
// zero it first attempts github.com/detailyang/go-fallocate, which asks the
// filesystem to reserve the space without actually writing it; if that is
// unsupported (or fillByte is non-zero, which fallocate cannot express) it
// falls back to a buffered write loop.
func Reserve(f *os.File, size int64, fillByte byte) error {
	if size < 0 {
		return fmt.Errorf("prealloc: negative size %d", size)
	}
	if size == 0 {
		return f.Truncate(0)
	}

	if fillByte == 0 {
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("prealloc: truncate: %w", err)
		}
		if err := fallocate.Fallocate(f, 0, size); err == nil {
			return nil
		}
		// Unsupported by this filesystem/OS; fall through to the manual loop.
	}

	return fillManually(f, size, fillByte)
}

func fillManually(f *os.File, size int64, fillByte byte) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("prealloc: truncate: %w", err)
	}

	buf := make([]byte, fillBufferSize)
	if fillByte != 0 {
		for i := range buf {
			buf[i] = fillByte
		}
	}

	var written int64
	for written < size {
		n := int64(len(buf))
		if remaining := size - written; remaining < n {
			n = remaining
		}
		nw, err := f.WriteAt(buf[:n], written)
		if err != nil {
			return fmt.Errorf("prealloc: write at %d: %w", written, err)
		}
		written += int64(nw)
	}
	return nil
}
