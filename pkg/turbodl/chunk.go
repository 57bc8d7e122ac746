package turbodl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ligustah/turbodl/internal/transport"
)

// ErrRangeIgnored is returned by a chunk transfer when it requested a byte
// range and the server answered 200 instead of 206 — it ignored the Range
// header and sent the whole resource. It is retried like any other
// transfer failure; a server that always behaves this way exhausts the
// chunk's retry budget exactly as any other persistent failure would.
var ErrRangeIgnored = errors.New("turbodl: server ignored range request")

const chunkBufferSize = 256 * 1024

// chunkTransfer fetches one contiguous range of a resource and writes it to
// a fixed position in the destination file.
type chunkTransfer struct {
	client    *transport.Client
	url       string
	file      *os.File
	transform TransformStream
}

// run fetches `remaining` bytes starting at resource offset `start`
// (remaining == manifest.UnknownSize requests the whole resource) and
// writes them to t.file at the same absolute offset. onBytes is called
// after every buffer that reaches disk, with the number of bytes just
// written. run returns when the response body is fully consumed, the
// context is cancelled, or an I/O error occurs.
func (t *chunkTransfer) run(ctx context.Context, start, remaining int64, onBytes func(int64)) error {
	resp, err := t.client.GetRange(ctx, t.url, start, remaining)
	if err != nil {
		return fmt.Errorf("chunk transfer: %w", err)
	}
	defer resp.Body.Close()

	if remaining > 0 && !resp.Ranged {
		return ErrRangeIgnored
	}

	var body io.Reader = resp.Body
	if t.transform != nil {
		body = t.transform(body)
	}

	writer := &offsetWriter{file: t.file, offset: start}
	buf := make([]byte, chunkBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := writer.Write(buf[:n]); werr != nil {
				return fmt.Errorf("chunk transfer: write: %w", werr)
			}
			onBytes(int64(n))
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("chunk transfer: read: %w", readErr)
		}
	}
}

// offsetWriter writes successive buffers to a file starting at a fixed
// absolute offset, advancing by each write's length. Every chunk transfer
// owns a disjoint byte range of the destination file, so distinct
// offsetWriters never target overlapping bytes and need no locking between
// each other.
type offsetWriter struct {
	file   *os.File
	offset int64
}

func (w *offsetWriter) Write(p []byte) (int, error) {
	n, err := w.file.WriteAt(p, w.offset)
	w.offset += int64(n)
	return n, err
}
