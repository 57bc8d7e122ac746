package turbodl

import (
	"context"

	"github.com/ligustah/turbodl/internal/transport"
	"github.com/ligustah/turbodl/pkg/turbodl/manifest"
)

// probeResult is the metadata learned from the initial HEAD request.
type probeResult struct {
	TotalSize    int64
	AcceptRanges bool
}

// probe issues the metadata-only request that precedes every download.
// Retries for transient connection failures already happened inside
// client.Head; a probe failure reaching here is always fatal to the
// session, before any plan exists or any byte of the destination file has
// been touched.
func probe(ctx context.Context, client *transport.Client, url string) (*probeResult, error) {
	info, err := client.Head(ctx, url)
	if err != nil {
		return nil, err
	}

	size := info.Size
	if size < 0 {
		size = manifest.UnknownSize
	}

	return &probeResult{TotalSize: size, AcceptRanges: info.AcceptRanges}, nil
}
