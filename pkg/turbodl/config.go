package turbodl

import (
	"io"

	"github.com/ligustah/turbodl/internal/transport"
	"github.com/ligustah/turbodl/pkg/turbodl/manifest"
)

// TransformStream is a lazy byte-stream endomorphism interposed between the
// network response body and the destination file. It may change content
// length (e.g. encryption framing) and owns its own framing; turbodl
// accounts for the bytes it actually writes to disk — the bytes
// TransformStream produced — not the bytes the network sent.
type TransformStream func(io.Reader) io.Reader

// ProgressFunc is invoked at least once per post-transform buffer written
// for any chunk. total is manifest.UnknownSize when the resource's size
// could not be determined by the probe.
type ProgressFunc func(downloaded, total int64, plan *manifest.Plan)

// Config configures a single download Session.
//
// New does not apply defaults to zero-valued fields — a zero RetryCount is
// a legitimate "no retries" request, not an unset field, so silently
// coalescing it to a default would reproduce exactly the kind of
// truthiness bug this design avoids (see DESIGN.md). Callers who want the
// documented defaults should start from DefaultConfig and override only
// the fields they care about.
type Config struct {
	// URL is the resource to fetch. Required.
	URL string
	// DestFile is the local output path. Required.
	DestFile string

	// ChunkSize is the number of bytes assigned to each chunk. Must be >=
	// 1024.
	ChunkSize int64
	// Concurrency bounds how many chunk transfers may be outstanding at
	// once. Must be >= 1.
	Concurrency int
	// RetryCount is the number of retries permitted per chunk, on top of
	// its first attempt. Must be >= 0.
	RetryCount int
	// CanBeResumed enables manifest persistence, which in turn enables
	// resuming an interrupted transfer in a later Session.
	CanBeResumed bool
	// FillFileByte is written into every byte of the destination file
	// during preallocation.
	FillFileByte byte

	// Transform, if set, is applied to each chunk's response body before
	// it is written to disk.
	Transform TransformStream
	// OnProgress, if set, is called after every buffer written to disk.
	OnProgress ProgressFunc

	// Adapter overrides the HTTP transport. Nil uses
	// transport.NewClient(transport.DefaultOptions()); tests substitute a
	// client pointed at an httptest server here.
	Adapter *transport.Client
}

// DefaultConfig returns the documented option defaults: a 16 MiB chunk
// size, concurrency of 4, 10 retries per chunk, and resume enabled.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    16 * 1024 * 1024,
		Concurrency:  4,
		RetryCount:   10,
		CanBeResumed: true,
	}
}

// Validate reports the first invalid field found, as a *ConfigError.
func (c *Config) Validate() error {
	if c.URL == "" {
		return &ConfigError{Field: "URL", Reason: "required"}
	}
	if c.DestFile == "" {
		return &ConfigError{Field: "DestFile", Reason: "required"}
	}
	if c.ChunkSize < 1024 {
		return &ConfigError{Field: "ChunkSize", Reason: "must be >= 1024 bytes"}
	}
	if c.Concurrency < 1 {
		return &ConfigError{Field: "Concurrency", Reason: "must be >= 1"}
	}
	if c.RetryCount < 0 {
		return &ConfigError{Field: "RetryCount", Reason: "must be >= 0"}
	}
	return nil
}
