// Package manifest defines the on-disk download plan and its durable
// storage as a YAML document alongside the destination file.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Suffix is appended to the destination path to produce the manifest path.
const Suffix = ".turbodownload"

// UnknownSize is the sentinel used for a chunk or plan whose size is not
// known in advance (the resource's Content-Length was absent).
const UnknownSize int64 = -1

// Chunk is a contiguous byte range of the resource assigned to one worker.
// Offset is the absolute byte position in both the resource and the
// destination file. Downloaded is monotonically non-decreasing while the
// chunk is in flight and never exceeds Size (when Size is known).
type Chunk struct {
	Offset     int64 `yaml:"offset"`
	Size       int64 `yaml:"size"`
	Downloaded int64 `yaml:"downloaded"`
}

// Done reports whether the chunk has received every byte it expects.
// A chunk of unknown size is never done by this measure; completion for
// that case is instead signalled by the transfer's stream reaching EOF.
func (c *Chunk) Done() bool {
	if c.Size < 0 {
		return false
	}
	return c.Downloaded >= c.Size
}

// Remaining returns the number of bytes left to fetch for this chunk, or
// UnknownSize if the chunk's size is unknown.
func (c *Chunk) Remaining() int64 {
	if c.Size < 0 {
		return UnknownSize
	}
	return c.Size - c.Downloaded
}

// Plan is the complete on-disk description of a download: the resource's
// total size, whether the server accepts range requests, and the ordered,
// non-overlapping chunks that partition it.
type Plan struct {
	TotalSize    int64   `yaml:"total_size"`
	AcceptRanges bool    `yaml:"accept_ranges"`
	Chunks       []Chunk `yaml:"chunks"`
}

// Complete reports whether every chunk has received all of its bytes.
func (p *Plan) Complete() bool {
	for i := range p.Chunks {
		if !p.Chunks[i].Done() {
			return false
		}
	}
	return true
}

// Downloaded sums Downloaded across all chunks.
func (p *Plan) Downloaded() int64 {
	var total int64
	for i := range p.Chunks {
		total += p.Chunks[i].Downloaded
	}
	return total
}

// New partitions a resource of the given size into chunks of chunkSize
// bytes, the last chunk taking the remainder. When size is unknown
// (UnknownSize) a single chunk of unknown size is produced, per spec: that
// branch forces a single non-parallel chunk that grows the file as it
// writes.
func New(size int64, acceptRanges bool, chunkSize int64) *Plan {
	p := &Plan{TotalSize: size, AcceptRanges: acceptRanges}

	if size < 0 {
		p.Chunks = []Chunk{{Offset: 0, Size: UnknownSize}}
		return p
	}

	if size == 0 {
		p.Chunks = []Chunk{{Offset: 0, Size: 0, Downloaded: 0}}
		return p
	}

	for offset := int64(0); offset < size; offset += chunkSize {
		length := chunkSize
		if offset+length > size {
			length = size - offset
		}
		p.Chunks = append(p.Chunks, Chunk{Offset: offset, Size: length})
	}
	return p
}

// Path returns the manifest path for a given destination file path.
func Path(destFile string) string {
	return destFile + Suffix
}

// Store persists and retrieves a Plan next to a destination file.
type Store struct {
	destFile string
}

// NewStore creates a Store for the manifest belonging to destFile.
func NewStore(destFile string) *Store {
	return &Store{destFile: destFile}
}

// Load returns the plan stored on disk if it exists, parses cleanly, and
// its (TotalSize, AcceptRanges) pair matches the probe result supplied by
// the caller. Any other outcome — missing file, parse error, mismatched
// identity — is reported as (nil, false, nil): a plan on disk that cannot
// be trusted is treated as absent, never as an error.
func (s *Store) Load(totalSize int64, acceptRanges bool) (*Plan, bool, error) {
	data, err := os.ReadFile(Path(s.destFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, nil
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, false, nil
	}

	if p.TotalSize != totalSize || p.AcceptRanges != acceptRanges {
		return nil, false, nil
	}

	return &p, true, nil
}

// LoadRaw returns the plan stored on disk, if any, without checking it
// against a probe result. It exists for inspection tools (turbodl manifest
// show) that want to read whatever is there without re-probing the remote
// resource; Session itself always uses Load, which enforces the identity
// check.
func (s *Store) LoadRaw() (*Plan, bool, error) {
	data, err := os.ReadFile(Path(s.destFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, nil
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, false, nil
	}
	return &p, true, nil
}

// Save atomically replaces the manifest file with the serialized plan.
// It writes to a temporary file in the same directory and renames it into
// place so a crash never leaves a half-written manifest.
func (s *Store) Save(p *Plan) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}

	dir := filepath.Dir(Path(s.destFile))
	tmp, err := os.CreateTemp(dir, ".turbodownload-*.tmp")
	if err != nil {
		return fmt.Errorf("manifest: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("manifest: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("manifest: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, Path(s.destFile)); err != nil {
		return fmt.Errorf("manifest: rename into place: %w", err)
	}
	return nil
}

// Delete removes the manifest file if present. It is idempotent.
func (s *Store) Delete() error {
	if err := os.Remove(Path(s.destFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("manifest: delete: %w", err)
	}
	return nil
}
