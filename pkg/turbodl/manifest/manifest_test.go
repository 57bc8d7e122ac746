package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPartitionsResource(t *testing.T) {
	p := New(100000, true, 4096)

	var sum int64
	for i, c := range p.Chunks {
		if c.Offset != sum {
			t.Fatalf("chunk %d offset = %d, want %d", i, c.Offset, sum)
		}
		sum += c.Size
	}
	if sum != 100000 {
		t.Fatalf("chunks sum to %d, want 100000", sum)
	}

	last := p.Chunks[len(p.Chunks)-1]
	if last.Offset+last.Size != 100000 {
		t.Fatalf("last chunk does not reach total size: %d + %d != 100000", last.Offset, last.Size)
	}
}

func TestNewUnknownSize(t *testing.T) {
	p := New(UnknownSize, false, 4096)
	if len(p.Chunks) != 1 {
		t.Fatalf("expected a single chunk for unknown size, got %d", len(p.Chunks))
	}
	if p.Chunks[0].Size != UnknownSize {
		t.Fatalf("expected sentinel size, got %d", p.Chunks[0].Size)
	}
}

func TestPlanCompleteAndDownloaded(t *testing.T) {
	p := New(10, true, 4)
	if p.Complete() {
		t.Fatal("fresh plan should not be complete")
	}

	for i := range p.Chunks {
		p.Chunks[i].Downloaded = p.Chunks[i].Size
	}
	if !p.Complete() {
		t.Fatal("plan with every chunk filled should be complete")
	}
	if p.Downloaded() != 10 {
		t.Fatalf("Downloaded() = %d, want 10", p.Downloaded())
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "file.bin")
	store := NewStore(dest)

	p := New(4096, true, 1024)
	p.Chunks[0].Downloaded = 512

	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := store.Load(4096, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected loaded plan to be usable")
	}
	if loaded.Chunks[0].Downloaded != 512 {
		t.Fatalf("loaded downloaded = %d, want 512", loaded.Chunks[0].Downloaded)
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := store.Load(4096, true); err != nil || ok {
		t.Fatalf("expected no plan after delete, ok=%v err=%v", ok, err)
	}
}

func TestLoadRejectsMismatchedIdentity(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "file.bin")
	store := NewStore(dest)

	p := New(4096, true, 1024)
	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A different probe result (size changed) must not reuse the old plan.
	_, ok, err := store.Load(8192, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched plan identity to be rejected")
	}
}

func TestLoadTreatsCorruptManifestAsAbsent(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")
	store := NewStore(dest)

	if err := os.WriteFile(Path(dest), []byte("not: [valid yaml"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, ok, err := store.Load(4096, true)
	if err != nil {
		t.Fatalf("Load should not error on a corrupt manifest: %v", err)
	}
	if ok {
		t.Fatal("expected corrupt manifest to be treated as absent")
	}
}

func TestLoadRawIgnoresIdentity(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "file.bin")
	store := NewStore(dest)

	p := New(4096, true, 1024)
	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// LoadRaw must return the plan regardless of a probe mismatch, unlike
	// Load.
	loaded, ok, err := store.LoadRaw()
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	if !ok {
		t.Fatal("expected LoadRaw to find the saved plan")
	}
	if loaded.TotalSize != 4096 {
		t.Fatalf("TotalSize = %d, want 4096", loaded.TotalSize)
	}
}
