package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ligustah/turbodl/pkg/turbodl/events"
	"github.com/ligustah/turbodl/pkg/turbodl/manifest"
)

func TestReporterPrintsHeaderOnPlanReady(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, time.Hour) // long interval: only the header matters here

	r.Handle(events.Event{Kind: events.DownloadStarted, URL: "https://example.com/file.bin"})
	r.Handle(events.Event{Kind: events.PlanReady, Plan: &manifest.Plan{TotalSize: 1024, Chunks: make([]manifest.Chunk, 4)}})

	out := buf.String()
	if !strings.Contains(out, "https://example.com/file.bin") {
		t.Fatalf("expected URL in header, got: %q", out)
	}
	if !strings.Contains(out, "Chunks: 4") {
		t.Fatalf("expected chunk count in header, got: %q", out)
	}

	r.Handle(events.Event{Kind: events.DownloadFinished})
}

func TestReporterTracksProgressByDelta(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf, time.Hour)

	plan := &manifest.Plan{TotalSize: 1000, Chunks: []manifest.Chunk{{Size: 1000}}}
	r.Handle(events.Event{Kind: events.DownloadStarted, URL: "u"})
	r.Handle(events.Event{Kind: events.PlanReady, Plan: plan})
	r.Handle(events.Event{Kind: events.ChunkDownloadStarted, ChunkIndex: 0})

	chunk := &manifest.Chunk{Size: 1000, Downloaded: 300}
	r.Handle(events.Event{Kind: events.ChunkDownloadProgress, ChunkIndex: 0, Chunk: chunk})

	r.mu.Lock()
	got := r.completedBytes
	r.mu.Unlock()
	if got != 300 {
		t.Fatalf("completedBytes = %d, want 300", got)
	}

	chunk2 := &manifest.Chunk{Size: 1000, Downloaded: 1000}
	r.Handle(events.Event{Kind: events.ChunkDownloadProgress, ChunkIndex: 0, Chunk: chunk2})

	r.mu.Lock()
	got = r.completedBytes
	r.mu.Unlock()
	if got != 1000 {
		t.Fatalf("completedBytes = %d, want 1000", got)
	}

	r.Handle(events.Event{Kind: events.ChunkDownloadFinished, ChunkIndex: 0})
	r.Handle(events.Event{Kind: events.DownloadFinished})

	if !strings.Contains(buf.String(), "Complete!") {
		t.Fatal("expected final status to be printed")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{2 * time.Hour, "2h 0m 0s"},
	}
	for _, c := range cases {
		if got := formatDuration(c.d); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
