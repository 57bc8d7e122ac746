package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ligustah/turbodl/pkg/turbodl/events"
)

// Reporter renders a turbodl download's progress to a terminal. It
// implements events.Handler and is driven entirely by the event stream a
// Session emits — it holds no reference to the Session itself.
type Reporter struct {
	output         io.Writer
	updateInterval time.Duration

	mu              sync.Mutex
	url             string
	totalSize       int64
	totalChunks     int
	completedBytes  int64
	completedChunks int
	inProgress      int
	chunkSeen       map[int]int64
	startTime       time.Time
	lastUpdate      time.Time
	lastBytes       int64
	stopCh          chan struct{}
	loopDone        chan struct{}
	stopped         bool
	running         bool
}

// NewReporter creates a Reporter writing to output at the given display
// refresh interval. A zero interval defaults to 500ms, and a nil output
// defaults to os.Stdout.
func NewReporter(output io.Writer, updateInterval time.Duration) *Reporter {
	if output == nil {
		output = os.Stdout
	}
	if updateInterval == 0 {
		updateInterval = 500 * time.Millisecond
	}
	return &Reporter{
		output:         output,
		updateInterval: updateInterval,
		chunkSeen:      make(map[int]int64),
	}
}

// Handle implements events.Handler.
func (r *Reporter) Handle(e events.Event) {
	switch e.Kind {
	case events.DownloadStarted:
		r.handleStarted(e)
	case events.PlanReady:
		r.handlePlanReady(e)
	case events.ChunkDownloadStarted:
		r.mu.Lock()
		r.inProgress++
		r.mu.Unlock()
	case events.ChunkDownloadProgress:
		r.handleProgress(e)
	case events.ChunkDownloadFinished:
		r.mu.Lock()
		r.completedChunks++
		r.inProgress--
		r.mu.Unlock()
	case events.ChunkDownloadError:
		r.mu.Lock()
		r.inProgress--
		r.mu.Unlock()
	case events.DownloadFinished:
		r.finish(true)
	case events.DownloadError, events.Aborted:
		r.finish(false)
	}
}

func (r *Reporter) handleStarted(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.url = e.URL
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
}

func (r *Reporter) handlePlanReady(e events.Event) {
	r.mu.Lock()
	r.totalSize = e.Plan.TotalSize
	r.totalChunks = len(e.Plan.Chunks)
	shouldStart := !r.running
	r.running = true
	if shouldStart {
		r.stopCh = make(chan struct{})
		r.loopDone = make(chan struct{})
	}
	r.mu.Unlock()

	fmt.Fprintf(r.output, "[turbodl] Downloading: %s\n", r.url)
	fmt.Fprintf(r.output, "[turbodl] Total size: %s | Chunks: %d\n",
		formatSize(r.totalSize), r.totalChunks)

	if shouldStart {
		go r.updateLoop()
	}
}

func (r *Reporter) handleProgress(e events.Event) {
	if e.Chunk == nil {
		return
	}
	r.mu.Lock()
	prev := r.chunkSeen[e.ChunkIndex]
	delta := e.Chunk.Downloaded - prev
	if delta > 0 {
		r.chunkSeen[e.ChunkIndex] = e.Chunk.Downloaded
		r.completedBytes += delta
	}
	r.mu.Unlock()
}

func (r *Reporter) updateLoop() {
	ticker := time.NewTicker(r.updateInterval)
	defer ticker.Stop()

	r.mu.Lock()
	stopCh := r.stopCh
	done := r.loopDone
	r.mu.Unlock()
	defer close(done)

	for {
		select {
		case <-stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) finish(completed bool) {
	r.mu.Lock()
	if r.stopped || !r.running {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	stopCh := r.stopCh
	loopDone := r.loopDone
	r.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		// Wait for the update loop to print the final status, so it is on
		// the output by the time the finishing event has been handled.
		<-loopDone
	} else if !completed {
		// Never got past PlanReady (e.g. a probe failure); nothing was
		// printed yet, so there is nothing to finalize.
		return
	}
}

func (r *Reporter) printProgress() {
	r.mu.Lock()
	now := time.Now()
	completed := r.completedBytes
	completedChunks := r.completedChunks
	inProgress := r.inProgress
	totalSize := r.totalSize
	totalChunks := r.totalChunks

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	bytesThisPeriod := completed - r.lastBytes
	speed := float64(bytesThisPeriod) / elapsed
	r.lastUpdate = now
	r.lastBytes = completed
	r.mu.Unlock()

	var percent float64
	eta := "calculating..."
	if totalSize > 0 {
		percent = float64(completed) / float64(totalSize) * 100
		if speed > 0 {
			remaining := float64(totalSize - completed)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		}
	}

	pending := totalChunks - completedChunks - inProgress
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.output, "\r[turbodl] Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		percent, formatSize(completed), formatSize(totalSize), formatSize(int64(speed)), eta)
	fmt.Fprintf(r.output, "\n[turbodl] Chunks: %d completed | %d in-progress | %d pending    \033[A",
		completedChunks, inProgress, pending)
}

func (r *Reporter) printFinalStatus() {
	r.mu.Lock()
	completed := r.completedBytes
	completedChunks := r.completedChunks
	totalSize := r.totalSize
	duration := time.Since(r.startTime)
	r.mu.Unlock()

	avgSpeed := float64(completed) / duration.Seconds()

	fmt.Fprintf(r.output, "\r[turbodl] Progress: 100.0%% | %s / %s | Speed: %s/s | Complete!    \n",
		formatSize(completed), formatSize(totalSize), formatSize(int64(avgSpeed)))
	fmt.Fprintf(r.output, "[turbodl] Chunks: %d completed | 0 in-progress | 0 pending    \n", completedChunks)
	fmt.Fprintf(r.output, "[turbodl] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration), formatSize(int64(avgSpeed)))
}

func formatSize(b int64) string {
	if b < 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(b))
}

// formatDuration renders a countdown-style duration ("18m 32s"), distinct
// from humanize's RelTime/Time helpers which describe a moment relative to
// now rather than a span of seconds remaining.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
