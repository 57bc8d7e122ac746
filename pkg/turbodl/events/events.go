// Package events defines the observer surface turbodl's core emits through.
// Dispatch is a pure, synchronous fan-out to registered Handlers; how a host
// application wires those handlers to a UI, a metrics sink, or a log line is
// outside this package's concern.
package events

import "github.com/ligustah/turbodl/pkg/turbodl/manifest"

// Kind identifies which emission point produced an Event.
type Kind string

const (
	DownloadStarted        Kind = "download_started"
	DownloadFinished       Kind = "download_finished"
	DownloadError          Kind = "download_error"
	PlanReady              Kind = "plan_ready"
	ReservingSpaceStarted  Kind = "reserving_space_started"
	ReservingSpaceFinished Kind = "reserving_space_finished"
	ChunkDownloadStarted   Kind = "chunk_download_started"
	ChunkDownloadProgress  Kind = "chunk_download_progress"
	ChunkDownloadFinished  Kind = "chunk_download_finished"
	ChunkDownloadError     Kind = "chunk_download_error"
	Aborted                Kind = "aborted"
	PlanPersistError       Kind = "plan_persist_error"
)

// Event is the payload delivered to every Handler for every emission point.
// Only the fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind Kind

	URL      string
	DestFile string

	Plan *manifest.Plan

	ChunkIndex int
	Chunk      *manifest.Chunk
	Attempt    int

	ReservedBytes int64

	Err error
}

// Handler receives emitted events. Implementations must not block for long:
// emission is synchronous on the goroutine that made progress.
type Handler interface {
	Handle(Event)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(Event)

// Handle calls f(e).
func (f HandlerFunc) Handle(e Event) { f(e) }

// Emitter fans an Event out to every registered Handler, synchronously, in
// registration order. A panicking Handler is recovered and does not prevent
// the remaining handlers from running, nor does it propagate to the
// component that triggered the emission.
type Emitter struct {
	handlers []Handler
}

// NewEmitter creates an Emitter with no handlers registered.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers h to receive every future emission.
func (e *Emitter) Subscribe(h Handler) {
	e.handlers = append(e.handlers, h)
}

// Emit dispatches ev to every subscriber, swallowing subscriber panics.
func (e *Emitter) Emit(ev Event) {
	for _, h := range e.handlers {
		func(h Handler) {
			defer func() { recover() }()
			h.Handle(ev)
		}(h)
	}
}
