// Package turbodl implements a resumable, chunked, concurrent HTTP
// downloader: a probe for resource metadata, a durable on-disk plan that
// partitions the resource into byte-range chunks, a bounded-concurrency
// scheduler with per-chunk retry, and a synchronous event stream that
// observers can subscribe to.
package turbodl

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ligustah/turbodl/internal/logging"
	"github.com/ligustah/turbodl/internal/transport"
	"github.com/ligustah/turbodl/pkg/turbodl/events"
	"github.com/ligustah/turbodl/pkg/turbodl/manifest"
	"github.com/ligustah/turbodl/pkg/turbodl/prealloc"
)

// Session drives a single download end to end: probe, load-or-create plan,
// preallocate the destination file if it is new, schedule chunk transfers,
// finalize. A Session is single-use — Start returns ErrAlreadyStarted on a
// second call — construct a new Session from the same Config to retry.
type Session struct {
	cfg     Config
	log     zerolog.Logger
	client  *transport.Client
	store   *manifest.Store
	emitter *events.Emitter

	started atomic.Bool
	aborted atomic.Bool

	// mu guards every field below it, along with Chunk.Downloaded
	// mutations inside plan.Chunks: multiple chunk workers and a
	// concurrent Abort call all reach into this state, and the
	// aggregate progress a caller observes (plan.Downloaded(), the
	// persisted manifest) must never be read mid-update by another
	// worker.
	mu                 sync.Mutex
	plan               *manifest.Plan
	file               *os.File
	cancels            map[int]context.CancelFunc
	cancelSession      context.CancelFunc
	abortSavesProgress bool
}

// New validates cfg and constructs a Session ready to Start. It performs no
// I/O: validation failures are returned synchronously as a *ConfigError.
//
// New does not default any zero-valued field — see Config's doc comment
// for why. Callers who want the documented defaults should build cfg from
// DefaultConfig.
func New(cfg Config, handlers ...events.Handler) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := cfg.Adapter
	if client == nil {
		client = transport.NewClient(transport.DefaultOptions())
	}

	emitter := events.NewEmitter()
	for _, h := range handlers {
		emitter.Subscribe(h)
	}

	return &Session{
		cfg:     cfg,
		log:     logging.For("session"),
		client:  client,
		store:   manifest.NewStore(cfg.DestFile),
		emitter: emitter,
	}, nil
}

// Subscribe registers h to receive every event this session emits. It must
// be called before Start; subscribing concurrently with an in-flight Start
// is not supported.
func (s *Session) Subscribe(h events.Handler) {
	s.emitter.Subscribe(h)
}

// Start runs the download to completion, failure, or abort, and blocks
// until one of those is reached or ctx is cancelled. It returns nil on
// success and on a clean abort; a non-nil error on probe failure, invalid
// configuration (unreachable here — New already validated it), or a chunk
// exhausting its retry budget.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelSession = cancel
	s.mu.Unlock()
	defer cancel()

	s.emitter.Emit(events.Event{Kind: events.DownloadStarted, URL: s.cfg.URL, DestFile: s.cfg.DestFile})
	s.log.Info().Str("url", s.cfg.URL).Str("dest", s.cfg.DestFile).Msg("download started")

	pr, err := probe(sessionCtx, s.client, s.cfg.URL)
	if err != nil {
		probeErr := &ProbeError{Err: err}
		s.emitter.Emit(events.Event{Kind: events.DownloadError, URL: s.cfg.URL, DestFile: s.cfg.DestFile, Err: probeErr})
		s.log.Error().Err(err).Msg("probe failed")
		return probeErr
	}

	plan, reused, _ := s.store.Load(pr.TotalSize, pr.AcceptRanges)
	isNew := !reused
	if isNew {
		plan = manifest.New(pr.TotalSize, pr.AcceptRanges, s.cfg.ChunkSize)
	}

	s.mu.Lock()
	s.plan = plan
	s.mu.Unlock()

	s.emitter.Emit(events.Event{Kind: events.PlanReady, Plan: plan})
	s.log.Debug().Int("chunks", len(plan.Chunks)).Bool("resumed", reused).Msg("plan ready")

	f, err := s.openDestination(isNew, plan)
	if err != nil {
		s.emitter.Emit(events.Event{Kind: events.DownloadError, URL: s.cfg.URL, DestFile: s.cfg.DestFile, Err: err})
		return err
	}
	s.mu.Lock()
	s.file = f
	s.mu.Unlock()
	defer f.Close()

	sched := &scheduler{sess: s}
	runErr := sched.run(sessionCtx)

	if s.aborted.Load() {
		return s.finalizeAbort()
	}
	if runErr != nil {
		return s.finalizeFailed(runErr)
	}
	return s.finalizeCompleted()
}

// openDestination opens (creating if necessary) the destination file, and
// preallocates its full size up front when the plan is new and the
// resource's size is known. Preallocating means every chunk worker's
// WriteAt lands inside an already-sized file rather than sparse-extending
// it, which is unsafe when several workers extend the same file at once.
func (s *Session) openDestination(isNew bool, plan *manifest.Plan) (*os.File, error) {
	f, err := os.OpenFile(s.cfg.DestFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("turbodl: open destination: %w", err)
	}

	if isNew && plan.TotalSize >= 0 {
		s.emitter.Emit(events.Event{Kind: events.ReservingSpaceStarted, ReservedBytes: plan.TotalSize})
		if err := prealloc.Reserve(f, plan.TotalSize, s.cfg.FillFileByte); err != nil {
			f.Close()
			return nil, fmt.Errorf("turbodl: preallocate: %w", err)
		}
		s.emitter.Emit(events.Event{Kind: events.ReservingSpaceFinished, ReservedBytes: plan.TotalSize})
	}

	return f, nil
}

// recordChunkProgress folds n freshly-written bytes into a chunk's
// progress, persists the plan if resuming is enabled, and notifies the
// caller's progress callback. It holds s.mu for the whole update, including
// the callback and event emission, so progress delivery is serialized:
// spec §5 requires callbacks to observe a monotonically non-decreasing
// aggregate, which concurrent workers racing to deliver their own snapshot
// after unlocking cannot guarantee.
func (s *Session) recordChunkProgress(idx int, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.plan.Chunks[idx].Downloaded += n
	downloaded := s.plan.Downloaded()
	total := s.plan.TotalSize
	plan := s.plan

	if s.cfg.CanBeResumed {
		if err := s.store.Save(plan); err != nil {
			s.log.Warn().Err(err).Msg("plan save failed")
			s.emitter.Emit(events.Event{Kind: events.PlanPersistError, Err: &PlanPersistError{Err: err}})
		}
	}

	s.emitter.Emit(events.Event{Kind: events.ChunkDownloadProgress, ChunkIndex: idx, Chunk: &plan.Chunks[idx]})

	if s.cfg.OnProgress != nil {
		s.cfg.OnProgress(downloaded, total, plan)
	}
}

// registerCancel records the cancel func for a chunk's in-flight attempt so
// Abort can reach it. Only one attempt per chunk index is ever in flight at
// a time, since retries within a chunk are sequential.
func (s *Session) registerCancel(idx int, cancel context.CancelFunc) {
	s.mu.Lock()
	if s.cancels == nil {
		s.cancels = make(map[int]context.CancelFunc)
	}
	s.cancels[idx] = cancel
	s.mu.Unlock()
}

func (s *Session) unregisterCancel(idx int) {
	s.mu.Lock()
	delete(s.cancels, idx)
	s.mu.Unlock()
}

func (s *Session) cancelAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.cancels))
	for _, c := range s.cancels {
		cancels = append(cancels, c)
	}
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// Abort stops an in-flight Start as soon as possible. saveProgress decides
// what Start leaves behind on disk once it returns: true keeps the
// manifest and the partially-written destination file so a later Session
// can resume; false deletes both. Abort before Start has been called is a
// no-op. A second call still updates saveProgress, so an earlier "abort and
// keep" can be downgraded to "abort and discard," even though the
// cancellation itself only fires once.
func (s *Session) Abort(saveProgress bool) {
	if !s.started.Load() {
		return
	}

	s.mu.Lock()
	s.abortSavesProgress = saveProgress
	cancelSession := s.cancelSession
	s.mu.Unlock()

	if !s.aborted.CompareAndSwap(false, true) {
		s.log.Info().Bool("saveProgress", saveProgress).Msg("abort preference updated")
		return
	}

	s.emitter.Emit(events.Event{Kind: events.Aborted})
	s.log.Info().Bool("saveProgress", saveProgress).Msg("download aborted")

	s.cancelAll()
	if cancelSession != nil {
		cancelSession()
	}
}

func (s *Session) finalizeCompleted() error {
	if err := s.store.Delete(); err != nil {
		s.log.Warn().Err(err).Msg("delete manifest on completion")
	}
	s.emitter.Emit(events.Event{Kind: events.DownloadFinished, URL: s.cfg.URL, DestFile: s.cfg.DestFile})
	s.log.Info().Msg("download finished")
	return nil
}

func (s *Session) finalizeFailed(err error) error {
	if !s.cfg.CanBeResumed {
		if derr := s.store.Delete(); derr != nil {
			s.log.Warn().Err(derr).Msg("delete manifest on failure")
		}
	}
	s.emitter.Emit(events.Event{Kind: events.DownloadError, URL: s.cfg.URL, DestFile: s.cfg.DestFile, Err: err})
	s.log.Error().Err(err).Msg("download failed")
	return err
}

// finalizeAbort implements the always-delete-both semantics for an abort
// that did not ask to save progress: the manifest and the destination file
// are removed regardless of how much of the transfer had completed, so a
// discarded download never leaves a file on disk that looks complete but
// isn't.
func (s *Session) finalizeAbort() error {
	s.mu.Lock()
	saveProgress := s.abortSavesProgress
	plan := s.plan
	s.mu.Unlock()

	if saveProgress {
		if plan != nil {
			if err := s.store.Save(plan); err != nil {
				s.log.Warn().Err(err).Msg("plan save failed during abort")
			}
		}
		return nil
	}

	if err := s.store.Delete(); err != nil {
		s.log.Warn().Err(err).Msg("delete manifest on abort")
	}
	if err := os.Remove(s.cfg.DestFile); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Msg("delete destination on abort")
	}
	return nil
}
