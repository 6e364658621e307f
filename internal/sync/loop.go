package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/conversation"
	"github.com/matheus3301/imsg/internal/status"
)

// Store is the message store as seen by the loop.
type Store interface {
	conversation.Source
	MaxRowID(ctx context.Context) (int64, error)
}

// State is owned by the loop goroutine. Other goroutines see copies through
// Snapshot.
type State struct {
	// LastSeenMaxRowID only moves forward, and only once a rebuild started
	// for that value has completed.
	LastSeenMaxRowID int64
	// Active is the selected conversation; zero when none is selected.
	Active        conversation.ID
	OtherServices bool
}

// Snapshot is the last published view of the store.
type Snapshot struct {
	State         State
	Conversations []conversation.Entry
	Thread        conversation.Thread
	CheckedAt     time.Time
}

// Options configures a Loop.
type Options struct {
	Interval      time.Duration
	OtherServices bool
}

type actionKind int

const (
	actSelect actionKind = iota
	actToggleServices
	actRefresh
)

type action struct {
	kind actionKind
	id   conversation.ID
}

// job is one rebuild. At most one runs at a time.
type job struct {
	gen       uint64
	mark      int64
	withIndex bool
	active    conversation.ID
	cancel    context.CancelFunc
}

type result struct {
	job        *job
	entries    []conversation.Entry
	thread     conversation.Thread
	haveThread bool
	err        error
}

// Loop polls the message store's high-water mark and rebuilds the
// conversation list and the active thread when it moves.
type Loop struct {
	store    Store
	index    *conversation.IndexBuilder
	thread   *conversation.ThreadBuilder
	bus      *bus.Bus
	status   *status.Machine
	logger   *zap.Logger
	interval time.Duration

	actions chan action
	nudge   chan struct{}
	results chan result
	snap    atomic.Pointer[Snapshot]
	cancel  context.CancelFunc
	done    chan struct{}

	// Fields below belong to the run goroutine.
	state State
	gen   uint64
	job   *job
}

func NewLoop(st Store, index *conversation.IndexBuilder, thread *conversation.ThreadBuilder,
	b *bus.Bus, machine *status.Machine, logger *zap.Logger, opts Options) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	l := &Loop{
		store:    st,
		index:    index,
		thread:   thread,
		bus:      b,
		status:   machine,
		logger:   logger,
		interval: opts.Interval,
		actions:  make(chan action, 16),
		nudge:    make(chan struct{}, 1),
		results:  make(chan result, 1),
		done:     make(chan struct{}),
		state:    State{OtherServices: opts.OtherServices},
	}
	l.snap.Store(&Snapshot{State: l.state})
	return l
}

// Start runs the loop until ctx is canceled or Stop is called. The first
// check happens immediately.
func (l *Loop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.setStatus(status.Syncing)
	go l.run(ctx)
}

// Stop cancels the loop and any in-flight rebuild and waits for exit.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// Select makes id the active conversation and loads its thread right away.
// A rebuild still running for the previous selection is abandoned.
func (l *Loop) Select(id conversation.ID) {
	l.send(action{kind: actSelect, id: id})
}

// ToggleServices switches between iMessage only and all services, then
// rebuilds everything.
func (l *Loop) ToggleServices() {
	l.send(action{kind: actToggleServices})
}

// Refresh rebuilds everything without waiting for new messages.
func (l *Loop) Refresh() {
	l.send(action{kind: actRefresh})
}

// Nudge asks for a check before the next tick. It never blocks.
func (l *Loop) Nudge() {
	select {
	case l.nudge <- struct{}{}:
	default:
	}
}

// Snapshot returns the most recently published state. Safe from any goroutine.
func (l *Loop) Snapshot() Snapshot {
	return *l.snap.Load()
}

func (l *Loop) send(a action) {
	select {
	case l.actions <- a:
	case <-l.done:
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.check(ctx)
	for {
		select {
		case <-ctx.Done():
			l.abandon()
			return
		case <-ticker.C:
			l.check(ctx)
		case <-l.nudge:
			l.check(ctx)
		case a := <-l.actions:
			l.apply(ctx, a)
		case r := <-l.results:
			l.finish(r)
		}
	}
}

// check compares the store's max ROWID to the mark. Ticks that land while a
// rebuild is in flight are dropped; the mark has not moved yet, so the next
// tick after completion sees any rows that arrived meanwhile.
func (l *Loop) check(ctx context.Context) {
	if l.job != nil {
		return
	}
	maxID, err := l.store.MaxRowID(ctx)
	l.publishSnapshot(func(s *Snapshot) { s.CheckedAt = time.Now() })
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Warn("poll failed", zap.Error(err))
			l.setStatus(status.Degraded)
		}
		return
	}
	if maxID <= l.state.LastSeenMaxRowID {
		l.setStatus(status.Ready)
		return
	}
	l.logger.Debug("new messages", zap.Int64("max_rowid", maxID), zap.Int64("last_seen", l.state.LastSeenMaxRowID))
	l.startJob(ctx, maxID, true)
}

func (l *Loop) apply(ctx context.Context, a action) {
	switch a.kind {
	case actSelect:
		l.state.Active = a.id
		l.abandon()
		l.publishSnapshot(func(s *Snapshot) { s.Thread = conversation.Thread{ID: a.id} })
		l.startJob(ctx, 0, false)
	case actToggleServices:
		l.state.OtherServices = !l.state.OtherServices
		l.logger.Info("services filter changed", zap.Bool("other_services", l.state.OtherServices))
		l.abandon()
		l.startJob(ctx, 0, true)
	case actRefresh:
		l.abandon()
		l.startJob(ctx, 0, true)
	}
}

// abandon cancels the in-flight rebuild. Its result, if it still arrives,
// fails the generation check in finish.
func (l *Loop) abandon() {
	if l.job == nil {
		return
	}
	l.job.cancel()
	l.job = nil
}

func (l *Loop) startJob(ctx context.Context, mark int64, withIndex bool) {
	if !withIndex && l.state.Active.IsZero() {
		return
	}
	l.gen++
	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{
		gen:       l.gen,
		mark:      mark,
		withIndex: withIndex,
		active:    l.state.Active,
		cancel:    cancel,
	}
	l.job = j
	other := l.state.OtherServices

	go func() {
		r := l.rebuild(jobCtx, j, other)
		select {
		case l.results <- r:
		case <-ctx.Done():
		}
	}()
}

func (l *Loop) rebuild(ctx context.Context, j *job, otherServices bool) result {
	r := result{job: j}
	if j.withIndex {
		r.entries, r.err = l.index.Build(ctx, otherServices)
		if r.err != nil {
			return r
		}
	}
	if !j.active.IsZero() {
		r.thread, r.err = l.thread.Build(ctx, j.active, otherServices)
		r.haveThread = r.err == nil
	}
	return r
}

func (l *Loop) finish(r result) {
	j := r.job
	if l.job == nil || j.gen != l.gen {
		l.logger.Debug("discarding stale rebuild", zap.Uint64("gen", j.gen), zap.Uint64("current", l.gen))
		return
	}
	j.cancel()
	l.job = nil

	if r.err != nil {
		if !errors.Is(r.err, context.Canceled) {
			l.logger.Warn("rebuild failed", zap.Error(r.err))
			l.setStatus(status.Degraded)
		}
		return
	}

	if j.withIndex {
		l.publishSnapshot(func(s *Snapshot) { s.Conversations = r.entries })
		l.bus.Emit(bus.KindConversations, r.entries)
	}
	if r.haveThread && j.active == l.state.Active {
		l.publishSnapshot(func(s *Snapshot) { s.Thread = r.thread })
		l.bus.Emit(bus.KindThread, r.thread)
	}
	if j.mark > l.state.LastSeenMaxRowID {
		l.state.LastSeenMaxRowID = j.mark
	}
	l.publishSnapshot(func(*Snapshot) {})
	l.setStatus(status.Ready)
}

// publishSnapshot copies the current snapshot, applies fn, and stores it
// with the loop's current State.
func (l *Loop) publishSnapshot(fn func(*Snapshot)) {
	next := *l.snap.Load()
	fn(&next)
	next.State = l.state
	l.snap.Store(&next)
}

func (l *Loop) setStatus(to status.State) {
	if l.status == nil {
		return
	}
	if err := l.status.Ensure(to); err != nil {
		l.logger.Debug("status unchanged", zap.String("to", string(to)), zap.Error(err))
	}
}
