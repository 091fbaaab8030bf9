// Package sync implements the reconciliation engine between the local
// store and the per-user remote document: debounced write coalescing,
// live snapshot application, and first-sign-in migration.
package sync

import (
	"context"
	"encoding/json"
	stdsync "sync"
	"time"

	"github.com/atinyakov/FocusKeeper/internal/client/store"
	"go.uber.org/zap"
)

// DefaultFlushDelay is the debounce window for coalescing local writes
// into one remote merge.
const DefaultFlushDelay = 800 * time.Millisecond

// RenderFunc is invoked after remote-driven state changes land locally.
// fields lists the remote fields that were overwritten; nil means no field
// changed but the UI should still refresh its auth-dependent chrome.
type RenderFunc func(fields []string)

// Config tunes a Session. Zero values select production defaults.
type Config struct {
	// FlushDelay is the debounce window; DefaultFlushDelay when zero.
	FlushDelay time.Duration
	// Scheduler provides the flush timer; real timers when nil.
	Scheduler Scheduler
}

// Session mediates every cross-update between the local store and the
// remote document for at most one authenticated identity at a time. All
// coordination state lives here rather than in package globals so tests
// can run independent sessions side by side.
type Session struct {
	backend Backend
	store   *store.Store
	render  RenderFunc
	log     *zap.Logger
	sched   Scheduler
	delay   time.Duration

	mu        stdsync.Mutex
	identity  *Identity
	pending   Snapshot
	flushTask Task
	applying  bool // re-entrancy guard: remote data is being copied in
	sub       Subscription
	migrated  map[string]bool // UIDs whose first-sync check already ran
}

// NewSession wires a session to the backend and store and registers the
// store write hook that feeds the coalescer.
func NewSession(backend Backend, st *store.Store, render RenderFunc, log *zap.Logger, cfg Config) *Session {
	if render == nil {
		render = func([]string) {}
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultFlushDelay
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TimerScheduler{}
	}
	s := &Session{
		backend:  backend,
		store:    st,
		render:   render,
		log:      log,
		sched:    cfg.Scheduler,
		delay:    cfg.FlushDelay,
		pending:  make(Snapshot),
		migrated: make(map[string]bool),
	}
	st.SetWriteHook(s.handleLocalWrite)
	return s
}

// Authenticated reports whether a real identity is signed in. The UI uses
// it to pick its sign-in/out affordance.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil && !s.identity.Anonymous
}

// handleLocalWrite routes a user-driven store write toward the remote
// document. Non-syncable keys, anonymous sessions, and writes made while a
// remote snapshot is being applied all stop here.
func (s *Session) handleLocalWrite(key string, raw json.RawMessage) {
	field, ok := store.FieldFor(key)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applying {
		return
	}
	if s.identity == nil || s.identity.Anonymous {
		return
	}
	s.pending[field] = raw
	if s.flushTask != nil {
		s.flushTask.Cancel()
	}
	s.flushTask = s.sched.Schedule(s.delay, s.flush)
}

// flush submits every pending field update as one merge write and clears
// the pending map. A failed write is logged and dropped: local state stays
// authoritative and nothing is re-queued.
func (s *Session) flush() {
	s.mu.Lock()
	updates := s.pending
	s.pending = make(Snapshot)
	s.flushTask = nil
	id := s.identity
	s.mu.Unlock()

	if id == nil || len(updates) == 0 {
		return
	}
	fields := make([]string, 0, len(updates))
	for f := range updates {
		fields = append(fields, f)
	}
	if err := s.backend.DocumentSetMerge(context.Background(), id.UID, updates); err != nil {
		s.log.Error("remote flush failed, changes dropped",
			zap.Strings("fields", fields), zap.Error(err))
		return
	}
	s.log.Debug("flushed fields to remote", zap.Strings("fields", fields))
}

// HandleSignIn binds the session to a freshly authenticated identity, runs
// the first-sync migration once per UID, and (re)attaches the live
// subscription. It is safe to call twice for the same sign-in: the popup
// and redirect completion paths may both observe it.
func (s *Session) HandleSignIn(ctx context.Context, id Identity) {
	if id.Anonymous || id.UID == "" {
		return
	}
	s.mu.Lock()
	s.identity = &id
	first := !s.migrated[id.UID]
	s.migrated[id.UID] = true
	s.mu.Unlock()

	if first {
		s.migrate(ctx, id)
	}
	s.subscribe(id)
}

// migrate implements check-then-push: an existing remote document wins and
// is left alone for the subscriber to pull; a missing one is seeded from
// the full local syncable state.
func (s *Session) migrate(ctx context.Context, id Identity) {
	_, exists, err := s.backend.DocumentGet(ctx, id.UID)
	if err != nil {
		s.log.Error("first-sync document lookup failed", zap.Error(err))
		return
	}
	if exists {
		s.log.Info("cloud document found, remote data wins", zap.String("uid", id.UID))
		return
	}
	s.log.Info("new account, seeding cloud document from local state", zap.String("uid", id.UID))
	if err := s.backend.DocumentSetReplace(ctx, id.UID, s.localSnapshot()); err != nil {
		s.log.Error("seeding cloud document failed", zap.Error(err))
	}
}

// subscribe replaces any live subscription with a fresh one for id. At
// most one listener is active per session.
func (s *Session) subscribe(id Identity) {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.mu.Unlock()

	sub, err := s.backend.DocumentSubscribe(id.UID, s.applySnapshot, s.onSubscriptionError)
	if err != nil {
		s.log.Error("attaching document subscription failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || s.identity.UID != id.UID {
		// Signed out (or switched identity) while attaching.
		sub.Cancel()
		return
	}
	s.sub = sub
}

// applySnapshot copies an incoming remote snapshot into the local store
// under the re-entrancy guard, so none of these writes echo back to the
// remote document.
func (s *Session) applySnapshot(snap Snapshot, exists bool) {
	s.mu.Lock()
	id := s.identity
	if id == nil {
		s.mu.Unlock()
		return
	}
	s.applying = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.applying = false
		s.mu.Unlock()
	}()

	if !exists {
		// Brand-new remote identity: one-time seed from local state, same
		// shape as the first-sync migration.
		s.log.Info("no cloud document in snapshot, seeding from local state", zap.String("uid", id.UID))
		if err := s.backend.DocumentSetReplace(context.Background(), id.UID, s.localSnapshot()); err != nil {
			s.log.Error("seeding cloud document failed", zap.Error(err))
		}
		s.render(nil)
		return
	}

	var changed []string
	repairs := make(Snapshot)
	for _, m := range store.Mappings() {
		raw, present := snap[m.Field]
		if !present {
			// Absent fields are pull-safe: local data stays as is.
			continue
		}
		if isNull(raw) {
			// An explicit null means the field predates this collection in
			// the cloud document. Never let it erase local data; push the
			// local value up instead.
			if local := s.store.Raw(m.Key); !isNull(local) {
				repairs[m.Field] = local
			}
			continue
		}
		s.store.ApplyRemote(m.Key, raw)
		changed = append(changed, m.Field)
	}

	if len(repairs) > 0 {
		fields := make([]string, 0, len(repairs))
		for f := range repairs {
			fields = append(fields, f)
		}
		s.log.Info("migrating local fields missing from cloud document", zap.Strings("fields", fields))
		if err := s.backend.DocumentSetMerge(context.Background(), id.UID, repairs); err != nil {
			s.log.Error("field migration write failed", zap.Error(err))
		}
	}

	s.render(changed)
}

// onSubscriptionError logs and clears the guard. The subscription stays
// nominally attached; a process restart is the recovery path.
func (s *Session) onSubscriptionError(err error) {
	s.log.Error("document subscription error", zap.Error(err))
	s.mu.Lock()
	s.applying = false
	s.mu.Unlock()
}

// HandleSignOut detaches the live subscription and drops the identity.
// Pending updates are discarded: they belong to the session that ended.
func (s *Session) HandleSignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	if s.flushTask != nil {
		s.flushTask.Cancel()
		s.flushTask = nil
	}
	s.identity = nil
	s.pending = make(Snapshot)
}

// localSnapshot collects the current local value of every syncable field,
// substituting each mapping's default where no record exists yet.
func (s *Session) localSnapshot() Snapshot {
	snap := make(Snapshot, len(store.Mappings()))
	for _, m := range store.Mappings() {
		raw := s.store.Raw(m.Key)
		if isNull(raw) {
			raw = m.Default
		}
		snap[m.Field] = raw
	}
	return snap
}
