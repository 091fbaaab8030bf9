package sync_test

import (
	"context"
	"encoding/json"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/atinyakov/FocusKeeper/internal/client/store"
	"github.com/atinyakov/FocusKeeper/internal/client/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// manualScheduler collects scheduled tasks so tests advance the debounce
// clock deterministically.
type manualScheduler struct {
	mu    stdsync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn       func()
	canceled bool
}

func (t *manualTask) Cancel() {
	t.canceled = true
}

func (s *manualScheduler) Schedule(d time.Duration, fn func()) sync.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &manualTask{fn: fn}
	s.tasks = append(s.tasks, task)
	return task
}

// Advance fires every pending non-canceled task, as if the debounce window
// elapsed.
func (s *manualScheduler) Advance() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, task := range tasks {
		if !task.canceled {
			task.fn()
		}
	}
}

type fakeSubscription struct {
	mu       stdsync.Mutex
	canceled bool
}

func (f *fakeSubscription) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = true
}

func (f *fakeSubscription) Canceled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}

// fakeBackend is an in-memory document store recording every write.
type fakeBackend struct {
	mu           stdsync.Mutex
	doc          sync.Snapshot
	exists       bool
	mergeCalls   []sync.Snapshot
	replaceCalls []sync.Snapshot
	getCalls     int
	mergeErr     error
	getErr       error

	onSnapshot func(sync.Snapshot, bool)
	subs       []*fakeSubscription
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{doc: make(sync.Snapshot)}
}

func (f *fakeBackend) DocumentGet(ctx context.Context, uid string) (sync.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.copyDocLocked(), f.exists, nil
}

func (f *fakeBackend) DocumentSetMerge(ctx context.Context, uid string, fields sync.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeCalls = append(f.mergeCalls, cloneSnapshot(fields))
	if f.mergeErr != nil {
		return f.mergeErr
	}
	for k, v := range fields {
		f.doc[k] = v
	}
	f.exists = true
	return nil
}

func (f *fakeBackend) DocumentSetReplace(ctx context.Context, uid string, fields sync.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls = append(f.replaceCalls, cloneSnapshot(fields))
	f.doc = cloneSnapshot(fields)
	f.exists = true
	return nil
}

func (f *fakeBackend) DocumentSubscribe(uid string, onSnapshot func(sync.Snapshot, bool), onError func(error)) (sync.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSnapshot = onSnapshot
	sub := &fakeSubscription{}
	f.subs = append(f.subs, sub)
	return sub, nil
}

// deliver pushes a snapshot through the live subscription callback, as the
// remote store would after a change.
func (f *fakeBackend) deliver(snap sync.Snapshot, exists bool) {
	f.mu.Lock()
	cb := f.onSnapshot
	f.mu.Unlock()
	cb(snap, exists)
}

// deliverCurrent pushes the backend's own current document state.
func (f *fakeBackend) deliverCurrent() {
	f.mu.Lock()
	snap := f.copyDocLocked()
	exists := f.exists
	cb := f.onSnapshot
	f.mu.Unlock()
	cb(snap, exists)
}

func (f *fakeBackend) copyDocLocked() sync.Snapshot {
	return cloneSnapshot(f.doc)
}

func (f *fakeBackend) merges() []sync.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sync.Snapshot, len(f.mergeCalls))
	copy(out, f.mergeCalls)
	return out
}

func (f *fakeBackend) replaces() []sync.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sync.Snapshot, len(f.replaceCalls))
	copy(out, f.replaceCalls)
	return out
}

func cloneSnapshot(in sync.Snapshot) sync.Snapshot {
	out := make(sync.Snapshot, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

type fixture struct {
	backend *fakeBackend
	store   *store.Store
	sched   *manualScheduler
	session *sync.Session
	renders [][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: newFakeBackend(),
		sched:   &manualScheduler{},
	}
	f.store = store.New(store.NewMemTable(), zap.NewNop())
	f.session = sync.NewSession(f.backend, f.store, func(fields []string) {
		f.renders = append(f.renders, fields)
	}, zap.NewNop(), sync.Config{Scheduler: f.sched})
	return f
}

func (f *fixture) signInExisting(t *testing.T) {
	t.Helper()
	// Pre-existing cloud document so sign-in neither seeds nor replaces.
	f.backend.exists = true
	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "u1", Login: "u1"})
}

func TestScheduleWithoutIdentityIsNoOp(t *testing.T) {
	f := newFixture(t)

	f.store.Set("t2", []map[string]any{{"id": "t1"}})
	f.sched.Advance()

	assert.Empty(t, f.backend.merges(), "anonymous session must never write remotely")
}

func TestNonSyncableKeyNeverLeavesDevice(t *testing.T) {
	f := newFixture(t)
	f.signInExisting(t)

	f.store.Set("theme", "dark")
	f.store.Set("pomodoro", map[string]int{"work": 25})
	f.sched.Advance()

	assert.Empty(t, f.backend.merges())
}

func TestCoalescingProducesSingleMerge(t *testing.T) {
	f := newFixture(t)
	f.signInExisting(t)

	f.store.Set("t2", []string{"a"})
	f.store.Set("nt2", []string{"n"})
	f.store.Set("t2", []string{"a", "b"})

	require.Empty(t, f.backend.merges(), "no remote write may happen before the window elapses")

	f.sched.Advance()

	merges := f.backend.merges()
	require.Len(t, merges, 1, "a burst of edits must cost one remote write")
	assert.JSONEq(t, `["a","b"]`, string(merges[0]["todos"]), "merge must carry the latest value per field")
	assert.JSONEq(t, `["n"]`, string(merges[0]["notes"]))
	assert.Len(t, merges[0], 2)

	// The window is empty again: advancing without edits writes nothing.
	f.sched.Advance()
	assert.Len(t, f.backend.merges(), 1)
}

func TestIncomingSnapshotTriggersNoRemoteWrite(t *testing.T) {
	f := newFixture(t)
	f.signInExisting(t)

	f.backend.deliver(sync.Snapshot{
		"todos": json.RawMessage(`[{"id":"t9","title":"remote","done":true}]`),
		"notes": json.RawMessage(`[]`),
	}, true)
	f.sched.Advance()

	assert.Empty(t, f.backend.merges(), "remote-driven local writes must not echo back")
	assert.JSONEq(t, `[{"id":"t9","title":"remote","done":true}]`, string(f.store.Raw("t2")))

	// The guard is cleared afterwards: a user edit syncs normally again.
	f.store.Set("t2", []string{"local"})
	f.sched.Advance()
	assert.Len(t, f.backend.merges(), 1)
}

func TestNullRemoteFieldRepairsInsteadOfErasing(t *testing.T) {
	f := newFixture(t)
	f.store.Set("gm2", []map[string]any{{"id": "g1", "title": "Hollow Knight"}})
	f.signInExisting(t)

	f.backend.deliver(sync.Snapshot{
		"games": json.RawMessage(`null`),
		"todos": json.RawMessage(`["from-cloud"]`),
	}, true)

	// Local games survive untouched.
	assert.JSONEq(t, `[{"id":"g1","title":"Hollow Knight"}]`, string(f.store.Raw("gm2")))
	// And get pushed up to the document that predates the field.
	merges := f.backend.merges()
	require.Len(t, merges, 1)
	require.Contains(t, merges[0], "games")
	assert.JSONEq(t, `[{"id":"g1","title":"Hollow Knight"}]`, string(merges[0]["games"]))
	// The concrete field still applied.
	assert.JSONEq(t, `["from-cloud"]`, string(f.store.Raw("t2")))
}

func TestAbsentSnapshotFieldLeavesLocalAlone(t *testing.T) {
	f := newFixture(t)
	f.store.Set("nt2", []string{"keep me"})
	f.signInExisting(t)

	f.backend.deliver(sync.Snapshot{
		"todos": json.RawMessage(`["only-todos"]`),
	}, true)

	assert.JSONEq(t, `["keep me"]`, string(f.store.Raw("nt2")))
	assert.Empty(t, f.backend.merges(), "absent fields are pull-safe, not repaired")
}

func TestFirstSignInSeedsFreshDocument(t *testing.T) {
	f := newFixture(t)
	f.store.Set("t2", []map[string]any{{"id": "t1", "title": "Buy milk", "done": false}})

	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "u1", Login: "u1"})

	replaces := f.backend.replaces()
	require.Len(t, replaces, 1)
	require.Len(t, replaces[0], 8, "seed must carry every syncable field")
	assert.JSONEq(t, `[{"id":"t1","title":"Buy milk","done":false}]`, string(replaces[0]["todos"]))
	assert.JSONEq(t, `[]`, string(replaces[0]["habits"]))
	assert.JSONEq(t, `{}`, string(replaces[0]["hlog"]))
	// Local state is unchanged by seeding.
	assert.JSONEq(t, `[{"id":"t1","title":"Buy milk","done":false}]`, string(f.store.Raw("t2")))
}

func TestMigrationIsIdempotentUnderDoubleCompletion(t *testing.T) {
	f := newFixture(t)
	f.store.Set("t2", []string{"a"})

	id := sync.Identity{UID: "u1", Login: "u1"}
	// Popup and redirect completion handlers may both observe the sign-in.
	f.session.HandleSignIn(context.Background(), id)
	f.session.HandleSignIn(context.Background(), id)

	assert.Len(t, f.backend.replaces(), 1, "double completion must not seed twice")
	assert.Equal(t, 1, f.backend.getCalls, "existence is checked once per identity")
}

func TestCloudWinsOverLocalOnExistingDocument(t *testing.T) {
	f := newFixture(t)
	f.store.Set("t2", []string{"local-A"})
	f.backend.exists = true
	f.backend.doc = sync.Snapshot{"todos": json.RawMessage(`["cloud-B"]`)}

	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "u1", Login: "u1"})
	assert.Empty(t, f.backend.replaces(), "existing cloud data must never be overwritten at sign-in")

	// The subscriber's first snapshot pulls cloud state down.
	f.backend.deliverCurrent()
	assert.JSONEq(t, `["cloud-B"]`, string(f.store.Raw("t2")))
}

func TestSnapshotForAbsentDocumentSeedsFromLocal(t *testing.T) {
	f := newFixture(t)
	f.store.Set("gr2", []string{"eggs"})
	f.backend.exists = true // skip migration-path seeding
	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "u1", Login: "u1"})

	// Auth raced document creation: the listener sees no document.
	f.backend.deliver(nil, false)

	replaces := f.backend.replaces()
	require.Len(t, replaces, 1)
	assert.JSONEq(t, `["eggs"]`, string(replaces[0]["grocery"]))
	assert.Len(t, replaces[0], 8)
}

func TestSignOutCancelsSubscriptionAndPendingFlush(t *testing.T) {
	f := newFixture(t)
	f.signInExisting(t)

	f.store.Set("t2", []string{"a"})
	f.session.HandleSignOut()
	f.sched.Advance()

	assert.Empty(t, f.backend.merges(), "pending updates die with the session")
	require.Len(t, f.backend.subs, 1)
	assert.True(t, f.backend.subs[0].Canceled())
	assert.False(t, f.session.Authenticated())

	// Post-sign-out edits stay local.
	f.store.Set("t2", []string{"b"})
	f.sched.Advance()
	assert.Empty(t, f.backend.merges())
}

func TestNewSubscriptionCancelsPriorOne(t *testing.T) {
	f := newFixture(t)
	f.backend.exists = true

	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "u1", Login: "u1"})
	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "u1", Login: "u1"})

	require.Len(t, f.backend.subs, 2)
	assert.True(t, f.backend.subs[0].Canceled(), "starting a new listener must cancel the prior one")
	assert.False(t, f.backend.subs[1].Canceled())
}

func TestFailedFlushIsDroppedNotRetried(t *testing.T) {
	f := newFixture(t)
	f.signInExisting(t)

	f.backend.mergeErr = errors.New("network down")
	f.store.Set("t2", []string{"lost"})
	f.sched.Advance()
	require.Len(t, f.backend.merges(), 1)

	// Local state is still authoritative for the UI.
	assert.JSONEq(t, `["lost"]`, string(f.store.Raw("t2")))

	// The next flush carries only newly touched fields; the failed one is
	// not re-queued.
	f.backend.mu.Lock()
	f.backend.mergeErr = nil
	f.backend.mu.Unlock()
	f.store.Set("nt2", []string{"fresh"})
	f.sched.Advance()

	merges := f.backend.merges()
	require.Len(t, merges, 2)
	assert.Len(t, merges[1], 1)
	assert.Contains(t, merges[1], "notes")
}

func TestAnonymousIdentityDoesNotEnableSync(t *testing.T) {
	f := newFixture(t)
	f.backend.exists = true

	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "anon", Anonymous: true})

	assert.False(t, f.session.Authenticated())
	assert.Empty(t, f.backend.subs)

	f.store.Set("t2", []string{"a"})
	f.sched.Advance()
	assert.Empty(t, f.backend.merges())
}

func TestSnapshotTriggersRender(t *testing.T) {
	f := newFixture(t)
	f.signInExisting(t)

	f.backend.deliver(sync.Snapshot{
		"todos": json.RawMessage(`["x"]`),
		"notes": json.RawMessage(`["y"]`),
	}, true)

	require.Len(t, f.renders, 1)
	assert.ElementsMatch(t, []string{"todos", "notes"}, f.renders[0])
}

func TestSignInScenarioRoundTrip(t *testing.T) {
	// Scenario from the drawing board: seed a fresh account, then two rapid
	// edits inside one debounce window become one merge.
	f := newFixture(t)
	f.store.Set("t2", []map[string]any{{"id": "t1", "title": "Buy milk", "done": false}})

	f.session.HandleSignIn(context.Background(), sync.Identity{UID: "u1", Login: "u1"})
	replaces := f.backend.replaces()
	require.Len(t, replaces, 1)
	assert.JSONEq(t, `[{"id":"t1","title":"Buy milk","done":false}]`, string(replaces[0]["todos"]))

	f.store.Set("t2", []map[string]any{{"id": "t1", "title": "Buy milk", "done": true}})
	f.store.Set("t2", []map[string]any{{"id": "t1", "title": "Buy milk 2%", "done": true}})
	f.sched.Advance()

	merges := f.backend.merges()
	require.Len(t, merges, 1)
	assert.JSONEq(t, `[{"id":"t1","title":"Buy milk 2%","done":true}]`, string(merges[0]["todos"]))
}
