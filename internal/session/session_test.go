package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"astra/internal/store"
	"astra/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memRemote is an in-memory RemoteStore.
type memRemote struct {
	mu      sync.Mutex
	records map[string]store.Patch
	upserts []store.Patch
	loadErr error
	saveErr error
	closed  bool
}

func newMemRemote() *memRemote {
	return &memRemote{records: map[string]store.Patch{}}
}

func (m *memRemote) LoadSession(_ context.Context, userID string) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	p, ok := m.records[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Record{Patch: p}, nil
}

func (m *memRemote) UpsertSession(_ context.Context, userID string, p store.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, p)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records[userID] = m.records[userID].Merge(p)
	return nil
}

func (m *memRemote) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *memRemote) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

func newAdapter(t *testing.T, remote store.RemoteStore, delay time.Duration) (*Adapter, *store.BoltStore) {
	t.Helper()
	local, err := store.NewBoltStore(filepath.Join(t.TempDir(), "local.bolt"))
	require.NoError(t, err)
	a, err := New(remote, local, delay)
	require.NoError(t, err)
	return a, local
}

func tasksPatch(texts ...string) store.Patch {
	var ts []types.Task
	for i, txt := range texts {
		ts = append(ts, types.Task{ID: string(rune('a' + i)), Text: txt})
	}
	return store.Patch{Tasks: &ts}
}

func TestLoad_DefaultsWhenEmpty(t *testing.T) {
	a, _ := newAdapter(t, nil, time.Second)
	data, src := a.Load(context.Background())
	assert.Equal(t, SourceDefaults, src)
	assert.Equal(t, types.DefaultSessionData(), data)
}

func TestLoad_RemoteWinsFieldByField(t *testing.T) {
	remote := newMemRemote()
	a, local := newAdapter(t, remote, time.Second)

	css := "local-style"
	mem := types.UserMemory{Facts: []string{"local fact"}}
	require.NoError(t, local.Save(store.Patch{CustomStyle: &css, Memory: &mem}))

	remoteMem := types.UserMemory{Facts: []string{"remote fact"}}
	remote.records[a.UserID()] = store.Patch{Memory: &remoteMem}

	data, src := a.Load(context.Background())
	assert.Equal(t, SourceRemote, src)
	assert.Equal(t, []string{"remote fact"}, data.Memory.Facts)
	assert.Equal(t, "local-style", data.CustomStyle)
	assert.Equal(t, types.DefaultSandboxConfig(), data.SandboxConfig)
}

func TestLoad_RemoteFailureFallsBackToLocal(t *testing.T) {
	remote := newMemRemote()
	remote.loadErr = errors.New("unavailable")
	a, local := newAdapter(t, remote, time.Second)
	require.NoError(t, local.Save(tasksPatch("offline task")))

	data, src := a.Load(context.Background())
	assert.Equal(t, SourceLocal, src)
	require.Len(t, data.Tasks, 1)
	assert.Equal(t, "offline task", data.Tasks[0].Text)
}

func TestSave_RemoteFailureIsSwallowed(t *testing.T) {
	remote := newMemRemote()
	remote.saveErr = errors.New("permission denied")
	a, local := newAdapter(t, remote, time.Second)

	require.NoError(t, a.Save(context.Background(), tasksPatch("kept")))
	assert.Equal(t, 1, remote.upsertCount())

	rec, err := local.Load()
	require.NoError(t, err)
	assert.Equal(t, "kept", (*rec.Tasks)[0].Text)
	require.NoError(t, a.Close(context.Background()))
}

func TestSchedule_DebouncesBursts(t *testing.T) {
	remote := newMemRemote()
	a, _ := newAdapter(t, remote, 40*time.Millisecond)
	defer a.Close(context.Background())

	css := "dark"
	a.Schedule(tasksPatch("one"))
	a.Schedule(tasksPatch("one", "two"))
	a.Schedule(store.Patch{CustomStyle: &css})
	assert.True(t, a.Pending())
	assert.Equal(t, 0, remote.upsertCount())

	require.Eventually(t, func() bool { return remote.upsertCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	a.debouncer.Wait()

	remote.mu.Lock()
	got := remote.upserts[0]
	remote.mu.Unlock()
	assert.Len(t, *got.Tasks, 2)
	assert.Equal(t, "dark", *got.CustomStyle)
	assert.False(t, a.Pending())
}

func TestFlushWritesImmediately(t *testing.T) {
	remote := newMemRemote()
	a, _ := newAdapter(t, remote, time.Hour)

	a.Schedule(tasksPatch("now"))
	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, 1, remote.upsertCount())

	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, 1, remote.upsertCount(), "nothing pending, nothing written")
}

func TestCloseFlushesAndClosesRemote(t *testing.T) {
	remote := newMemRemote()
	a, _ := newAdapter(t, remote, time.Hour)

	a.Schedule(tasksPatch("last"))
	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 1, remote.upsertCount())
	assert.True(t, remote.closed)

	a.Schedule(tasksPatch("ignored"))
	assert.False(t, a.Pending())
}

func TestDebouncer_CancelAndWait(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20 * time.Millisecond)
	d.Debounce(func() { calls.Add(1) })
	assert.True(t, d.Pending())
	d.Cancel()
	assert.False(t, d.Pending())
	d.Wait()

	d.Debounce(func() { calls.Add(1) })
	d.Debounce(func() { calls.Add(1) })
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	d.Wait()
	assert.False(t, d.Pending())

	d.Immediate(func() { calls.Add(1) })
	assert.Equal(t, int32(2), calls.Load())
}

func TestDebouncer_WaitConcurrentWithDebounce(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Debounce(func() { calls.Add(1) })
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Cancel()
				d.Wait()
			}
		}()
	}
	wg.Wait()
	d.Wait()
	assert.False(t, d.Pending())
	assert.Equal(t, 0, d.inflight)
}

func TestUserIDStableAcrossAdapters(t *testing.T) {
	local, err := store.NewBoltStore(filepath.Join(t.TempDir(), "local.bolt"))
	require.NoError(t, err)
	a1, err := New(nil, local, 0)
	require.NoError(t, err)
	a2, err := New(nil, local, 0)
	require.NoError(t, err)
	assert.Equal(t, a1.UserID(), a2.UserID())
}
