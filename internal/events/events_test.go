package events

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBusDeliversByName(t *testing.T) {
	bus := NewBus()
	var tasks, terms []Event
	bus.Subscribe(TaskEvent, func(e Event) { tasks = append(tasks, e) })
	unsub := bus.Subscribe(TerminalEvent, func(e Event) { terms = append(terms, e) })

	assert.Equal(t, 1, bus.Publish(NewTaskEvent("add", "ship it", "")))
	assert.Equal(t, 1, bus.Publish(NewTerminalEvent("ls", "a")))
	unsub()
	assert.Equal(t, 0, bus.Publish(NewTerminalEvent("ls", "b")))

	require.Len(t, tasks, 1)
	require.Len(t, terms, 1)

	d, err := tasks[0].Task()
	require.NoError(t, err)
	assert.Equal(t, TaskDetail{Action: "add", Task: "ship it"}, d)

	_, err = tasks[0].Terminal()
	assert.Error(t, err)
}

func TestUnsubscribeKeepsOthers(t *testing.T) {
	bus := NewBus()
	var order []string
	a := bus.Subscribe(TaskEvent, func(Event) { order = append(order, "a") })
	bus.Subscribe(TaskEvent, func(Event) { order = append(order, "b") })
	a()
	a()
	bus.Publish(NewTaskEvent("toggle", "", "1"))
	assert.Equal(t, []string{"b"}, order)
}

func TestInboxDeliversFiles(t *testing.T) {
	dir := t.TempDir()
	bus := NewBus()

	var mu sync.Mutex
	var got []TerminalDetail
	bus.Subscribe(TerminalEvent, func(e Event) {
		d, err := e.Terminal()
		if err == nil {
			mu.Lock()
			got = append(got, d)
			mu.Unlock()
		}
	})

	// A file written before the watcher starts is picked up on Start.
	_, err := WriteInbox(dir, NewTerminalEvent("early", "1"))
	require.NoError(t, err)

	inbox, err := NewInbox(dir, bus)
	require.NoError(t, err)
	require.NoError(t, inbox.Start(context.Background()))
	defer inbox.Stop()

	path, err := WriteInbox(dir, NewTerminalEvent("late", "2"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return inbox.Delivered() == 2 }, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []TerminalDetail{{Command: "early", Output: "1"}, {Command: "late", Output: "2"}}, got)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "delivered file should be removed")
}

func TestInboxDropsMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/bad.json", []byte("{not json"), 0644))

	inbox, err := NewInbox(dir, NewBus())
	require.NoError(t, err)
	require.NoError(t, inbox.Start(context.Background()))
	inbox.Stop()

	assert.Equal(t, 0, inbox.Delivered())
	_, err = os.Stat(dir + "/bad.json")
	assert.True(t, os.IsNotExist(err))
}

// stopsWithin fails the test when Stop does not return in time.
func stopsWithin(t *testing.T, inbox *Inbox, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		inbox.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("Stop did not return")
	}
}

func TestInboxStopAfterFailedStart(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	inbox, err := NewInbox(filepath.Join(file, "inbox"), NewBus())
	require.NoError(t, err)

	err = inbox.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create inbox dir")

	stopsWithin(t, inbox, 2*time.Second)
}

func TestInboxStopWithoutStart(t *testing.T) {
	inbox, err := NewInbox(t.TempDir(), NewBus())
	require.NoError(t, err)
	stopsWithin(t, inbox, 2*time.Second)
}

func TestInboxStartTwiceStopOnce(t *testing.T) {
	inbox, err := NewInbox(t.TempDir(), NewBus())
	require.NoError(t, err)
	require.NoError(t, inbox.Start(context.Background()))
	require.NoError(t, inbox.Start(context.Background()))
	stopsWithin(t, inbox, 2*time.Second)
}
