package model

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

const watchBuffer = 256

// StoreWatcher forwards store snapshots to the bubbletea loop. The observer
// never blocks the goroutine mutating the store: when the UI falls behind,
// the oldest pending snapshot is dropped, since every snapshot carries the
// complete state.
type StoreWatcher struct {
	ch          chan Snapshot
	done        chan struct{}
	once        sync.Once
	unsubscribe func()
}

func WatchStore(store *Store) *StoreWatcher {
	w := &StoreWatcher{
		ch:   make(chan Snapshot, watchBuffer),
		done: make(chan struct{}),
	}
	w.unsubscribe = store.Subscribe(w.push)
	return w
}

// push runs under the store's notify lock, so there is a single producer.
func (w *StoreWatcher) push(snap Snapshot) {
	select {
	case w.ch <- snap:
		return
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	select {
	case w.ch <- snap:
	case <-w.done:
	}
}

// Wait returns a command resolving to the next StoreChangedMsg. Re-issue it
// after every message to keep listening.
func (w *StoreWatcher) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-w.ch:
			return StoreChangedMsg{Snapshot: snap}
		case <-w.done:
			return nil
		}
	}
}

func (w *StoreWatcher) Stop() {
	w.once.Do(func() {
		w.unsubscribe()
		close(w.done)
	})
}
