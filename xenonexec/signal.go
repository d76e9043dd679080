package xenonexec

import (
	"sync"

	"github.com/google/uuid"
)

// updateSignal lets an observer request an eager re-poll from the
// executor's driver loop, and lets the driver loop sleep in a way that
// wakes early when such a request arrives.
//
// Grounded on tjper-teleport/internal/jobworker/watch.ModWatcher: the
// same "listeners map[id]chan struct{}, broadcast notifies them all"
// shape, repurposed from "notify on file modification" to "notify on
// status-update request."
type updateSignal struct {
	mutex     sync.Mutex
	listeners map[uuid.UUID]chan struct{}
}

func newUpdateSignal() *updateSignal {
	return &updateSignal{listeners: make(map[uuid.UUID]chan struct{})}
}

// trigger wakes every goroutine currently waiting in wait.
func (s *updateSignal) trigger() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, listener := range s.listeners {
		select {
		case listener <- struct{}{}:
		default:
		}
	}
}

// register returns a channel that receives one value per trigger call
// made while registered, and a cleanup func the caller must invoke once
// done waiting.
func (s *updateSignal) register() (ch <-chan struct{}, cleanup func()) {
	id := uuid.New()
	c := make(chan struct{}, 1)

	s.mutex.Lock()
	s.listeners[id] = c
	s.mutex.Unlock()

	return c, func() {
		s.mutex.Lock()
		delete(s.listeners, id)
		s.mutex.Unlock()
	}
}
