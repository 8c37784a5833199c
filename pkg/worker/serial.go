// Package worker provides the single serialized executor that runs every
// negotiation transition and channel send of a call.
package worker

import (
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/go-logr/logr"
	"github.com/pion/apprtc-direct/pkg/logger"
)

// Logger is used when tasks are dropped after Stop.
var Logger logr.Logger = logger.New().WithName("worker")

// Serial runs submitted tasks one at a time, in submission order.
type Serial struct {
	sync.RWMutex
	pool    *workerpool.WorkerPool
	stopped bool
	done    chan struct{}
}

// NewSerial creates a started Serial.
func NewSerial() *Serial {
	return &Serial{
		pool: workerpool.New(1),
		done: make(chan struct{}),
	}
}

// Submit queues task. Tasks submitted after Stop are dropped.
func (s *Serial) Submit(task func()) {
	s.RLock()
	defer s.RUnlock()
	if s.stopped {
		Logger.V(1).Info("Dropping task submitted after stop")
		return
	}
	s.pool.Submit(task)
}

// Stop stops accepting tasks. Tasks already queued still run. Stop does not
// wait for them, so it can be called from inside a task; use Done to wait.
func (s *Serial) Stop() {
	s.Lock()
	defer s.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	go func() {
		s.pool.StopWait()
		close(s.done)
	}()
}

// Stopped reports whether Stop was called.
func (s *Serial) Stopped() bool {
	s.RLock()
	defer s.RUnlock()
	return s.stopped
}

// Done is closed once Stop was called and every queued task has run.
func (s *Serial) Done() <-chan struct{} {
	return s.done
}
