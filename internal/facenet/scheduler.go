package facenet

import (
	"sync"
	"time"

	"github.com/ndn-tools/catchunks-go/internal/eventloop"
)

// LoopScheduler implements Scheduler by posting fired timers onto an
// eventloop.Loop, so scheduled callbacks join the same serialized stream
// as Face callbacks.
type LoopScheduler struct {
	loop *eventloop.Loop

	mu     sync.Mutex
	next   CancelToken
	timers map[CancelToken]*time.Timer
}

// NewLoopScheduler creates a Scheduler bound to loop.
func NewLoopScheduler(loop *eventloop.Loop) *LoopScheduler {
	return &LoopScheduler{
		loop:   loop,
		timers: make(map[CancelToken]*time.Timer),
	}
}

// ScheduleEvent arranges for cb to run on the loop after delay milliseconds.
func (s *LoopScheduler) ScheduleEvent(delay int64, cb func()) CancelToken {
	s.mu.Lock()
	s.next++
	token := s.next
	s.mu.Unlock()

	timer := time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		s.mu.Lock()
		_, stillPending := s.timers[token]
		delete(s.timers, token)
		s.mu.Unlock()

		if stillPending {
			s.loop.Post(cb)
		}
	})

	s.mu.Lock()
	s.timers[token] = timer
	s.mu.Unlock()

	return token
}

// CancelEvent cancels one scheduled callback if it has not yet fired.
func (s *LoopScheduler) CancelEvent(t CancelToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[t]; ok {
		timer.Stop()
		delete(s.timers, t)
	}
}

// CancelAllEvents cancels every still-pending scheduled callback.
func (s *LoopScheduler) CancelAllEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, timer := range s.timers {
		timer.Stop()
		delete(s.timers, token)
	}
}
