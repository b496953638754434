package pipeline

import (
	"context"

	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

type pendingInterest struct {
	interest  ndn.Interest
	onData    facenet.DataCallback
	onNack    facenet.NackCallback
	onTimeout facenet.TimeoutCallback
}

// fakeFace never resolves an Interest on its own; tests drive every Data,
// Nack, and timeout explicitly via resolveData/resolveNack/resolveTimeout,
// keyed by the request name. This mirrors a real transport, where the
// reply always arrives on a later turn of the event loop, never
// synchronously inside ExpressInterest.
type fakeFace struct {
	outstanding map[string]pendingInterest
	nextHandle  facenet.PendingHandle
	sentOrder   []string
}

func newFakeFace() *fakeFace {
	return &fakeFace{outstanding: make(map[string]pendingInterest)}
}

func (f *fakeFace) ExpressInterest(_ context.Context, interest ndn.Interest, onData facenet.DataCallback, onNack facenet.NackCallback, onTimeout facenet.TimeoutCallback) (facenet.PendingHandle, error) {
	key := interest.Name.String()
	f.outstanding[key] = pendingInterest{interest, onData, onNack, onTimeout}
	f.sentOrder = append(f.sentOrder, key)
	f.nextHandle++
	return f.nextHandle, nil
}

func (f *fakeFace) RemovePendingInterest(facenet.PendingHandle) {}

func (f *fakeFace) Close() error { return nil }

func (f *fakeFace) resolveData(name string, data ndn.Data) {
	p, ok := f.outstanding[name]
	if !ok {
		return
	}
	delete(f.outstanding, name)
	p.onData(p.interest, data)
}

func (f *fakeFace) resolveTimeout(name string) {
	p, ok := f.outstanding[name]
	if !ok {
		return
	}
	delete(f.outstanding, name)
	p.onTimeout(p.interest)
}

func (f *fakeFace) resolveNack(name string, reason ndn.NackReason) {
	p, ok := f.outstanding[name]
	if !ok {
		return
	}
	delete(f.outstanding, name)
	p.onNack(p.interest, ndn.Nack{Interest: p.interest, Reason: reason})
}

// fakeScheduler runs scheduled events synchronously and immediately, so
// deferred fetches resolve without needing real delay. baseOptions leaves
// RandomWaitMaxMs at 0, so the tests here never schedule through it.
type fakeScheduler struct {
	nextToken facenet.CancelToken
}

func (s *fakeScheduler) ScheduleEvent(_ int64, cb func()) facenet.CancelToken {
	s.nextToken++
	cb()
	return s.nextToken
}

func (s *fakeScheduler) CancelEvent(facenet.CancelToken) {}
func (s *fakeScheduler) CancelAllEvents()                {}
