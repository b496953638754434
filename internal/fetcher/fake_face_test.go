package fetcher

import (
	"context"

	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

// fakeFace is an in-process facenet.Face double: tests drive replies by
// calling replyData/replyNack/replyTimeout directly instead of going
// through a real transport.
type fakeFace struct {
	sent        []ndn.Interest
	onData      facenet.DataCallback
	onNack      facenet.NackCallback
	onTimeout   facenet.TimeoutCallback
	lastHandle  facenet.PendingHandle
	removed     []facenet.PendingHandle
	expressFail bool
}

func (f *fakeFace) ExpressInterest(_ context.Context, interest ndn.Interest, onData facenet.DataCallback, onNack facenet.NackCallback, onTimeout facenet.TimeoutCallback) (facenet.PendingHandle, error) {
	if f.expressFail {
		return 0, context.Canceled
	}
	f.sent = append(f.sent, interest)
	f.onData = onData
	f.onNack = onNack
	f.onTimeout = onTimeout
	f.lastHandle++
	return f.lastHandle, nil
}

func (f *fakeFace) RemovePendingInterest(h facenet.PendingHandle) {
	f.removed = append(f.removed, h)
}

func (f *fakeFace) Close() error { return nil }

func (f *fakeFace) replyData(data ndn.Data) {
	interest := f.sent[len(f.sent)-1]
	f.onData(interest, data)
}

func (f *fakeFace) replyNack(reason ndn.NackReason) {
	interest := f.sent[len(f.sent)-1]
	f.onNack(interest, ndn.Nack{Interest: interest, Reason: reason})
}

func (f *fakeFace) replyTimeout() {
	interest := f.sent[len(f.sent)-1]
	f.onTimeout(interest)
}
