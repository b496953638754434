package consumer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
	"github.com/ndn-tools/catchunks-go/internal/pipeline"
	"github.com/ndn-tools/catchunks-go/internal/rtt"
)

type pendingInterest struct {
	interest  ndn.Interest
	onData    facenet.DataCallback
	onNack    facenet.NackCallback
	onTimeout facenet.TimeoutCallback
}

// fakeFace mirrors the pipeline/discovery packages' test double: replies
// are always driven explicitly, never synchronously inside ExpressInterest.
type fakeFace struct {
	outstanding map[string]pendingInterest
	nextHandle  facenet.PendingHandle
}

func newFakeFace() *fakeFace {
	return &fakeFace{outstanding: make(map[string]pendingInterest)}
}

func (f *fakeFace) ExpressInterest(_ context.Context, interest ndn.Interest, onData facenet.DataCallback, onNack facenet.NackCallback, onTimeout facenet.TimeoutCallback) (facenet.PendingHandle, error) {
	f.outstanding[interest.Name.String()] = pendingInterest{interest, onData, onNack, onTimeout}
	f.nextHandle++
	return f.nextHandle, nil
}

func (f *fakeFace) RemovePendingInterest(facenet.PendingHandle) {}
func (f *fakeFace) Close() error                                { return nil }

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

// noopScheduler never fires on its own; nothing in these tests relies on
// jitter or statistics ticks firing without an explicit trigger.
type noopScheduler struct{}

func (noopScheduler) ScheduleEvent(int64, func()) facenet.CancelToken { return 0 }
func (noopScheduler) CancelEvent(facenet.CancelToken)                 {}
func (noopScheduler) CancelAllEvents()                                {}

func baseOptions() pipeline.Options {
	return pipeline.Options{
		StartPipelineSize:   2,
		MaxPipelineSize:     2,
		WindowCutMultiplier: 0.5,
		InterestLifetime:    time.Second,
	}
}

func TestConsumer_SkipDiscoverySingleSegment(t *testing.T) {
	face := newFakeFace()
	loop := eventloop.New(8)
	var out bytes.Buffer

	c, err := New(Config{
		Face:          face,
		Sched:         noopScheduler{},
		Loop:          loop,
		RTT:           rtt.New(),
		Output:        &out,
		Name:          "/a/video/v=1",
		SkipDiscovery: true,
		Pipeline:      baseOptions(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	exitCode := -1
	done := make(chan struct{})
	go func() {
		exitCode = c.Run(context.Background())
		close(done)
	}()

	waitForOutstanding(t, face, "/a/video/v=1/seg=0")
	face.resolveData("/a/video/v=1/seg=0", ndn.Data{
		Name:            ndn.MustParseName("/a/video/v=1/seg=0"),
		Content:         []byte("AAAA"),
		FinalBlockID:    0,
		HasFinalBlockID: true,
	})

	<-done
	if exitCode != ExitSuccess {
		t.Fatalf("exit code = %d, want %d", exitCode, ExitSuccess)
	}
	if out.String() != "AAAA" {
		t.Errorf("output = %q, want %q", out.String(), "AAAA")
	}
}

func TestConsumer_DiscoveryThenMultiSegment(t *testing.T) {
	face := newFakeFace()
	loop := eventloop.New(8)
	var out bytes.Buffer

	c, err := New(Config{
		Face:          face,
		Sched:         noopScheduler{},
		Loop:          loop,
		RTT:           rtt.New(),
		Output:        &out,
		Name:          "/a/video",
		DiscoveryMode: "fixed",
		Pipeline: pipeline.Options{
			StartPipelineSize:   2,
			MaxPipelineSize:     2,
			WindowCutMultiplier: 0.5,
			InterestLifetime:    time.Second,
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	exitCode := -1
	done := make(chan struct{})
	go func() {
		exitCode = c.Run(context.Background())
		close(done)
	}()

	waitForOutstanding(t, face, "/a/video")
	face.resolveData("/a/video", ndn.Data{
		Name:            ndn.MustParseName("/a/video/v=1/seg=0"),
		Content:         []byte("AAAA"),
		FinalBlockID:    2,
		HasFinalBlockID: true,
	})

	waitForOutstanding(t, face, "/a/video/v=1/seg=1")
	waitForOutstanding(t, face, "/a/video/v=1/seg=2")
	face.resolveData("/a/video/v=1/seg=1", ndn.Data{Name: ndn.MustParseName("/a/video/v=1/seg=1"), Content: []byte("BBBB")})
	face.resolveData("/a/video/v=1/seg=2", ndn.Data{Name: ndn.MustParseName("/a/video/v=1/seg=2"), Content: []byte("CCCC")})

	<-done
	if exitCode != ExitSuccess {
		t.Fatalf("exit code = %d, want %d", exitCode, ExitSuccess)
	}
	if out.String() != "AAAABBBBCCCC" {
		t.Errorf("output = %q, want %q", out.String(), "AAAABBBBCCCC")
	}
}

func TestConsumer_ApplicationNackFromSeed(t *testing.T) {
	face := newFakeFace()
	loop := eventloop.New(8)
	var out bytes.Buffer

	c, err := New(Config{
		Face:          face,
		Sched:         noopScheduler{},
		Loop:          loop,
		RTT:           rtt.New(),
		Output:        &out,
		Name:          "/a/video",
		DiscoveryMode: "fixed",
		Pipeline:      baseOptions(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	exitCode := -1
	done := make(chan struct{})
	go func() {
		exitCode = c.Run(context.Background())
		close(done)
	}()

	waitForOutstanding(t, face, "/a/video")
	face.resolveData("/a/video", ndn.Data{
		Name:        ndn.MustParseName("/a/video/v=1/seg=0"),
		ContentType: ndn.ContentTypeNack,
	})

	<-done
	if exitCode != ExitApplicationNack {
		t.Fatalf("exit code = %d, want %d", exitCode, ExitApplicationNack)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output written on application nack, got %q", out.String())
	}
}

func TestConsumer_PipelineFailurePropagatesRuntimeError(t *testing.T) {
	face := newFakeFace()
	loop := eventloop.New(8)
	var out bytes.Buffer

	c, err := New(Config{
		Face:          face,
		Sched:         noopScheduler{},
		Loop:          loop,
		RTT:           rtt.New(),
		Output:        &out,
		Name:          "/a/video/v=1",
		SkipDiscovery: true,
		Pipeline: pipeline.Options{
			StartPipelineSize:         1,
			MaxPipelineSize:           1,
			WindowCutMultiplier:       0.5,
			InterestLifetime:          time.Second,
			MaxRetriesOnTimeoutOrNack: 0,
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	exitCode := -1
	done := make(chan struct{})
	go func() {
		exitCode = c.Run(context.Background())
		close(done)
	}()

	waitForOutstanding(t, face, "/a/video/v=1/seg=0")
	face.resolveTimeout("/a/video/v=1/seg=0")

	<-done
	if exitCode != ExitRuntimeError {
		t.Fatalf("exit code = %d, want %d", exitCode, ExitRuntimeError)
	}
	if c.Failure() == "" {
		t.Error("expected a non-empty failure reason")
	}
}

// waitForOutstanding polls until name is outstanding on face, to avoid a
// data race between the consumer goroutine issuing the Interest and the
// test resolving it.
func waitForOutstanding(t *testing.T, face *fakeFace, name string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := face.outstanding[name]; ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for outstanding interest %q", name)
}
