package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/fetcher"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
	"github.com/ndn-tools/catchunks-go/internal/rtt"
)

func baseOptions() Options {
	return Options{
		StartPipelineSize:         2,
		MaxPipelineSize:           2,
		SlowStartThreshold:        0,
		WindowCutMultiplier:       0.5,
		MustBeFresh:               true,
		InterestLifetime:          time.Second,
		MaxRetriesOnTimeoutOrNack: 1,
		StartWait:                 true,
	}
}

func TestPipeline_SetWindowSizeClampsAndRoundTrips(t *testing.T) {
	face := newFakeFace()
	sched := &fakeScheduler{}
	loop := eventloop.New(4)

	opts := baseOptions()
	opts.StartPipelineSize = 2
	opts.MaxPipelineSize = 10
	p := New(face, sched, loop, opts, rtt.New())

	tests := []struct {
		set  float64
		want float64
	}{
		{set: 5, want: 5},
		{set: 1, want: 2},   // below startPipelineSize
		{set: 50, want: 10}, // above maxPipelineSize
	}
	for _, tt := range tests {
		if ok := p.SetWindowSize(tt.set); !ok {
			t.Errorf("SetWindowSize(%v) returned false, want true", tt.set)
		}
		if got := p.GetWindowSize(); got != tt.want {
			t.Errorf("SetWindowSize(%v) then GetWindowSize() = %v, want %v", tt.set, got, tt.want)
		}
	}
}

func TestPipeline_RunWithExcludedSegment_SkipsExcludedSegment(t *testing.T) {
	face := newFakeFace()
	sched := &fakeScheduler{}
	loop := eventloop.New(4)

	opts := baseOptions()
	opts.StartPipelineSize = 1
	opts.MaxPipelineSize = 1

	p := New(face, sched, loop, opts, rtt.New())

	seed := ndn.Data{Name: ndn.MustParseName("/a/v=1/seg=0")}
	p.RunWithExcludedSegment(seed, func(ndn.Interest, ndn.Data) {}, func(string) {})

	if len(face.sentOrder) != 1 {
		t.Fatalf("sent %d interests, want 1", len(face.sentOrder))
	}
	want := "/a/v=1/seg=1"
	if face.sentOrder[0] != want {
		t.Errorf("first interest name = %q, want %q (segment 0 must be skipped)", face.sentOrder[0], want)
	}
}

func TestPipeline_DeliversAllSegments(t *testing.T) {
	face := newFakeFace()
	sched := &fakeScheduler{}
	loop := eventloop.New(4)

	opts := baseOptions()
	p := New(face, sched, loop, opts, rtt.New())

	var received []ndn.SegmentNo
	p.RunWithName(ndn.MustParseName("/a/v=1"), func(_ ndn.Interest, d ndn.Data) {
		segNo, _ := d.Name.LastSegment()
		received = append(received, segNo)
	}, func(reason string) {
		t.Fatalf("unexpected failure: %s", reason)
	})

	// start() issues seg=0 (slot 0) and seg=1 (slot 1).
	if len(face.sentOrder) != 2 {
		t.Fatalf("sent %d interests after start, want 2", len(face.sentOrder))
	}

	face.resolveData("/a/v=1/seg=0", ndn.Data{
		Name:            ndn.MustParseName("/a/v=1/seg=0"),
		HasFinalBlockID: true,
		FinalBlockID:    2,
	})
	face.resolveData("/a/v=1/seg=1", ndn.Data{Name: ndn.MustParseName("/a/v=1/seg=1")})
	face.resolveData("/a/v=1/seg=2", ndn.Data{Name: ndn.MustParseName("/a/v=1/seg=2")})

	if len(received) != 3 {
		t.Fatalf("onData called %d times, want 3; got %v", len(received), received)
	}
	seen := map[ndn.SegmentNo]bool{}
	for _, s := range received {
		seen[s] = true
	}
	for _, want := range []ndn.SegmentNo{0, 1, 2} {
		if !seen[want] {
			t.Errorf("segment %d was never delivered", want)
		}
	}
	if p.HasError() {
		t.Error("pipeline should not have latched an error on a clean fetch")
	}
}

func TestPipeline_HandleFail_KnownFinalBlockIdIsFatal(t *testing.T) {
	face := newFakeFace()
	sched := &fakeScheduler{}
	loop := eventloop.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	opts := baseOptions()
	opts.StartPipelineSize = 1
	opts.MaxPipelineSize = 1
	opts.MaxRetriesOnTimeoutOrNack = 0

	p := New(face, sched, loop, opts, rtt.New())

	seed := ndn.Data{
		Name:            ndn.MustParseName("/a/v=1/seg=0"),
		HasFinalBlockID: true,
		FinalBlockID:    5,
	}

	failed := make(chan string, 1)
	p.RunWithExcludedSegment(seed, func(ndn.Interest, ndn.Data) {}, func(reason string) {
		failed <- reason
	})

	// seg=0 is excluded (already in hand via the seed); the only active
	// fetcher is for seg=1, which is within the known final block range.
	face.resolveTimeout("/a/v=1/seg=1")

	select {
	case reason := <-failed:
		if want := "Reached the maximum number of timeout retries"; reason != want {
			t.Errorf("failure reason = %q, want %q", reason, want)
		}
	case <-time.After(time.Second):
		t.Fatal("onFailure was never posted")
	}

	if !p.HasError() {
		t.Error("HasError() should be true after a fatal timeout")
	}
}

func TestPipeline_HandleFail_UnknownFinalBlockIdPastEndIsFatal(t *testing.T) {
	face := newFakeFace()
	sched := &fakeScheduler{}
	loop := eventloop.New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	opts := baseOptions()
	opts.StartPipelineSize = 1
	opts.MaxPipelineSize = 1
	opts.MaxRetriesOnTimeoutOrNack = 0

	p := New(face, sched, loop, opts, rtt.New())

	failed := make(chan string, 1)
	p.RunWithName(ndn.MustParseName("/a/v=1"), func(ndn.Interest, ndn.Data) {}, func(reason string) {
		failed <- reason
	})

	face.resolveTimeout("/a/v=1/seg=0")

	select {
	case reason := <-failed:
		want := "Fetching terminated but no final segment number has been found"
		if reason != want {
			t.Errorf("failure reason = %q, want %q", reason, want)
		}
	case <-time.After(time.Second):
		t.Fatal("onFailure was never posted")
	}
}

func TestPipeline_WindowCutAtMostOncePerEpoch(t *testing.T) {
	face := newFakeFace()
	sched := &fakeScheduler{}
	loop := eventloop.New(8)

	opts := baseOptions()
	opts.StartPipelineSize = 2
	opts.MaxPipelineSize = 16
	opts.SlowStartThreshold = 0
	opts.MaxRetriesOnTimeoutOrNack = fetcher.Unbounded
	opts.WindowCutMultiplier = 0.5

	p := New(face, sched, loop, opts, rtt.New())
	p.RunWithName(ndn.MustParseName("/a/v=1"), func(ndn.Interest, ndn.Data) {}, func(string) {})

	// Grow the window past startPipelineSize and close out the startup
	// epoch (nMissingWindowEvents reaches 0 after 2 events with W0=2), so
	// the upcoming cut has room to show below the new lastWindowSize.
	face.resolveData("/a/v=1/seg=0", ndn.Data{Name: ndn.MustParseName("/a/v=1/seg=0")})
	face.resolveData("/a/v=1/seg=1", ndn.Data{Name: ndn.MustParseName("/a/v=1/seg=1")})

	before := p.GetWindowSize()
	if before != 4 {
		t.Fatalf("window after 2 acks = %v, want 4 (slow start from W0=2)", before)
	}

	face.resolveTimeout("/a/v=1/seg=2")
	afterFirstCut := p.GetWindowSize()
	if want := before * opts.WindowCutMultiplier; afterFirstCut != want {
		t.Errorf("window after first timeout = %v, want %v", afterFirstCut, want)
	}

	face.resolveTimeout("/a/v=1/seg=3")
	afterSecondCut := p.GetWindowSize()
	if afterSecondCut != afterFirstCut {
		t.Errorf("window cut twice in the same epoch: %v -> %v, want unchanged at %v", afterFirstCut, afterSecondCut, afterFirstCut)
	}
}

func TestPipeline_SlowStartGrowsByWholeSegmentPerAck(t *testing.T) {
	face := newFakeFace()
	sched := &fakeScheduler{}
	loop := eventloop.New(8)

	opts := baseOptions()
	opts.StartPipelineSize = 1
	opts.MaxPipelineSize = 8
	opts.SlowStartThreshold = 4
	opts.MaxRetriesOnTimeoutOrNack = fetcher.Unbounded

	p := New(face, sched, loop, opts, rtt.New())
	p.RunWithName(ndn.MustParseName("/a/v=1"), func(ndn.Interest, ndn.Data) {}, func(string) {})

	if got := p.GetWindowSize(); got != 1 {
		t.Fatalf("initial window = %v, want 1", got)
	}

	face.resolveData("/a/v=1/seg=0", ndn.Data{Name: ndn.MustParseName("/a/v=1/seg=0")})
	if got := p.GetWindowSize(); got != 2 {
		t.Errorf("window after 1st ack = %v, want 2 (slow start)", got)
	}

	face.resolveData("/a/v=1/seg=1", ndn.Data{Name: ndn.MustParseName("/a/v=1/seg=1")})
	if got := p.GetWindowSize(); got != 3 {
		t.Errorf("window after 2nd ack = %v, want 3 (slow start)", got)
	}
}
