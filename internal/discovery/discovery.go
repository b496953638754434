// Package discovery locates the version component of a content name before
// the pipeline can start fetching it, covering the two strategies named in
// the command-line surface (fixed and iterative). It is grounded on the
// same single-Interest retry machinery the fetcher package uses for
// segments, since confirming a version is itself a single-Interest
// request/retry problem, not a windowed one.
package discovery

import (
	"time"

	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/facenet"
	"github.com/ndn-tools/catchunks-go/internal/fetcher"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

// SuccessCallback reports the seed Data that fixed the content's version.
type SuccessCallback func(ndn.Data)

// FailureCallback reports that no version could be confirmed.
type FailureCallback func(reason string)

// Config holds the construction-time parameters for a Discovery run.
type Config struct {
	Face   facenet.Face
	Loop   *eventloop.Loop
	Mode   string   // "fixed" or "iterative"
	Prefix ndn.Name // unversioned content name

	MustBeFresh      bool
	InterestLifetime time.Duration

	// IterativeTimeouts is the number of consecutive timeouts at a
	// candidate version required before iterative mode gives up on it.
	// Ignored in fixed mode.
	IterativeTimeouts int
}

// Discovery runs one version-discovery attempt to completion, invoking
// exactly one of onSuccess or onFailure.
type Discovery struct {
	cfg Config

	onSuccess SuccessCallback
	onFailure FailureCallback

	// iterative-mode state
	candidate        uint64
	consecutiveFails int
	best             ndn.Data
	haveBest         bool

	current *fetcher.SegmentFetcher
}

// New constructs a Discovery; call Run to start it.
func New(cfg Config) *Discovery {
	return &Discovery{cfg: cfg}
}

// Run starts the discovery attempt. onSuccess or onFailure fires exactly
// once, asynchronously.
func (d *Discovery) Run(onSuccess SuccessCallback, onFailure FailureCallback) {
	d.onSuccess = onSuccess
	d.onFailure = onFailure

	switch d.cfg.Mode {
	case "fixed":
		d.probe(d.cfg.Prefix, fetcher.Unbounded, 0)
	case "iterative":
		d.probe(d.versionedName(d.candidate), 0, 0)
	default:
		onFailure("unknown discovery mode: " + d.cfg.Mode)
	}
}

// Cancel stops any in-flight probe.
func (d *Discovery) Cancel() {
	if d.current != nil {
		d.current.Cancel()
	}
}

func (d *Discovery) versionedName(candidate uint64) ndn.Name {
	return d.cfg.Prefix.Append(ndn.Component([]byte("v=" + itoa(candidate))))
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (d *Discovery) probe(name ndn.Name, maxNackRetries, maxTimeoutRetries int) {
	interest := ndn.Interest{
		Name:        name,
		MustBeFresh: d.cfg.MustBeFresh,
		Lifetime:    d.cfg.InterestLifetime,
		Nonce:       ndn.NewNonce(),
	}

	d.current = fetcher.New(fetcher.Config{
		Face:              d.cfg.Face,
		Loop:              d.cfg.Loop,
		Interest:          interest,
		MaxNackRetries:    maxNackRetries,
		MaxTimeoutRetries: maxTimeoutRetries,
		OnData:            d.handleData,
		OnNack:            d.handleNack,
		OnTimeout:         d.handleTimeout,
	})
}

func (d *Discovery) handleData(interest ndn.Interest, data ndn.Data, _ *fetcher.SegmentFetcher) {
	if d.cfg.Mode == "fixed" {
		d.onSuccess(data)
		return
	}

	d.best = data
	d.haveBest = true
	d.consecutiveFails = 0
	d.candidate++
	d.probe(d.versionedName(d.candidate), 0, 0)
}

func (d *Discovery) handleNack(interest ndn.Interest, reason string) {
	if d.cfg.Mode == "fixed" {
		d.onFailure(reason)
		return
	}
	d.handleIterativeMiss()
}

func (d *Discovery) handleTimeout(interest ndn.Interest, reason string) {
	if d.cfg.Mode == "fixed" {
		d.onFailure(reason)
		return
	}
	d.handleIterativeMiss()
}

func (d *Discovery) handleIterativeMiss() {
	d.consecutiveFails++
	if d.consecutiveFails < d.cfg.IterativeTimeouts {
		d.probe(d.versionedName(d.candidate), 0, 0)
		return
	}

	if d.haveBest {
		d.onSuccess(d.best)
		return
	}
	d.onFailure("iterative discovery found no version within the probe budget")
}
