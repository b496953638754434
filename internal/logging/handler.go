package logging

import (
	"log/slog"
	"time"

	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

// WireTraceHandler logs per-Interest wire events (send, data, nack, timeout)
// through slog, the same classify-then-log idiom the teacher used for
// subprocess output: each event kind maps to a level, and debug-level
// events are suppressed unless verbose tracing was requested.
type WireTraceHandler struct {
	logger  *slog.Logger
	verbose bool
}

// NewWireTraceHandler returns a handler that logs through logger. Send and
// Data events are logged at debug level and suppressed unless verbose is
// true; Nack and Timeout events always log, since they are retry-relevant
// regardless of verbosity.
func NewWireTraceHandler(logger *slog.Logger, verbose bool) *WireTraceHandler {
	return &WireTraceHandler{logger: logger, verbose: verbose}
}

// TraceSent logs an outbound Interest.
func (h *WireTraceHandler) TraceSent(interest ndn.Interest) {
	if !h.verbose {
		return
	}
	h.logger.Debug("interest_sent",
		"name", interest.Name.String(),
		"must_be_fresh", interest.MustBeFresh,
		"lifetime", interest.Lifetime,
	)
}

// TraceData logs an inbound Data packet and its round-trip time.
func (h *WireTraceHandler) TraceData(interest ndn.Interest, data ndn.Data, rtt time.Duration) {
	if !h.verbose {
		return
	}
	h.logger.Debug("data_received",
		"name", data.Name.String(),
		"content_type", data.ContentType,
		"bytes", len(data.Content),
		"rtt", rtt,
	)
}

// TraceNack logs an inbound network Nack. Always logged: a Nack changes
// retry behavior and is worth seeing even without -v.
func (h *WireTraceHandler) TraceNack(interest ndn.Interest, reason string) {
	h.logger.Warn("nack_received",
		"name", interest.Name.String(),
		"reason", reason,
	)
}

// TraceTimeout logs an Interest timeout. Always logged, for the same reason
// as TraceNack.
func (h *WireTraceHandler) TraceTimeout(interest ndn.Interest) {
	h.logger.Warn("interest_timeout",
		"name", interest.Name.String(),
		"lifetime", interest.Lifetime,
	)
}

// TraceRetry logs a retry attempt at the fetcher/discovery layer.
func (h *WireTraceHandler) TraceRetry(interest ndn.Interest, attempt int, cause string) {
	if !h.verbose {
		return
	}
	h.logger.Debug("interest_retry",
		"name", interest.Name.String(),
		"attempt", attempt,
		"cause", cause,
	)
}
