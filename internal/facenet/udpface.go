package facenet

import (
	"context"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ndn-tools/catchunks-go/internal/eventloop"
	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

type pending struct {
	name     string
	interest ndn.Interest
	onData   DataCallback
	onNack   NackCallback
	timeout  CancelToken
}

// UDPFace implements Face over a single UDP socket to one remote peer. It
// is a loopback-friendly stand-in for a real NDN forwarder link: the wire
// format (see wire.go) is this package's own, not NDN-TLV, since packet
// codecs are explicitly outside the fetcher core's scope (§6).
type UDPFace struct {
	conn    *net.UDPConn
	remote  *net.UDPAddr
	loop    *eventloop.Loop
	sched   Scheduler
	limiter *rate.Limiter

	mu      sync.Mutex
	next    PendingHandle
	pending map[PendingHandle]*pending
	byName  map[string]PendingHandle

	closed chan struct{}
}

// NewUDPFace dials remote over UDP and starts a background reader that
// posts demultiplexed replies onto loop.
func NewUDPFace(loop *eventloop.Loop, sched Scheduler, remote *net.UDPAddr, sendRatePerSec int) (*UDPFace, error) {
	conn, err := net.DialUDP("udp", nil, remote)
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if sendRatePerSec > 0 {
		limit = rate.Limit(sendRatePerSec)
	}
	f := &UDPFace{
		conn:    conn,
		remote:  remote,
		loop:    loop,
		sched:   sched,
		limiter: rate.NewLimiter(limit, max(1, sendRatePerSec)),
		pending: make(map[PendingHandle]*pending),
		byName:  make(map[string]PendingHandle),
		closed:  make(chan struct{}),
	}
	go f.readLoop()
	return f, nil
}

func (f *UDPFace) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := f.conn.Read(buf)
		if err != nil {
			select {
			case <-f.closed:
				return
			default:
			}
			continue
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		f.handlePacket(pkt)
	}
}

func (f *UDPFace) handlePacket(pkt []byte) {
	if len(pkt) == 0 {
		return
	}
	switch pkt[0] {
	case kindData:
		data, err := DecodeData(pkt)
		if err != nil {
			return
		}
		f.dispatchData(data)
	case kindNack:
		name, reason, err := DecodeNack(pkt)
		if err != nil {
			return
		}
		f.dispatchNack(name, reason)
	}
}

func (f *UDPFace) dispatchData(data ndn.Data) {
	key := data.Name.String()
	f.mu.Lock()
	h, ok := f.byName[key]
	var p *pending
	if ok {
		p = f.pending[h]
		delete(f.pending, h)
		delete(f.byName, key)
	}
	f.mu.Unlock()
	if !ok || p == nil {
		return
	}
	f.sched.CancelEvent(p.timeout)
	f.loop.Post(func() { p.onData(p.interest, data) })
}

func (f *UDPFace) dispatchNack(name ndn.Name, reason ndn.NackReason) {
	key := name.String()
	f.mu.Lock()
	h, ok := f.byName[key]
	var p *pending
	if ok {
		p = f.pending[h]
		delete(f.pending, h)
		delete(f.byName, key)
	}
	f.mu.Unlock()
	if !ok || p == nil {
		return
	}
	f.sched.CancelEvent(p.timeout)
	nack := ndn.Nack{Interest: p.interest, Reason: reason}
	f.loop.Post(func() { p.onNack(p.interest, nack) })
}

// ExpressInterest sends interest over the UDP socket, subject to the
// configured send-rate limiter, and arms a scheduler timeout.
func (f *UDPFace) ExpressInterest(ctx context.Context, interest ndn.Interest, onData DataCallback, onNack NackCallback, onTimeout TimeoutCallback) (PendingHandle, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.next++
	h := f.next
	key := interest.Name.String()
	p := &pending{name: key, interest: interest, onData: onData, onNack: onNack}
	f.pending[h] = p
	f.byName[key] = h
	f.mu.Unlock()

	p.timeout = f.sched.ScheduleEvent(interest.Lifetime.Milliseconds(), func() {
		f.mu.Lock()
		_, stillPending := f.pending[h]
		delete(f.pending, h)
		if cur, ok := f.byName[key]; ok && cur == h {
			delete(f.byName, key)
		}
		f.mu.Unlock()
		if stillPending {
			onTimeout(interest)
		}
	})

	if _, err := f.conn.Write(EncodeInterest(interest)); err != nil {
		f.RemovePendingInterest(h)
		return 0, err
	}
	return h, nil
}

// RemovePendingInterest cancels a still-outstanding registration.
func (f *UDPFace) RemovePendingInterest(h PendingHandle) {
	f.mu.Lock()
	p, ok := f.pending[h]
	if ok {
		delete(f.pending, h)
		if cur, exists := f.byName[p.name]; exists && cur == h {
			delete(f.byName, p.name)
		}
	}
	f.mu.Unlock()
	if ok {
		f.sched.CancelEvent(p.timeout)
	}
}

// Close releases the underlying socket.
func (f *UDPFace) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return f.conn.Close()
}
