package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

// defaultDialMaxElapsed bounds how long Connect retries a failing dial
// before giving up, independent of ctx's own deadline.
const defaultDialMaxElapsed = 10 * time.Second

// Dialer abstracts websocket.Dial so tests can substitute a fake; the zero
// value uses the real network.
type Dialer func(ctx context.Context, url string) (*websocket.Conn, error)

func defaultDialer(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	return conn, err
}

type peerConn struct {
	conn    *websocket.Conn
	limiter *rate.Limiter
}

// Transport is the production Network effect's websocket-based backing
// (spec §4.4 Network, §6 "connect/send/recv"). It maintains one connection
// per peer address and fans inbound messages into a single Recv queue,
// matching the teacher's network/relay.go single-stream-per-peer shape.
type Transport struct {
	mu    sync.Mutex
	peers map[string]*peerConn
	inbox chan inboundMessage
	dial  Dialer

	// inboundRate bounds how many messages per second a single peer may
	// push into the inbox before the abuse-control rate limiter starts
	// dropping frames, ahead of any flow-budget charging (SPEC_FULL.md §B).
	inboundRatePerSec float64

	// dialMaxElapsed bounds the exponential-backoff retry window around a
	// failing dial (SPEC_FULL.md §B: cenkalti/backoff retry policy for
	// transient Network errors).
	dialMaxElapsed time.Duration
}

type inboundMessage struct {
	peer    string
	payload []byte
}

// NewTransport constructs a Transport. inboundRatePerSec <= 0 disables
// rate limiting.
func NewTransport(inboundRatePerSec float64) *Transport {
	return &Transport{
		peers:             make(map[string]*peerConn),
		inbox:             make(chan inboundMessage, 256),
		dial:              defaultDialer,
		inboundRatePerSec: inboundRatePerSec,
		dialMaxElapsed:    defaultDialMaxElapsed,
	}
}

// WithDialer overrides the dialer (for tests).
func (t *Transport) WithDialer(d Dialer) *Transport {
	t.dial = d
	return t
}

// WithDialRetryWindow overrides how long Connect retries a failing dial
// before giving up. d <= 0 disables retry (a single attempt).
func (t *Transport) WithDialRetryWindow(d time.Duration) *Transport {
	t.dialMaxElapsed = d
	return t
}

func (t *Transport) newLimiter() *rate.Limiter {
	if t.inboundRatePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(t.inboundRatePerSec), int(t.inboundRatePerSec)+1)
}

// Connect dials peer (a ws:// or wss:// URL) and starts a background reader
// fanning inbound frames into the shared inbox.
func (t *Transport) Connect(ctx context.Context, peer string) error {
	t.mu.Lock()
	if _, exists := t.peers[peer]; exists {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	conn, err := t.dialWithRetry(ctx, peer)
	if err != nil {
		return fmt.Errorf("network: connect %s: %w", peer, err)
	}

	pc := &peerConn{conn: conn, limiter: t.newLimiter()}
	t.mu.Lock()
	t.peers[peer] = pc
	t.mu.Unlock()

	go t.readLoop(peer, pc)
	return nil
}

// dialWithRetry dials peer, retrying transient failures with exponential
// backoff until dialMaxElapsed or ctx expires, whichever is sooner.
func (t *Transport) dialWithRetry(ctx context.Context, peer string) (*websocket.Conn, error) {
	if t.dialMaxElapsed <= 0 {
		return t.dial(ctx, peer)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = t.dialMaxElapsed

	var conn *websocket.Conn
	err := backoff.Retry(func() error {
		c, err := t.dial(ctx, peer)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(bo, ctx))
	return conn, err
}

func (t *Transport) readLoop(peer string, pc *peerConn) {
	ctx := context.Background()
	for {
		_, data, err := pc.conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			delete(t.peers, peer)
			t.mu.Unlock()
			return
		}
		if !pc.limiter.Allow() {
			continue // abuse control: drop over-rate inbound frames
		}
		select {
		case t.inbox <- inboundMessage{peer: peer, payload: data}:
		default:
			// inbox full: drop rather than block the reader indefinitely
		}
	}
}

// Disconnect closes the connection to peer, if any.
func (t *Transport) Disconnect(peer string) error {
	t.mu.Lock()
	pc, ok := t.peers[peer]
	delete(t.peers, peer)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return pc.conn.Close(websocket.StatusNormalClosure, "disconnect")
}

// Send writes payload to peer, connecting first if necessary.
func (t *Transport) Send(ctx context.Context, peer string, payload []byte) error {
	t.mu.Lock()
	pc, ok := t.peers[peer]
	t.mu.Unlock()
	if !ok {
		if err := t.Connect(ctx, peer); err != nil {
			return err
		}
		t.mu.Lock()
		pc, ok = t.peers[peer]
		t.mu.Unlock()
		if !ok {
			return fmt.Errorf("network: peer %s not connected after dial", peer)
		}
	}
	return pc.conn.Write(ctx, websocket.MessageBinary, payload)
}

// Recv blocks until a message arrives from any connected peer, or ctx is
// canceled.
func (t *Transport) Recv(ctx context.Context) (string, []byte, error) {
	select {
	case m := <-t.inbox:
		return m.peer, m.payload, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// Close tears down every peer connection.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for peer, pc := range t.peers {
		_ = pc.conn.Close(websocket.StatusNormalClosure, "shutdown")
		delete(t.peers, peer)
	}
}

// Server accepts inbound websocket connections from peers we did not dial,
// folding them into the same Transport so Recv sees both directions. This
// mirrors the teacher's network.Service gRPC server shape, simplified to
// plain websockets per spec §1's transport-format non-goal.
type Server struct {
	transport *Transport
}

func NewServer(t *Transport) *Server { return &Server{transport: t} }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	peer := r.RemoteAddr
	pc := &peerConn{conn: conn, limiter: s.transport.newLimiter()}
	s.transport.mu.Lock()
	s.transport.peers[peer] = pc
	s.transport.mu.Unlock()
	s.transport.readLoop(peer, pc)
}

var errClosed = errors.New("network: transport closed")

// WaitClosed blocks until d elapses or ctx is done, useful in tests driving
// the server loop without a real listener.
func WaitClosed(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errClosed
	}
}
