package effects

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/flowbudget"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/journal"
	"github.com/hxrts/aura/storage"
)

// Testing mode (spec §4.4, §8 scenario 6) swaps the real wall clock and
// network for manually-driven, in-process ones so test code can advance
// time and deliver network messages without sockets or waiting — without
// the full multi-node scheduler Simulation mode provides. Spawned tasks
// still run on real goroutines, and Ticker uses a real time.Ticker.

// TestingClock lets test code set NowMillis explicitly instead of reading
// the real wall clock.
type TestingClock struct {
	mu     sync.Mutex
	millis uint64
}

func NewTestingClock(startMillis uint64) *TestingClock {
	return &TestingClock{millis: startMillis}
}

func (c *TestingClock) NowMillis() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

func (c *TestingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.Advance(d)
	return nil
}

// Advance moves the clock forward by d, for tests that need to cross a
// deadline without actually waiting.
func (c *TestingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.millis += uint64(d.Milliseconds())
}

type testingLogicalClock struct {
	mu   sync.Mutex
	self ids.AuthorityId
	cur  clock.LogicalTime
}

func NewTestingLogicalClock(self ids.AuthorityId) LogicalClock {
	return &testingLogicalClock{self: self, cur: clock.NewLogicalTime()}
}

func (c *testingLogicalClock) Advance() clock.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Advance(c.self)
	return c.cur.Clone()
}

func (c *testingLogicalClock) Merge(observed clock.LogicalTime) clock.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Merge(c.self, observed)
	return c.cur.Clone()
}

func (c *testingLogicalClock) Current() clock.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.Clone()
}

// testingRandom is a seeded PRNG, not cryptographically secure, so test
// runs are repeatable given the same seed.
type testingRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewTestingRandom(seed int64) Random {
	return &testingRandom{rng: rand.New(rand.NewSource(seed))}
}

func (r *testingRandom) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rng.Read(b)
	return b
}

func (r *testingRandom) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Uint64()
}

func (r *testingRandom) UUID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b [16]byte
	_, _ = r.rng.Read(b[:])
	u, _ := uuid.FromBytes(b[:])
	return u
}

// testingNetwork is an in-process loopback fabric: Send on one handle
// enqueues onto the addressed peer's handle sharing the same *testingHub, so tests
// can wire up a few authorities without sockets.
type testingHub struct {
	mu    sync.Mutex
	boxes map[string]chan inboundMsg
}

type inboundMsg struct {
	from    string
	payload []byte
}

// NewTestingHub returns a shared loopback fabric for NewTestingNetwork.
func NewTestingHub() *testingHub {
	return &testingHub{boxes: make(map[string]chan inboundMsg)}
}

func (h *testingHub) box(addr string) chan inboundMsg {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boxes[addr]
	if !ok {
		b = make(chan inboundMsg, 256)
		h.boxes[addr] = b
	}
	return b
}

type testingNetwork struct {
	self string
	hub  *testingHub
}

// NewTestingNetwork binds self to hub; Send addressed to another bound
// address delivers synchronously into that address's Recv queue.
func NewTestingNetwork(self string, hub *testingHub) Network {
	hub.box(self)
	return &testingNetwork{self: self, hub: hub}
}

func (n *testingNetwork) Connect(ctx context.Context, peer string) error { return nil }
func (n *testingNetwork) Disconnect(peer string) error                  { return nil }

func (n *testingNetwork) Send(ctx context.Context, peer string, payload []byte) error {
	select {
	case n.hub.box(peer) <- inboundMsg{from: n.self, payload: payload}:
		return nil
	default:
		return fmt.Errorf("effects: testing network %q inbox full", peer)
	}
}

func (n *testingNetwork) Recv(ctx context.Context) (string, []byte, error) {
	select {
	case m := <-n.hub.box(n.self):
		return m.from, m.payload, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// testingTask runs spawned work in tracked goroutines
// without errgroup's fail-fast semantics, so one task panicking/erroring
// doesn't cancel sibling tasks mid-test.
type testingTask struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	cancels []context.CancelFunc
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewTestingTask() Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &testingTask{ctx: ctx, cancel: cancel}
}

func (t *testingTask) Spawn(fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(t.ctx)
	}()
}

func (t *testingTask) SpawnCancellable(fn func(ctx context.Context)) CancelFunc {
	ctx, cancel := context.WithCancel(t.ctx)
	t.mu.Lock()
	t.cancels = append(t.cancels, cancel)
	t.mu.Unlock()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(ctx)
	}()
	return CancelFunc(cancel)
}

func (t *testingTask) Ticker(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}

func (t *testingTask) Shutdown(grace time.Duration) {
	t.mu.Lock()
	for _, c := range t.cancels {
		c()
	}
	t.mu.Unlock()
	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
	}
}

// testingConsole collects log lines instead of writing them, so assertions
// can inspect what was logged.
type testingConsole struct {
	mu    sync.Mutex
	lines []string
}

func NewTestingConsole() *testingConsole { return &testingConsole{} }

func (c *testingConsole) Log(level, msg string, attrs ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf("[%s] %s %v", level, msg, attrs))
}

func (c *testingConsole) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

type testingTrace struct{}

func NewTestingTrace() Trace { return testingTrace{} }

func (testingTrace) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	return ctx, func() {}
}

// testingBiometric always approves, unless told otherwise, so ceremonies
// that gate on biometric consent don't need a real sensor in unit tests.
type testingBiometric struct {
	approve bool
}

func NewTestingBiometric(approve bool) Biometric { return &testingBiometric{approve: approve} }

func (b *testingBiometric) Verify(context.Context) (bool, error) { return b.approve, nil }

type testingSystem struct{}

func NewTestingSystem() System { return testingSystem{} }

func (testingSystem) Hostname() string      { return "test-host" }
func (testingSystem) Uptime() time.Duration { return 0 }

// TestingBundleDeps parameterizes NewTestingBundle.
type TestingBundleDeps struct {
	Self        ids.AuthorityId
	Seed        int64
	StartMillis uint64
	NetworkAddr string
	Hub         *testingHub
}

// NewTestingBundle wires the deterministic Testing-mode handler set (spec
// §4.4 Testing, SPEC_FULL.md §C).
func NewTestingBundle(deps TestingBundleDeps, journalStore *journal.Store, budgets *flowbudget.Store) *Bundle {
	hub := deps.Hub
	if hub == nil {
		hub = NewTestingHub()
	}
	return &Bundle{
		Mode:         Testing(),
		PhysicalTime: NewTestingClock(deps.StartMillis),
		LogicalClock: NewTestingLogicalClock(deps.Self),
		Random:       NewTestingRandom(deps.Seed),
		Crypto:       productionCrypto{}, // hashing/signing stays real even under Testing mode
		Storage:      NewProductionStorage(storage.NewMemDB()),
		Network:      NewTestingNetwork(deps.NetworkAddr, hub),
		Journal:      NewProductionJournal(journalStore, budgets),
		Task:         NewTestingTask(),
		Console:      NewTestingConsole(),
		Trace:        NewTestingTrace(),
		Biometric:    NewTestingBiometric(true),
		System:       NewTestingSystem(),
	}
}
