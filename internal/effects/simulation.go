package effects

import (
	"container/heap"
	"context"
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

// Simulation mode (spec §4.4, §8 scenario 6) runs every node's effects
// against one shared, seeded World: a virtual clock that advances only when
// the world is stepped, and a latency-ordered message queue whose delivery
// order is a pure function of the seed. Two runs constructed with the same
// seed and the same sequence of World.Step calls deliver messages in the
// same order and observe the same NowMillis at every point, so ceremony and
// journal-merge races are exactly reproducible.

// World owns simulated time and message delivery for every node sharing it.
type World struct {
	mu      sync.Mutex
	rng     *rand.Rand
	nowMs   uint64
	pending eventQueue
	seq     uint64

	inboxes map[string]chan inboundMsg
}

// NewWorld constructs a simulation world seeded for deterministic replay.
func NewWorld(seed int64, startMillis uint64) *World {
	return &World{
		rng:     rand.New(rand.NewSource(seed)),
		nowMs:   startMillis,
		inboxes: make(map[string]chan inboundMsg),
	}
}

type event struct {
	dueMs   uint64
	seq     uint64 // tiebreaks FIFO for equal dueMs, so ordering stays deterministic
	deliver func()
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].dueMs != q[j].dueMs {
		return q[i].dueMs < q[j].dueMs
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)        { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func (w *World) schedule(delay time.Duration, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	heap.Push(&w.pending, &event{dueMs: w.nowMs + uint64(delay.Milliseconds()), seq: w.seq, deliver: fn})
}

// Step advances the world to the next scheduled event (if any), runs its
// delivery callback, and returns whether an event fired. Driving a
// simulation is a loop calling Step until it returns false or a scenario's
// own termination condition is met.
func (w *World) Step() bool {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return false
	}
	ev := heap.Pop(&w.pending).(*event)
	w.nowMs = ev.dueMs
	w.mu.Unlock()
	ev.deliver()
	return true
}

// Run drives Step until the queue drains or max steps are taken, guarding
// against runaway loops in a scenario with self-rescheduling tasks.
func (w *World) Run(maxSteps int) int {
	n := 0
	for n < maxSteps && w.Step() {
		n++
	}
	return n
}

func (w *World) now() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nowMs
}

func (w *World) inbox(addr string) chan inboundMsg {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.inboxes[addr]
	if !ok {
		ch = make(chan inboundMsg, 256)
		w.inboxes[addr] = ch
	}
	return ch
}

// jitter returns a pseudo-random latency in [base, base+spread), drawn from
// the world's seeded rng, so link delay is reproducible under a fixed seed.
func (w *World) jitter(base, spread time.Duration) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if spread <= 0 {
		return base
	}
	return base + time.Duration(w.rng.Int63n(int64(spread)))
}

// simulationClock reads World.now() instead of the real wall clock.
type simulationClock struct {
	world *World
}

func (c *simulationClock) NowMillis() uint64 { return c.world.now() }

func (c *simulationClock) Sleep(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	c.world.schedule(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// simulationNetwork delivers Send through the world's event queue after a
// seeded latency, rather than immediately, so message reordering across
// nodes is part of what a seed determines.
type simulationNetwork struct {
	self       string
	world      *World
	baseLatency, jitterSpread time.Duration
}

// NewSimulationNetwork binds self to world with a simulated link latency
// band [baseLatency, baseLatency+jitterSpread).
func NewSimulationNetwork(self string, world *World, baseLatency, jitterSpread time.Duration) Network {
	world.inbox(self)
	return &simulationNetwork{self: self, world: world, baseLatency: baseLatency, jitterSpread: jitterSpread}
}

func (n *simulationNetwork) Connect(ctx context.Context, peer string) error { return nil }
func (n *simulationNetwork) Disconnect(peer string) error                  { return nil }

func (n *simulationNetwork) Send(ctx context.Context, peer string, payload []byte) error {
	delay := n.world.jitter(n.baseLatency, n.jitterSpread)
	dst := n.world.inbox(peer)
	n.world.schedule(delay, func() {
		select {
		case dst <- inboundMsg{from: n.self, payload: payload}:
		default:
		}
	})
	return nil
}

func (n *simulationNetwork) Recv(ctx context.Context) (string, []byte, error) {
	select {
	case m := <-n.world.inbox(n.self):
		return m.from, m.payload, nil
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
}

// simulationRandom draws from the world's shared rng so every node's
// "random" draws are also a pure function of the world seed and step order.
type simulationRandom struct {
	world *World
}

func (r *simulationRandom) Bytes(n int) []byte {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.world.rng.Read(b)
	return b
}

func (r *simulationRandom) Uint64() uint64 {
	r.world.mu.Lock()
	defer r.world.mu.Unlock()
	return r.world.rng.Uint64()
}

func (r *simulationRandom) UUID() uuid.UUID {
	r.world.mu.Lock()
	var b [16]byte
	_, _ = r.world.rng.Read(b[:])
	r.world.mu.Unlock()
	u, _ := uuid.FromBytes(b[:])
	return u
}

// simulationTask runs spawned work inline on the calling goroutine rather
// than truly concurrently, so interleavings are driven entirely by World
// scheduling, not by the Go scheduler's nondeterminism.
type simulationTask struct {
	world     *World
	mu        sync.Mutex
	cancelled bool
}

func NewSimulationTask(world *World) Task { return &simulationTask{world: world} }

func (t *simulationTask) Spawn(fn func(ctx context.Context)) {
	fn(context.Background())
}

func (t *simulationTask) SpawnCancellable(fn func(ctx context.Context)) CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	fn(ctx)
	return CancelFunc(cancel)
}

func (t *simulationTask) Ticker(d time.Duration) (<-chan time.Time, func()) {
	ch := make(chan time.Time, 1)
	var stop func()
	var reschedule func()
	stopped := false
	reschedule = func() {
		t.world.schedule(d, func() {
			t.mu.Lock()
			done := stopped
			t.mu.Unlock()
			if done {
				return
			}
			select {
			case ch <- time.UnixMilli(int64(t.world.now())):
			default:
			}
			reschedule()
		})
	}
	stop = func() {
		t.mu.Lock()
		stopped = true
		t.mu.Unlock()
	}
	reschedule()
	return ch, stop
}

func (t *simulationTask) Shutdown(grace time.Duration) {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
}

// simulationBiometric always approves: ceremonies under simulation assume
// consent is out of scope for the scenario being replayed.
type simulationBiometric struct{}

func (simulationBiometric) Verify(context.Context) (bool, error) { return true, nil }

type simulationSystem struct {
	world *World
	node  string
}

func (s *simulationSystem) Hostname() string      { return s.node }
func (s *simulationSystem) Uptime() time.Duration { return time.Duration(s.world.now()) * time.Millisecond }

// SimulationNodeDeps parameterizes NewSimulationBundle for one node sharing
// a World with its peers.
type SimulationNodeDeps struct {
	Self        ids.AuthorityId
	Addr        string
	World       *World
	BaseLatency time.Duration
	JitterSpread time.Duration
}

// NewSimulationBundle wires one node's Simulation-mode handler set against
// a shared World (spec §4.4 Simulation{seed}, §8 scenario 6).
func NewSimulationBundle(deps SimulationNodeDeps, journalStore *journal.Store, budgets *flowbudget.Store) *Bundle {
	return &Bundle{
		Mode:         Simulation(0), // the world, not the bundle, is seed-bearing; Seed is informational here
		PhysicalTime: &simulationClock{world: deps.World},
		LogicalClock: newProductionLogicalClock(deps.Self),
		Random:       &simulationRandom{world: deps.World},
		Crypto:       productionCrypto{},
		Storage:      NewProductionStorage(storage.NewMemDB()),
		Network:      NewSimulationNetwork(deps.Addr, deps.World, deps.BaseLatency, deps.JitterSpread),
		Journal:      NewProductionJournal(journalStore, budgets),
		Task:         NewSimulationTask(deps.World),
		Console:      NewTestingConsole(),
		Trace:        NewTestingTrace(),
		Biometric:    simulationBiometric{},
		System:       &simulationSystem{world: deps.World, node: deps.Addr},
	}
}
