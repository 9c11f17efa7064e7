package effects

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	ecrypto "github.com/hxrts/aura/crypto"
	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/flowbudget"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/journal"
	"github.com/hxrts/aura/network"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// --- PhysicalTime ---

type productionPhysicalTime struct{}

func (productionPhysicalTime) NowMillis() uint64 { return uint64(time.Now().UnixMilli()) }

func (productionPhysicalTime) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- LogicalClock ---

type productionLogicalClock struct {
	mu   sync.Mutex
	self ids.AuthorityId
	cur  clock.LogicalTime
}

func newProductionLogicalClock(self ids.AuthorityId) *productionLogicalClock {
	return &productionLogicalClock{self: self, cur: clock.NewLogicalTime()}
}

func (c *productionLogicalClock) Advance() clock.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Advance(c.self)
	return c.cur.Clone()
}

func (c *productionLogicalClock) Merge(observed clock.LogicalTime) clock.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Merge(c.self, observed)
	return c.cur.Clone()
}

func (c *productionLogicalClock) Current() clock.LogicalTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.Clone()
}

// --- Random ---

type productionRandom struct{}

func (productionRandom) Bytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func (productionRandom) Uint64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:])
}

func (productionRandom) UUID() uuid.UUID { return uuid.New() }

// --- Crypto ---

type productionCrypto struct{}

func (productionCrypto) Blake3(b []byte) ids.Hash32 { return ecrypto.Blake3(b) }

func (productionCrypto) Ed25519Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

func (productionCrypto) Ed25519Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ecrypto.Verify(pub, msg, sig)
}

// --- Storage ---

// productionStorage adapts a BlobStore (defined below; the storage package
// provides implementations) to the Storage effect interface.
type productionStorage struct {
	backend BlobStore
}

// BlobStore is the minimal persistence contract the production Storage
// effect depends on; github.com/hxrts/aura/storage provides LevelDB- and
// memory-backed implementations (spec §6 "Persisted state layout").
type BlobStore interface {
	Exists(key string) (bool, error)
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	List(prefix string) ([]string, error)
}

func NewProductionStorage(backend BlobStore) Storage {
	return &productionStorage{backend: backend}
}

func (s *productionStorage) Exists(_ context.Context, key string) (bool, error) {
	return s.backend.Exists(key)
}
func (s *productionStorage) Get(_ context.Context, key string) ([]byte, error) {
	return s.backend.Get(key)
}
func (s *productionStorage) Put(_ context.Context, key string, value []byte) error {
	return s.backend.Put(key, value)
}
func (s *productionStorage) Delete(_ context.Context, key string) error {
	return s.backend.Delete(key)
}
func (s *productionStorage) List(_ context.Context, prefix string) ([]string, error) {
	return s.backend.List(prefix)
}

// --- Network ---

// productionNetwork adapts network.Transport (websocket-based, see the
// network package) to the Network effect interface.
type productionNetwork struct {
	transport *network.Transport
}

func NewProductionNetwork(transport *network.Transport) Network {
	return &productionNetwork{transport: transport}
}

func (n *productionNetwork) Connect(ctx context.Context, peer string) error {
	return n.transport.Connect(ctx, peer)
}
func (n *productionNetwork) Disconnect(peer string) error { return n.transport.Disconnect(peer) }
func (n *productionNetwork) Send(ctx context.Context, peer string, payload []byte) error {
	return n.transport.Send(ctx, peer, payload)
}
func (n *productionNetwork) Recv(ctx context.Context) (string, []byte, error) {
	return n.transport.Recv(ctx)
}

// --- Journal ---

type productionJournal struct {
	store   *journal.Store
	budgets *flowbudget.Store
}

func NewProductionJournal(store *journal.Store, budgets *flowbudget.Store) Journal {
	return &productionJournal{store: store, budgets: budgets}
}

func (j *productionJournal) Merge(ns fact.NS, delta *journal.Journal) error {
	return j.store.Merge(ns, delta)
}
func (j *productionJournal) Get(ns fact.NS) (*journal.Journal, bool) { return j.store.Get(ns) }
func (j *productionJournal) GetFlowBudget(ctx ids.ContextId, peer ids.AuthorityId) flowbudget.Budget {
	return j.budgets.Get(ctx, peer)
}
func (j *productionJournal) ChargeFlowBudget(ctx ids.ContextId, local, peer ids.AuthorityId, epoch uint64, cost uint32, nonce [8]byte, signer func([]byte) []byte) (flowbudget.Receipt, error) {
	return j.budgets.Charge(ctx, local, peer, epoch, cost, nonce, signer)
}

// --- Task ---

type productionTask struct {
	group    *errgroup.Group
	ctx      context.Context
	cancelFn context.CancelFunc
}

func newProductionTask() *productionTask {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	return &productionTask{group: group, ctx: ctx, cancelFn: cancel}
}

func (t *productionTask) Spawn(fn func(ctx context.Context)) {
	t.group.Go(func() error {
		fn(t.ctx)
		return nil
	})
}

func (t *productionTask) SpawnCancellable(fn func(ctx context.Context)) CancelFunc {
	ctx, cancel := context.WithCancel(t.ctx)
	t.group.Go(func() error {
		fn(ctx)
		return nil
	})
	return CancelFunc(cancel)
}

func (t *productionTask) Ticker(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}

func (t *productionTask) Shutdown(grace time.Duration) {
	t.cancelFn()
	done := make(chan struct{})
	go func() {
		_ = t.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
	}
}

// --- Console ---

type productionConsole struct {
	logger *slog.Logger
}

func NewProductionConsole(logger *slog.Logger) Console {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &productionConsole{logger: logger}
}

func (c *productionConsole) Log(level, msg string, attrs ...any) {
	switch level {
	case "debug":
		c.logger.Debug(msg, attrs...)
	case "warn":
		c.logger.Warn(msg, attrs...)
	case "error":
		c.logger.Error(msg, attrs...)
	default:
		c.logger.Info(msg, attrs...)
	}
}

// --- Trace ---

type productionTrace struct {
	tracer trace.Tracer
}

func NewProductionTrace(tracerName string) Trace {
	return &productionTrace{tracer: otel.Tracer(tracerName)}
}

func (t *productionTrace) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, func() { span.End() }
}

// --- Biometric ---

// productionBiometric always denies: the core has no platform binding to a
// real sensor at this layer (spec §1 Non-goals: "platform-specific secure
// key storage"); a concrete frontend wires its own implementation of the
// Biometric interface in.
type productionBiometric struct{}

func (productionBiometric) Verify(context.Context) (bool, error) {
	return false, fmt.Errorf("effects: no platform biometric handler bound in this process")
}

// --- System ---

type productionSystem struct {
	start time.Time
}

func newProductionSystem() *productionSystem { return &productionSystem{start: time.Now()} }

func (s *productionSystem) Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func (s *productionSystem) Uptime() time.Duration { return time.Since(s.start) }

// ProductionDeps bundles the constructor-time dependencies that can't be
// synthesized (storage backend, network transport, logger, self authority
// for the logical clock).
type ProductionDeps struct {
	Self      ids.AuthorityId
	Storage   BlobStore
	Transport *network.Transport
	Logger    *slog.Logger
	TracerName string
}

// NewProductionBundle wires the production effect handler set (spec §4.4).
func NewProductionBundle(deps ProductionDeps, journalStore *journal.Store, budgets *flowbudget.Store) *Bundle {
	tracerName := deps.TracerName
	if tracerName == "" {
		tracerName = "aura"
	}
	return &Bundle{
		Mode:         Production(),
		PhysicalTime: productionPhysicalTime{},
		LogicalClock: newProductionLogicalClock(deps.Self),
		Random:       productionRandom{},
		Crypto:       productionCrypto{},
		Storage:      NewProductionStorage(deps.Storage),
		Network:      NewProductionNetwork(deps.Transport),
		Journal:      NewProductionJournal(journalStore, budgets),
		Task:         newProductionTask(),
		Console:      NewProductionConsole(deps.Logger),
		Trace:        NewProductionTrace(tracerName),
		Biometric:    productionBiometric{},
		System:       newProductionSystem(),
	}
}
