// Package effects implements the polymorphic, mode-selectable capability
// interface (spec §4.4, component C4) that all protocol code is written
// against. Each effect family is a distinct Go interface; a Bundle groups
// one implementation of each family, selected once at construction by
// ExecutionMode, so the same protocol code runs identically in production,
// deterministic testing, and simulation (spec §4.4, §8 scenario 6).
package effects

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/google/uuid"

	"github.com/hxrts/aura/internal/clock"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/flowbudget"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/journal"
)

// Mode selects the handler set a Bundle is constructed with (spec §4.4).
type Mode struct {
	Kind ModeKind
	Seed int64 // only meaningful when Kind == ModeSimulation
}

type ModeKind int

const (
	ModeProduction ModeKind = iota + 1
	ModeTesting
	ModeSimulation
)

func Production() Mode           { return Mode{Kind: ModeProduction} }
func Testing() Mode              { return Mode{Kind: ModeTesting} }
func Simulation(seed int64) Mode { return Mode{Kind: ModeSimulation, Seed: seed} }

// PhysicalTime is the wall-clock effect family (spec §4.4, §6).
type PhysicalTime interface {
	NowMillis() uint64
	Sleep(ctx context.Context, d time.Duration) error
}

// LogicalClock is the causal-ordering effect family, advanced on every
// local event and merged with observed clocks on receive (spec §4.4).
// Implementations must be monotonic across any sequence of Advance/Merge
// calls (spec §8 invariant-adjacent requirement carried from §3).
type LogicalClock interface {
	Advance() clock.LogicalTime
	Merge(observed clock.LogicalTime) clock.LogicalTime
	Current() clock.LogicalTime
}

// Random is the deterministic-under-seed byte/number/UUID source (spec
// §4.4, §6).
type Random interface {
	Bytes(n int) []byte
	Uint64() uint64
	UUID() uuid.UUID
}

// Crypto is the hash/sign/verify/threshold effect family (spec §4.4, §6).
type Crypto interface {
	Blake3(b []byte) ids.Hash32
	Ed25519Sign(priv ed25519.PrivateKey, msg []byte) []byte
	Ed25519Verify(pub ed25519.PublicKey, msg, sig []byte) bool
}

// Storage is the byte-blob key-value effect family (spec §4.4, §6). Key
// convention follows spec §6: "<component>:<identifier>:<field>".
type Storage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Network is the peer connect/send/recv effect family (spec §4.4, §6).
type Network interface {
	Connect(ctx context.Context, peer string) error
	Disconnect(peer string) error
	Send(ctx context.Context, peer string, payload []byte) error
	// Recv blocks until a message arrives for any connected peer, or ctx is
	// canceled.
	Recv(ctx context.Context) (peer string, payload []byte, err error)
}

// Journal bridges the effect layer to C1 (merge/reduce) and C3 (flow-budget
// read/charge), per spec §4.4.
type Journal interface {
	Merge(ns fact.NS, delta *journal.Journal) error
	Get(ns fact.NS) (*journal.Journal, bool)
	GetFlowBudget(ctx ids.ContextId, peer ids.AuthorityId) flowbudget.Budget
	ChargeFlowBudget(ctx ids.ContextId, local, peer ids.AuthorityId, epoch uint64, cost uint32, nonce [8]byte, signer func([]byte) []byte) (flowbudget.Receipt, error)
}

// CancelFunc stops a cancellable task.
type CancelFunc func()

// Task is the spawn/cancel/interval effect family (spec §4.4, §5). Shutdown
// cancels all outstanding tasks (spec §5 "Cancellation").
type Task interface {
	Spawn(fn func(ctx context.Context))
	SpawnCancellable(fn func(ctx context.Context)) CancelFunc
	Ticker(d time.Duration) (ch <-chan time.Time, stop func())
	Shutdown(grace time.Duration)
}

// Console is the structured logging effect family (spec §4.4, §6).
type Console interface {
	Log(level string, msg string, attrs ...any)
}

// Trace is the span-tracing effect family (spec §4.4).
type Trace interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
}

// Biometric is the presence/consent-check effect family (spec §4.4; see
// SPEC_FULL.md §C for the Production stance).
type Biometric interface {
	Verify(ctx context.Context) (bool, error)
}

// System is process/platform introspection (spec §4.4; SPEC_FULL.md §C).
type System interface {
	Hostname() string
	Uptime() time.Duration
}

// Bundle groups one implementation of every effect family, all selected
// together by Mode at construction (spec §4.4).
type Bundle struct {
	Mode         Mode
	PhysicalTime PhysicalTime
	LogicalClock LogicalClock
	Random       Random
	Crypto       Crypto
	Storage      Storage
	Network      Network
	Journal      Journal
	Task         Task
	Console      Console
	Trace        Trace
	Biometric    Biometric
	System       System
}
