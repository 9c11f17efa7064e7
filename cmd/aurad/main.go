// Command aurad is the Aura node daemon: it loads configuration, opens
// storage, constructs the effect bundle for the configured mode, and wires
// the guard chain, ceremony runtime, and network server together, then
// blocks until an interrupt/SIGTERM signal arrives. Grounded on the
// teacher's cmd/consensusd/main.go entrypoint shape (signal.NotifyContext,
// construct-then-serve-in-goroutines-then-block-on-ctx.Done()).
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hxrts/aura/config"
	"github.com/hxrts/aura/internal/authority"
	"github.com/hxrts/aura/internal/capability"
	"github.com/hxrts/aura/internal/ceremony"
	"github.com/hxrts/aura/internal/effects"
	"github.com/hxrts/aura/internal/fact"
	"github.com/hxrts/aura/internal/flowbudget"
	"github.com/hxrts/aura/internal/guard"
	"github.com/hxrts/aura/internal/ids"
	"github.com/hxrts/aura/internal/journal"
	"github.com/hxrts/aura/internal/relctx"
	"github.com/hxrts/aura/internal/taskregistry"
	"github.com/hxrts/aura/network"
	"github.com/hxrts/aura/observability/logging"
	"github.com/hxrts/aura/observability/otel"
	"github.com/hxrts/aura/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup(logging.Config{
		Service: "aurad",
		Env:     os.Getenv("AURA_ENV"),
		Level:   slog.LevelInfo,
		File:    cfg.LogFile,
	})

	if cfg.OTelEndpoint != "" {
		ctx := context.Background()
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "aurad",
			Environment: os.Getenv("AURA_ENV"),
			Endpoint:    cfg.OTelEndpoint,
			Insecure:    cfg.OTelInsecure,
		})
		if err != nil {
			logger.Error("failed to initialise tracing", slog.Any("error", err))
		} else {
			defer shutdown(context.Background())
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	seed, err := hex.DecodeString(cfg.DeviceKey)
	if err != nil || len(seed) != ed25519.SeedSize {
		panic(fmt.Sprintf("Failed to parse device key: %v", err))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	selfID, err := ids.ID256FromBytes(pub)
	if err != nil {
		panic(fmt.Sprintf("Failed to derive authority id: %v", err))
	}
	self := ids.AuthorityId(selfID)
	logger.Info("device identity resolved", slog.String("authority", self.String()))

	journalStore := journal.NewStore()
	budgets := flowbudget.NewStore()
	taskRegistry := taskregistry.New(context.Background())
	ceremonyRuntime := ceremony.NewRuntime()
	factRegistry := fact.NewRegistry()

	contexts := newContextRegistry(factRegistry)
	_ = contexts // constructed here; no handler in this binary uses it

	authorityNS := fact.AuthorityNamespace(self)
	authorityProjector := authority.NewProjector(journalStore, 1, 1)

	keys := newAuthorityKeyRegistry()
	keys.set(self, 0, pub)
	verifier := capability.NewVerifier(keys, 8)
	guardChain := guard.New(verifier, budgets)
	_ = guardChain // constructed here; no request handler in this binary calls it

	transport := network.NewTransport(50)
	defer transport.Close()

	var bundle *effects.Bundle
	switch cfg.EffectMode {
	case config.ModeTesting:
		bundle = effects.NewTestingBundle(effects.TestingBundleDeps{
			Self:        self,
			Seed:        cfg.SimulationSeed,
			StartMillis: uint64(time.Now().UnixMilli()),
			NetworkAddr: cfg.ListenAddress,
		}, journalStore, budgets)
	case config.ModeSimulation:
		world := effects.NewWorld(cfg.SimulationSeed, uint64(time.Now().UnixMilli()))
		bundle = effects.NewSimulationBundle(effects.SimulationNodeDeps{
			Self:  self,
			Addr:  cfg.ListenAddress,
			World: world,
		}, journalStore, budgets)
	default:
		bundle = effects.NewProductionBundle(effects.ProductionDeps{
			Self:      self,
			Storage:   db,
			Transport: transport,
			Logger:    logger,
		}, journalStore, budgets)
	}
	logger.Info("effect bundle constructed", slog.String("mode", string(cfg.EffectMode)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := journalStore.LoadNamespace(ctx, bundle.Storage, authorityNS); err != nil {
		logger.Error("failed to load persisted journal", slog.Any("error", err))
	} else if j, ok := journalStore.Get(authorityNS); ok {
		logger.Info("journal loaded from storage", slog.Int("facts", j.Len()))
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: network.NewServer(transport),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("network server failed", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		metricsServer = startMetricsServer(cfg.MetricsAddress, logger)
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range ceremonyRuntime.SweepTimeouts(uint64(time.Now().UnixMilli())) {
					logger.Info("ceremony timed out", slog.String("ceremony", id.String()))
				}
				if state, err := authorityProjector.StateAt(authorityNS); err != nil {
					logger.Error("authority projection failed", slog.Any("error", err))
				} else {
					logger.Debug("authority state", slog.Int("epoch", int(state.Epoch)), slog.Int("devices", len(state.Devices)))
				}
			}
		}
	}()

	logger.Info("aurad started", slog.String("listen", cfg.ListenAddress))
	<-ctx.Done()
	logger.Info("aurad shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := journalStore.PersistAll(shutdownCtx, bundle.Storage); err != nil {
		logger.Error("failed to persist journal", slog.Any("error", err))
	}
	taskRegistry.Shutdown(5 * time.Second)
}

func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return srv
}

// authorityKeyRegistry is a small in-memory capability.GroupKeyLookup
// implementation, populated at startup with the node's own genesis device
// key at epoch 0; keys from committed DKG transcripts are not added.
type authorityKeyRegistry struct {
	mu   sync.RWMutex
	keys map[ids.AuthorityId]map[uint64]ed25519.PublicKey
}

func newAuthorityKeyRegistry() *authorityKeyRegistry {
	return &authorityKeyRegistry{keys: make(map[ids.AuthorityId]map[uint64]ed25519.PublicKey)}
}

func (r *authorityKeyRegistry) set(authority ids.AuthorityId, epoch uint64, pub ed25519.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byEpoch, ok := r.keys[authority]
	if !ok {
		byEpoch = make(map[uint64]ed25519.PublicKey)
		r.keys[authority] = byEpoch
	}
	byEpoch[epoch] = pub
}

func (r *authorityKeyRegistry) GroupPublicKeyAt(authority ids.AuthorityId, epoch uint64) (ed25519.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byEpoch, ok := r.keys[authority]
	if !ok {
		return nil, fmt.Errorf("authorityKeyRegistry: unknown authority %s", authority)
	}
	if pub, ok := byEpoch[epoch]; ok {
		return pub, nil
	}
	return nil, fmt.Errorf("authorityKeyRegistry: no key for authority %s at epoch %d", authority, epoch)
}

// contextRegistry tracks the relctx.Context instances this node currently
// participates in, keyed by context id.
type contextRegistry struct {
	mu       sync.Mutex
	registry *fact.Registry
	contexts map[ids.ContextId]*relctx.Context
}

func newContextRegistry(reg *fact.Registry) *contextRegistry {
	return &contextRegistry{registry: reg, contexts: make(map[ids.ContextId]*relctx.Context)}
}

func (r *contextRegistry) open(id ids.ContextId, participants []ids.AuthorityId) *relctx.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contexts[id]; ok {
		return c
	}
	c := relctx.New(id, participants, r.registry)
	r.contexts[id] = c
	return c
}
