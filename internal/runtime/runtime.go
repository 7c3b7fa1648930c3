package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/pricerelay/internal/broadcast"
	"github.com/rzbill/pricerelay/internal/bus"
	cfgpkg "github.com/rzbill/pricerelay/internal/config"
	"github.com/rzbill/pricerelay/internal/record"
	"github.com/rzbill/pricerelay/internal/relay"
	"github.com/rzbill/pricerelay/internal/snapshot"
	pebblestore "github.com/rzbill/pricerelay/internal/storage/pebble"
	"github.com/rzbill/pricerelay/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger log.Logger
	// Bus overrides the configured bus driver. The runtime does not close it.
	Bus bus.Bus
}

// Runtime owns the snapshot store, hub and bus for one relay.
type Runtime struct {
	config  cfgpkg.Config
	logger  log.Logger
	store   snapshot.Store
	hub     *broadcast.Hub
	bus     bus.Bus
	ownsBus bool
	metrics *StorageMetrics
	loop    atomic.Pointer[relay.Loop]
}

// Open initializes storage and connects the bus.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("runtime: invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	rt := &Runtime{
		config:  cfg,
		logger:  logger.WithComponent("runtime"),
		metrics: &StorageMetrics{},
	}

	store, err := rt.openStore(ctx)
	if err != nil {
		return nil, err
	}
	rt.store = store

	rt.hub = broadcast.New(broadcast.Options{
		Buffer: cfg.Relay.SubscriberBuffer,
		Logger: logger.WithComponent("broadcast"),
	})

	if opts.Bus != nil {
		rt.bus = opts.Bus
	} else {
		b, err := bus.Open(ctx, bus.Options{
			Driver:       cfg.Bus.Driver,
			URL:          cfg.Bus.URL,
			RedisAddr:    cfg.Bus.RedisAddr,
			KafkaBrokers: cfg.Bus.KafkaBrokers,
		})
		if err != nil {
			rt.hub.Close()
			_ = store.Close()
			return nil, err
		}
		rt.bus = b
		rt.ownsBus = true
	}
	rt.logger.Info("runtime ready",
		log.Str("store", cfg.Store.Driver),
		log.Str("bus", cfg.Bus.Driver),
		log.Str("subject", cfg.Bus.Subject))
	return rt, nil
}

func (r *Runtime) openStore(ctx context.Context) (snapshot.Store, error) {
	switch r.config.Store.Driver {
	case cfgpkg.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: r.config.Store.RedisAddr, ClientName: "pricerelay"})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("runtime: redis store %s: %w", r.config.Store.RedisAddr, err)
		}
		return snapshot.NewRedisStore(client, r.config.Store.RedisKey), nil
	case cfgpkg.StoreSQLite:
		path := r.config.Store.SQLitePath
		if path == "" {
			dir, err := r.dataDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "snapshot.db")
		}
		return snapshot.OpenSQLiteStore(path)
	default:
		mode, err := pebblestore.ParseFsyncMode(r.config.Store.Fsync)
		if err != nil {
			return nil, err
		}
		dataDir, err := r.dataDir()
		if err != nil {
			return nil, err
		}
		storeDir := filepath.Join(dataDir, "store")
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       storeDir,
			Fsync:         mode,
			FsyncInterval: time.Duration(r.config.Store.FsyncIntervalMs) * time.Millisecond,
			Metrics:       r.metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("runtime: open pebble at %s: %w", storeDir, err)
		}
		return snapshot.NewPebbleStore(db), nil
	}
}

func (r *Runtime) dataDir() (string, error) {
	dir := r.config.DataDir
	if dir == "" {
		dir = cfgpkg.DefaultDataDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("runtime: data dir %s: %w", dir, err)
	}
	return dir, nil
}

// NewLoop builds the relay loop for the configured subject. enrich may be nil.
func (r *Runtime) NewLoop(enrich func(context.Context) record.Geo) (*relay.Loop, error) {
	loop, err := relay.New(relay.Options{
		Bus:                       r.bus,
		Subject:                   r.config.Bus.Subject,
		Store:                     r.store,
		Hub:                       r.hub,
		Enrich:                    enrich,
		BroadcastOnPersistFailure: r.config.Relay.BroadcastOnPersistFailure,
		Logger:                    r.logger,
	})
	if err != nil {
		return nil, err
	}
	r.loop.Store(loop)
	return loop, nil
}

// Close shuts down the hub, bus and store.
func (r *Runtime) Close() error {
	r.hub.Close()
	var errs []error
	if r.ownsBus && r.bus != nil {
		errs = append(errs, r.bus.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth reports whether the snapshot store is reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.store == nil {
		return errors.New("store not open")
	}
	return r.store.Ping(ctx)
}

// Stats aggregates relay, hub and storage counters.
type Stats struct {
	Relay     relay.Stats     `json:"relay"`
	Broadcast broadcast.Stats `json:"broadcast"`
	Storage   StorageStats    `json:"storage"`
}

// Stats returns current counters. Relay fields are zero until NewLoop is called.
func (r *Runtime) Stats() Stats {
	st := Stats{
		Broadcast: r.hub.Stats(),
		Storage:   r.metrics.Snapshot(),
	}
	if loop := r.loop.Load(); loop != nil {
		st.Relay = loop.Stats()
	} else {
		st.Relay.State = relay.StateIdle.String()
	}
	return st
}

// Store returns the snapshot store.
func (r *Runtime) Store() snapshot.Store { return r.store }

// Hub returns the broadcast hub.
func (r *Runtime) Hub() *broadcast.Hub { return r.hub }

// Bus returns the connected bus.
func (r *Runtime) Bus() bus.Bus { return r.bus }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
