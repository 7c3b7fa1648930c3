package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rzbill/pricerelay/internal/bus"
	cfgpkg "github.com/rzbill/pricerelay/internal/config"
	"github.com/rzbill/pricerelay/internal/enrich"
	"github.com/rzbill/pricerelay/internal/record"
	"github.com/rzbill/pricerelay/internal/runtime"
	httpserver "github.com/rzbill/pricerelay/internal/server/http"
	logpkg "github.com/rzbill/pricerelay/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	// Logger defaults to one built from Config.Log.
	Logger logpkg.Logger
	// Bus replaces the configured driver; Run does not close it.
	Bus bus.Bus
}

// Run starts the relay loop and the HTTP server and blocks until ctx is
// cancelled (returns nil) or one of them fails (returns that error).
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	procLogger := opts.Logger
	if procLogger == nil {
		procLogger = newLogger(cfg.Log)
		// Redirect stdlib logs (e.g., Pebble) to our logger
		logpkg.RedirectStdLog(procLogger)
	}

	procLogger.Info("Starting pricerelay",
		logpkg.Str("http", cfg.HTTP.ListenAddr()),
		logpkg.Bool("tls", cfg.HTTP.TLSEnabled()),
		logpkg.Str("store", cfg.Store.Driver),
		logpkg.Str("bus", cfg.Bus.Driver),
		logpkg.Str("subject", cfg.Bus.Subject),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	rt, err := runtime.Open(sctx, runtime.Options{Config: cfg, Logger: procLogger, Bus: opts.Bus})
	if err != nil {
		return err
	}
	defer rt.Close()

	enrichOpts := enrich.Options{
		Enabled: cfg.Enrich.Enabled,
		URL:     cfg.Enrich.URL,
		Timeout: time.Duration(cfg.Enrich.TimeoutMs) * time.Millisecond,
	}
	enrichLogger := procLogger.With(logpkg.Component("enrich"))
	loop, err := rt.NewLoop(func(ctx context.Context) record.Geo {
		return enrich.Resolve(ctx, enrichOpts, enrichLogger)
	})
	if err != nil {
		return err
	}
	hsrv := httpserver.New(rt, procLogger)

	runCtx, cancel := context.WithCancel(sctx)
	defer cancel()
	errCh := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(runCtx); err != nil {
			procLogger.Error("relay stopped", logpkg.Err(err))
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(runCtx, cfg.HTTP.ListenAddr()); err != nil && runCtx.Err() == nil {
			procLogger.Error("http server stopped", logpkg.Err(err))
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-sctx.Done():
	case runErr = <-errCh:
	}
	// Stop servers before closing the runtime/DB to avoid races.
	cancel()
	hsrv.Close()
	wg.Wait()
	if runErr != nil {
		return runErr
	}
	procLogger.Info("pricerelay stopped")
	return nil
}

// newLogger builds the process-wide logger, falling back to text at the
// parsed (or info) level when the config is unusable.
func newLogger(c cfgpkg.LogConfig) logpkg.Logger {
	lc := &logpkg.Config{Level: c.Level, Format: c.Format}
	l, err := logpkg.ApplyConfig(lc)
	if err == nil {
		return l
	}
	lvl := logpkg.InfoLevel
	if parsed, e := logpkg.ParseLevel(c.Level); e == nil {
		lvl = parsed
	}
	l = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	l.Warn("invalid log config, using text", logpkg.Err(err))
	return l
}
