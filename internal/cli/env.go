package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/config"
	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/logger"
	"github.com/roach88/carbontoken/internal/metrics"
	"github.com/roach88/carbontoken/internal/provider"
	"github.com/roach88/carbontoken/internal/store"
	"github.com/roach88/carbontoken/internal/workflow"
)

// pushTimeout bounds the metrics push after a run.
const pushTimeout = 10 * time.Second

// runEnv is everything a command needs to run one workflow pass.
type runEnv struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	metrics  *metrics.Recorder
	workflow *workflow.Workflow
}

// openEnv loads configuration and connects the store and the provider.
// Errors are command errors. logOut receives the log when the configured
// output is stderr.
func openEnv(opts *RootOptions, logOut io.Writer, f *OutputFormatter) (*runEnv, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, outputCommandError(f, ErrCodeConfig, err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	if opts.Verbose {
		logCfg.Level = "debug"
	}

	var log *zap.Logger
	if logCfg.Output == "stderr" && logOut != nil {
		log = logger.NewWithWriter(logCfg, logOut)
	} else if log, err = logger.New(logCfg); err != nil {
		return nil, outputCommandError(f, ErrCodeConfig, err)
	}

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Error("cannot open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return nil, outputCommandError(f, ErrCodeDatabase, err)
	}
	if st.Dialect() == store.DialectPostgres {
		st.DB().SetMaxOpenConns(cfg.Database.MaxOpenConns)
		st.DB().SetMaxIdleConns(cfg.Database.MaxIdleConns)
		st.DB().SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	}

	client, err := provider.New(provider.Config{
		SubmitURL:        cfg.Provider.SubmitURL,
		StatusURL:        cfg.Provider.StatusURL,
		Timeout:          cfg.Provider.Timeout,
		StatusRatePerSec: cfg.Provider.StatusRatePerSec,
	}, log)
	if err != nil {
		st.Close()
		return nil, outputCommandError(f, ErrCodeProvider, err)
	}

	m := metrics.New()
	wfOpts := []workflow.Option{
		workflow.WithMetrics(m),
		workflow.WithPageSize(cfg.Batch.PageSize),
		workflow.WithScratchDir(cfg.Batch.ScratchDir),
		workflow.WithIssuedFrom(cfg.Provider.IssuedFrom),
		workflow.WithSkipFailed(cfg.Dedup.SkipFailed),
	}
	if opts.RunIDs != nil {
		wfOpts = append(wfOpts, workflow.WithRunIDs(opts.RunIDs))
	}

	return &runEnv{
		cfg:      cfg,
		log:      log,
		store:    st,
		metrics:  m,
		workflow: workflow.New(st, client, log, wfOpts...),
	}, nil
}

// Close releases the database and flushes the log.
func (e *runEnv) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("error closing database", zap.Error(err))
	}
	_ = e.log.Sync()
}

// pushMetrics sends the run's metrics to the Pushgateway when one is
// configured. A push failure is logged only.
func (e *runEnv) pushMetrics(kind ledger.Kind) {
	url := e.cfg.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := e.metrics.Push(ctx, url, e.cfg.Metrics.Job, map[string]string{"kind": string(kind)}); err != nil {
		e.log.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
// Uses the command's context if available (for testing).
func signalContext(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, stopping run", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
