package workflow

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/metrics"
	"github.com/roach88/carbontoken/internal/provider"
	"github.com/roach88/carbontoken/internal/source"
	"github.com/roach88/carbontoken/internal/store"
)

// Provider is the tokenization API as the workflow uses it.
// *provider.Client implements it.
type Provider interface {
	Tokenize(ctx context.Context, sub provider.Submission) (*provider.BatchResponse, error)
	TokenStatus(ctx context.Context, nodeID, requestUUID string) (*provider.TokenStatus, error)
}

// scratchFiles names the batch file of each Kind inside the scratch directory.
var scratchFiles = map[ledger.Kind]string{
	ledger.KindShipment: "tokenize_input.json",
	ledger.KindDelivery: "tokenize_qv_input.json",
}

// Workflow runs issue and update passes against one store and one provider.
//
// Thread-safety model:
//   - A Workflow holds no per-run state; every run keeps its state on the stack
//   - Runs must not overlap for the same Kind (single-writer batch runs)
//
// INVARIANTS:
//   - An issue run makes at most one provider submission
//   - The ledger is written only from a decoded per-item result list
//   - Keys already holding a token id are never submitted
type Workflow struct {
	store    *store.Store
	provider Provider
	log      *zap.Logger
	metrics  *metrics.Recorder
	now      func() time.Time
	runIDs   RunIDGenerator

	pageSize   int
	scratchDir string
	issuedFrom string
	skipFailed bool
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock sets the time source for run timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// WithRunIDs sets the run id generator. Tests use FixedGenerator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(w *Workflow) {
		w.runIDs = g
	}
}

// WithMetrics sets the recorder runs report to.
func WithMetrics(m *metrics.Recorder) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithPageSize sets the page size of source and queued ledger scans.
func WithPageSize(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.pageSize = n
		}
	}
}

// WithScratchDir sets the directory the batch file is written to.
func WithScratchDir(dir string) Option {
	return func(w *Workflow) {
		if dir != "" {
			w.scratchDir = dir
		}
	}
}

// WithIssuedFrom sets the optional issuedFrom address sent with every batch.
func WithIssuedFrom(addr string) Option {
	return func(w *Workflow) {
		w.issuedFrom = addr
	}
}

// WithSkipFailed makes the dedup gate also block keys whose ledger entry
// failed, so failed keys are never retried.
func WithSkipFailed(skip bool) Option {
	return func(w *Workflow) {
		w.skipFailed = skip
	}
}

// New creates a Workflow. A nil log discards output.
func New(st *store.Store, p Provider, log *zap.Logger, opts ...Option) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Workflow{
		store:      st,
		provider:   p,
		log:        log,
		now:        time.Now,
		runIDs:     UUIDv7Generator{},
		pageSize:   source.DefaultPageSize,
		scratchDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = metrics.New()
	}
	return w
}

// Metrics returns the recorder the workflow reports to.
func (w *Workflow) Metrics() *metrics.Recorder {
	return w.metrics
}

// ScratchPath returns the batch file path used for kind.
func (w *Workflow) ScratchPath(kind ledger.Kind) string {
	return filepath.Join(w.scratchDir, scratchFiles[kind])
}

// runLogger returns the logger carrying the run context fields.
func (w *Workflow) runLogger(runID string, kind ledger.Kind) *zap.Logger {
	return w.log.With(zap.String("run_id", runID), zap.String("kind", string(kind)))
}
