package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const jobTimeout = 30 * time.Second

// Reconciler repairs balances that drifted from the ledger sum.
type Reconciler interface {
	ReconcileDrifted(ctx context.Context, limit int) (int, error)
}

// RefreshFunc reloads the seasonal event catalog ahead of evaluation.
type RefreshFunc func(ctx context.Context) error

// Pruner drops idle rate limiter buckets.
type Pruner interface {
	Prune(idle time.Duration) int
}

// Config sets job intervals. A zero interval disables that job.
type Config struct {
	ReconcileInterval  time.Duration
	ReconcileBatchSize int
	RefreshInterval    time.Duration
	PruneInterval      time.Duration
	PruneIdle          time.Duration
}

// Worker runs the periodic maintenance jobs on a gocron scheduler.
type Worker struct {
	cfg        Config
	reconciler Reconciler
	refresher  RefreshFunc
	pruner     Pruner
	sched      gocron.Scheduler
}

func New(cfg Config, reconciler Reconciler, refresher RefreshFunc, pruner Pruner) (*Worker, error) {
	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = 500
	}
	if cfg.PruneIdle <= 0 {
		cfg.PruneIdle = 30 * time.Minute
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	w := &Worker{cfg: cfg, reconciler: reconciler, refresher: refresher, pruner: pruner, sched: sched}

	if err := w.register(cfg.ReconcileInterval, "reconcile-balances", reconciler != nil, w.reconcile); err != nil {
		return nil, err
	}
	if err := w.register(cfg.RefreshInterval, "refresh-seasonal-catalog", refresher != nil, w.refresh); err != nil {
		return nil, err
	}
	if err := w.register(cfg.PruneInterval, "prune-rate-limiter", pruner != nil, w.prune); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worker) register(every time.Duration, name string, enabled bool, fn func()) error {
	if every <= 0 || !enabled {
		return nil
	}
	_, err := w.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

// Jobs returns the names of registered jobs.
func (w *Worker) Jobs() []string {
	jobs := w.sched.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Start begins the background worker
func (w *Worker) Start() {
	log.Info().Strs("jobs", w.Jobs()).Msg("Starting maintenance worker...")
	w.sched.Start()
}

// Stop waits for running jobs and stops the scheduler
func (w *Worker) Stop() error {
	log.Info().Msg("Stopping maintenance worker...")
	return w.sched.Shutdown()
}

func (w *Worker) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	repaired, err := w.reconciler.ReconcileDrifted(ctx, w.cfg.ReconcileBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Balance reconciliation failed")
		return
	}
	if repaired > 0 {
		log.Warn().Int("repaired", repaired).Msg("Repaired drifted balances")
	} else {
		log.Debug().Msg("Balances consistent with ledger")
	}
}

func (w *Worker) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := w.refresher(ctx); err != nil {
		log.Error().Err(err).Msg("Seasonal catalog refresh failed")
	}
}

func (w *Worker) prune() {
	if n := w.pruner.Prune(w.cfg.PruneIdle); n > 0 {
		log.Debug().Int("pruned", n).Msg("Pruned idle rate limiter buckets")
	}
}
