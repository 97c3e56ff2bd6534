package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"finishtime/bfsp/internal/models"
	"finishtime/bfsp/internal/storage"
)

// Execution modes for a batch run.
const (
	ModeSequential = "sequential"
	ModePool       = "pool"
)

// OrchestratorConfig describes one batch run over a date range.
type OrchestratorConfig struct {
	Countries []string
	Types     []models.MarketType
	StartDate time.Time
	EndDate   time.Time

	// Mode is ModeSequential or ModePool.
	Mode string

	// Workers is the pool size when Mode is ModePool.
	Workers int

	// RawPrefix is where the existence index lists raw mirrors.
	RawPrefix string

	// ReportPrefix is where the run report is persisted.
	ReportPrefix string

	// TaskDelay is the cooperative throttle between origin requests.
	TaskDelay time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Orchestrator enumerates coverage keys for a date range, filters out
// keys the existence index already covers, fans the remainder out to the
// pipeline and aggregates the outcomes into a report.
type Orchestrator struct {
	pipeline *Pipeline
	store    storage.ObjectStore
	limiter  *rate.Limiter
	cfg      OrchestratorConfig
	logger   *logrus.Logger
}

func NewOrchestrator(p *Pipeline, store storage.ObjectStore, cfg OrchestratorConfig, logger *logrus.Logger) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.TaskDelay <= 0 {
		cfg.TaskDelay = time.Second
	}
	return &Orchestrator{
		pipeline: p,
		store:    store,
		limiter:  rate.NewLimiter(rate.Every(cfg.TaskDelay), 1),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the batch. Per-key failures become report entries; the
// only errors returned are fatal pre-step failures (the existence index
// listing) that mean no work could start.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	index, err := storage.LoadIndex(ctx, o.store, o.cfg.RawPrefix)
	if err != nil {
		return nil, fmt.Errorf("loading existence index: %w", err)
	}
	o.logger.Infof("Existence index holds %d raw files", index.Len())

	keys := o.enumerate(index)
	o.logger.Infof("Processing %d coverage keys (%s mode)", len(keys), o.cfg.Mode)

	report := NewReport()

	switch o.cfg.Mode {
	case ModePool:
		o.runPool(ctx, keys, report)
	default:
		for _, key := range keys {
			o.processOne(ctx, key, report)
		}
	}

	if reportKey, err := report.Persist(ctx, o.store, o.cfg.ReportPrefix); err != nil {
		o.logger.Errorf("Failed to persist report: %v", err)
		o.logger.Info("Full report:\n" + report.Render())
	} else {
		o.logger.Infof("Report saved to %s", reportKey)
	}

	return report, nil
}

// enumerate produces the candidate keys for the configured range,
// skipping future dates and keys whose raw mirror already exists.
func (o *Orchestrator) enumerate(index *storage.Index) []models.CoverageKey {
	today := o.cfg.Now()

	var keys []models.CoverageKey
	for _, country := range o.cfg.Countries {
		for _, mt := range o.cfg.Types {
			for d := o.cfg.StartDate; !d.After(o.cfg.EndDate); d = d.AddDate(0, 0, 1) {
				key := models.CoverageKey{Country: country, Type: mt, Date: d}
				if d.After(today) {
					o.logger.Debugf("Date %s is in the future, skipping", d.Format("2006-01-02"))
					continue
				}
				if index.Contains(key.RawFileName()) {
					o.logger.Debugf("%s exists in store, skipping", key.RawFileName())
					continue
				}
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func (o *Orchestrator) runPool(ctx context.Context, keys []models.CoverageKey, report *Report) {
	work := make(chan models.CoverageKey)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range work {
				o.processOne(ctx, key, report)
			}
		}()
	}

	for _, key := range keys {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		case work <- key:
		}
	}
	close(work)
	wg.Wait()
}

func (o *Orchestrator) processOne(ctx context.Context, key models.CoverageKey, report *Report) {
	link := o.pipeline.Link(key)

	if err := o.limiter.Wait(ctx); err != nil {
		report.AddFailure(key, link, err)
		return
	}
	o.logger.Infof("Processing %s", key)

	if err := o.pipeline.ProcessKey(ctx, key); err != nil {
		o.logger.Errorf("Error processing %s: %v", link, err)
		report.AddFailure(key, link, err)
		return
	}
	report.AddSuccess(key, link)
}
