// Package pipeline drives the fetch -> normalize -> write chain for
// coverage keys and aggregates per-key outcomes into a run report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"finishtime/bfsp/internal/dataset"
	"finishtime/bfsp/internal/faulttolerance"
	"finishtime/bfsp/internal/models"
	"finishtime/bfsp/internal/normalizer"
	"finishtime/bfsp/internal/scraper"
)

// Pipeline processes one coverage key at a time: locate, fetch under the
// retry policy, normalize, mirror, write. Within a key the steps are
// strictly sequential; across keys no ordering is guaranteed.
type Pipeline struct {
	locator scraper.Locator
	fetcher *scraper.Fetcher
	retryer *faulttolerance.Retryer
	writer  *dataset.Writer
	logger  *logrus.Logger
}

func New(locator scraper.Locator, fetcher *scraper.Fetcher, retryer *faulttolerance.Retryer, writer *dataset.Writer, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		locator: locator,
		fetcher: fetcher,
		retryer: retryer,
		writer:  writer,
		logger:  logger,
	}
}

// Link returns the download URL for one coverage key, for report entries.
func (p *Pipeline) Link(key models.CoverageKey) string {
	return p.locator.PriceURL(key.Country, key.Type, key.Date)
}

// FetchRows downloads and normalizes the price file for one coverage
// key without persisting anything. The fetch runs under the retry
// policy; a 404 short-circuits it and propagates as scraper.ErrNotFound.
func (p *Pipeline) FetchRows(ctx context.Context, key models.CoverageKey) ([]models.Row, error) {
	url := p.locator.PriceURL(key.Country, key.Type, key.Date)

	var body []byte
	err := p.retryer.Execute(ctx, func() error {
		b, ferr := p.fetcher.Fetch(ctx, url)
		if ferr != nil {
			return ferr
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows, err := normalizer.Normalize(body, key.Country, key.Type)
	if err != nil {
		return nil, fmt.Errorf("normalizing %s: %w", key, err)
	}
	return rows, nil
}

// ProcessKey runs the full chain for one coverage key: fetch, normalize,
// write the raw mirror, then append to the canonical dataset. A file
// that normalizes to zero rows is a success with nothing to write.
//
// Every returned error is a per-key failure for the caller's report;
// ProcessKey never aborts a batch.
func (p *Pipeline) ProcessKey(ctx context.Context, key models.CoverageKey) error {
	start := time.Now()
	err := p.processKey(ctx, key)
	keyDuration.Observe(time.Since(start).Seconds())
	keyOutcomes.WithLabelValues(classify(err)).Inc()
	return err
}

func (p *Pipeline) processKey(ctx context.Context, key models.CoverageKey) error {
	rows, err := p.FetchRows(ctx, key)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		p.logger.Infof("No rows in source file for %s", key)
		return nil
	}

	if err := p.writer.WriteRawMirror(ctx, key, rows); err != nil {
		return err
	}
	return p.writer.Write(ctx, rows, key.Type, dataset.Append)
}

// classify maps a per-key error onto the outcome taxonomy for metrics.
// Fetch errors (including per-request timeouts, which surface as
// *url.Error) are checked before bare context errors, so only run
// shutdown lands in the canceled bucket.
func classify(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, scraper.ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, normalizer.ErrMalformedSource):
		return outcomeMalformed
	default:
		var statusErr *scraper.StatusError
		var urlErr *url.Error
		if errors.As(err, &statusErr) || errors.As(err, &urlErr) {
			return outcomeTransient
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return outcomeCanceled
		}
		return outcomeWrite
	}
}
