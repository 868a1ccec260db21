// Package compare fans repository comparisons out across a bounded worker
// pool, aggregating per-repository diffs into a single run report.
package compare

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artifact-sre/rtsync/pkg/catalog"
	"github.com/artifact-sre/rtsync/pkg/differ"
	"github.com/artifact-sre/rtsync/pkg/report"
)

// Pair names one comparison unit: a source repository and the target
// repository it maps to.
type Pair struct {
	Source string
	Target string
}

// Runner compares many repositories between a source and target server.
type Runner struct {
	source  *catalog.Fetcher
	target  *catalog.Fetcher
	workers int
	logger  *zap.Logger
}

// NewRunner builds a runner. workers <= 0 selects 20.
func NewRunner(source, target *catalog.Fetcher, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 20
	}
	return &Runner{
		source:  source,
		target:  target,
		workers: workers,
		logger:  logger,
	}
}

// Run compares every pair. Units run concurrently up to the worker budget;
// a failing repository is recorded in the report and does not block the
// rest. Results accumulate through a single goroutine so the report needs
// no locking; the returned report is sorted and read-only.
func (r *Runner) Run(ctx context.Context, pairs []Pair) *report.Run {
	jobs := make(chan Pair)
	resultCh := make(chan report.RepoResult)

	run := &report.Run{}
	done := make(chan struct{})
	go func() {
		for res := range resultCh {
			run.Add(res)
		}
		close(done)
	}()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range jobs {
				resultCh <- r.compareOne(ctx, pair)
			}
		}()
	}

feed:
	for _, pair := range pairs {
		select {
		case jobs <- pair:
		case <-ctx.Done():
			// stop issuing new units; in-flight ones finish or fail cleanly
			break feed
		}
	}
	close(jobs)

	wg.Wait()
	close(resultCh)
	<-done

	run.Sort()
	return run
}

func (r *Runner) compareOne(ctx context.Context, pair Pair) report.RepoResult {
	r.logger.Info("comparing repository",
		zap.String("repo", pair.Source),
		zap.String("target_repo", pair.Target),
	)

	var srcCat, tgtCat *catalog.Catalog

	// the two catalogs are independent reads, fetch them concurrently
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		srcCat, err = r.source.Fetch(gctx, pair.Source)
		return err
	})
	g.Go(func() error {
		var err error
		tgtCat, err = r.target.Fetch(gctx, pair.Target)
		return err
	})

	if err := g.Wait(); err != nil {
		r.logger.Error("repository comparison failed",
			zap.String("repo", pair.Source),
			zap.Error(err),
		)
		return report.RepoResult{Repo: pair.Source, TargetRepo: pair.Target, Err: err}
	}

	diff := differ.Diff(srcCat, tgtCat)
	r.logger.Info("repository compared",
		zap.String("repo", pair.Source),
		zap.Int("transfer", len(diff.Transfer)),
		zap.Int("target_only", diff.TargetOnly),
		zap.Int("compared", diff.Compared),
	)

	return report.RepoResult{Repo: pair.Source, TargetRepo: pair.Target, Diff: diff}
}
