// Package transfer executes synthesized operation chains against real
// endpoints: fetch from source, push to target, optional staging cleanup.
package transfer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/artifact-sre/rtsync/pkg/command"
)

// State is the lifecycle position of one chain. A chain moves
// Pending -> Fetching -> Pushing (-> CleaningUp) -> Done, or to Failed from
// any step.
type State string

const (
	StatePending    State = "pending"
	StateFetching   State = "fetching"
	StatePushing    State = "pushing"
	StateCleaningUp State = "cleaning-up"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateSkipped    State = "skipped"
)

// Source is the download capability of the source server.
type Source interface {
	Download(ctx context.Context, repo, path, localPath string) error
}

// Target is the upload and checksum capability of the target server.
type Target interface {
	Upload(ctx context.Context, repo, path, localPath, sha256 string) error
	ItemSHA256(ctx context.Context, repo, path string) (string, error)
}

// Result is the terminal state of one chain.
type Result struct {
	Chain command.Chain
	State State
	Err   error
}

// Summary aggregates chain outcomes.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Executor runs chains concurrently up to a worker budget. Steps within a
// chain are strictly sequential; a step failure marks the whole chain Failed
// and never crashes the executor. There is no automatic retry: the caller
// re-invokes on the failed subset explicitly.
type Executor struct {
	source      Source
	target      Target
	concurrency int
	dryRun      bool
	verify      bool
	logger      *zap.Logger
}

// Opt customizes an Executor.
type Opt func(*Executor)

// WithDryRun validates chain well-formedness without network calls.
func WithDryRun() Opt {
	return func(e *Executor) { e.dryRun = true }
}

// WithVerify re-checks the target checksum after each successful push.
func WithVerify() Opt {
	return func(e *Executor) { e.verify = true }
}

// NewExecutor builds an executor. concurrency <= 0 selects 20 workers.
func NewExecutor(source Source, target Target, concurrency int, logger *zap.Logger, opts ...Opt) *Executor {
	if concurrency <= 0 {
		concurrency = 20
	}
	e := &Executor{
		source:      source,
		target:      target,
		concurrency: concurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs all chains and returns one result per chain, in input order.
// Cancellation stops starting new chains; chains already past Pending finish
// or fail cleanly.
func (e *Executor) Execute(ctx context.Context, chains []command.Chain) []Result {
	results := make([]Result, len(chains))

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i, chain := range chains {
		wg.Add(1)
		go func(idx int, ch command.Chain) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[idx] = Result{Chain: ch, State: StateSkipped, Err: ctx.Err()}
				return
			}
			results[idx] = e.runChain(ctx, ch)
		}(i, chain)
	}

	wg.Wait()
	return results
}

func (e *Executor) runChain(ctx context.Context, chain command.Chain) Result {
	res := Result{Chain: chain, State: StatePending}

	if err := Validate(chain); err != nil {
		res.State = StateFailed
		res.Err = err
		e.logger.Error("malformed chain",
			zap.String("repo", chain.Repo),
			zap.String("path", chain.Path),
			zap.Error(err),
		)
		return res
	}

	if e.dryRun {
		e.logger.Info("dry-run chain ok",
			zap.String("repo", chain.Repo),
			zap.String("path", chain.Path),
			zap.Int("ops", len(chain.Ops)),
		)
		res.State = StateDone
		return res
	}

	for _, op := range chain.Ops {
		var err error
		switch op.Kind {
		case command.OpFetch:
			res.State = StateFetching
			err = e.source.Download(ctx, chain.Repo, chain.Path, op.LocalPath)
		case command.OpPush:
			res.State = StatePushing
			err = e.target.Upload(ctx, chain.TargetRepo, chain.Path, op.LocalPath, chain.SHA256)
			if err == nil && e.verify {
				err = e.verifyPush(ctx, chain)
			}
		case command.OpCleanup:
			res.State = StateCleaningUp
			err = os.Remove(op.LocalPath)
		default:
			err = fmt.Errorf("unknown op kind %q", op.Kind)
		}

		if err != nil {
			// later ops in this chain are skipped; other chains unaffected
			res.State = StateFailed
			res.Err = fmt.Errorf("%s %s/%s: %w", op.Kind, chain.Repo, chain.Path, err)
			e.logger.Error("chain failed",
				zap.String("repo", chain.Repo),
				zap.String("path", chain.Path),
				zap.String("op", string(op.Kind)),
				zap.Error(err),
			)
			return res
		}
	}

	res.State = StateDone
	e.logger.Info("chain done",
		zap.String("repo", chain.Repo),
		zap.String("path", chain.Path),
	)
	return res
}

func (e *Executor) verifyPush(ctx context.Context, chain command.Chain) error {
	if chain.SHA256 == "" {
		return nil
	}
	got, err := e.target.ItemSHA256(ctx, chain.TargetRepo, chain.Path)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if got != chain.SHA256 {
		return fmt.Errorf("verify: target checksum %s does not match source %s", got, chain.SHA256)
	}
	return nil
}

// Validate checks chain well-formedness: a fetch followed by a push, with
// cleanup only as a final step, and consistent staging paths.
func Validate(chain command.Chain) error {
	if chain.Repo == "" || chain.Path == "" {
		return fmt.Errorf("chain missing repository or path")
	}
	if len(chain.Ops) < 2 {
		return fmt.Errorf("chain has %d ops, need at least fetch and push", len(chain.Ops))
	}
	if chain.Ops[0].Kind != command.OpFetch {
		return fmt.Errorf("chain must start with fetch, got %s", chain.Ops[0].Kind)
	}
	if chain.Ops[1].Kind != command.OpPush {
		return fmt.Errorf("push must follow fetch, got %s", chain.Ops[1].Kind)
	}
	for i, op := range chain.Ops {
		if op.LocalPath == "" {
			return fmt.Errorf("op %d (%s) has no staging path", i, op.Kind)
		}
		if op.Kind == command.OpCleanup && i != len(chain.Ops)-1 {
			return fmt.Errorf("cleanup must be the final op")
		}
	}
	if chain.Ops[0].SourceURL == "" {
		return fmt.Errorf("fetch op has no source URL")
	}
	if chain.Ops[1].TargetURL == "" {
		return fmt.Errorf("push op has no target URL")
	}
	return nil
}

// Summarize counts terminal states.
func Summarize(results []Result) Summary {
	var s Summary
	for _, res := range results {
		switch res.State {
		case StateDone:
			s.Succeeded++
		case StateSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// FailedChains returns the chains whose execution did not complete, for
// explicit resubmission.
func FailedChains(results []Result) []command.Chain {
	var failed []command.Chain
	for _, res := range results {
		if res.State != StateDone {
			failed = append(failed, res.Chain)
		}
	}
	return failed
}
