// Package report owns the persisted run directory layout: the global
// summary, the numbered list of differing paths, and one subdirectory per
// repository with its diff list and transfer-command file. The layout is a
// contract consumed by the transfer phase.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/natefinch/atomic"

	"github.com/artifact-sre/rtsync/pkg/command"
	"github.com/artifact-sre/rtsync/pkg/differ"
)

const (
	SummaryFile = "summary.txt"
	GlobalDiff  = "diff_all.txt"
	RepoDiff    = "diff.txt"
	FailedFile  = "failed.txt"
)

// RepoResult is the outcome of comparing one repository: either a diff or
// the error that prevented one.
type RepoResult struct {
	Repo       string
	TargetRepo string
	Diff       differ.Result
	Err        error
}

// Run aggregates all repository results of one invocation. Only the
// orchestrator's accumulation goroutine mutates it; it is read-only once the
// run completes.
type Run struct {
	Results []RepoResult
}

// Add records one repository result.
func (r *Run) Add(res RepoResult) {
	r.Results = append(r.Results, res)
}

// Sort orders results by repository name so persisted output is independent
// of completion order.
func (r *Run) Sort() {
	sort.Slice(r.Results, func(i, j int) bool {
		return r.Results[i].Repo < r.Results[j].Repo
	})
}

// Failed returns the results whose comparison did not complete.
func (r *Run) Failed() []RepoResult {
	var failed []RepoResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// TransferCount returns the total number of paths scheduled for transfer.
func (r *Run) TransferCount() int {
	var n int
	for _, res := range r.Results {
		n += len(res.Diff.Transfer)
	}
	return n
}

// NewRunDir creates the per-invocation output directory under base, named
// by the invocation time.
func NewRunDir(base string, clock clockwork.Clock) (string, error) {
	dir := filepath.Join(base, fmt.Sprintf("out_%d", clock.Now().Unix()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

// Write persists the run into dir: summary, global diff list, and one
// subdirectory per repository with transfers pending. Files are written
// atomically so a cancelled run never exposes half-written reports.
func (r *Run) Write(dir string, synth *command.Synthesizer) error {
	r.Sort()

	if err := writeFile(filepath.Join(dir, SummaryFile), r.renderSummary()); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, GlobalDiff), r.renderGlobalDiff()); err != nil {
		return err
	}

	for _, res := range r.Results {
		if res.Err != nil || len(res.Diff.Transfer) == 0 {
			continue
		}

		repoDir := filepath.Join(dir, res.Repo)
		if err := os.MkdirAll(repoDir, 0o755); err != nil {
			return fmt.Errorf("create repo directory %s: %w", res.Repo, err)
		}
		if err := writeFile(filepath.Join(repoDir, RepoDiff), renderRepoDiff(res)); err != nil {
			return err
		}

		chains := synth.Synthesize(res.Diff, res.TargetRepo)
		if err := writeFile(filepath.Join(repoDir, synth.FileName()), synth.Render(chains)); err != nil {
			return err
		}
	}

	return nil
}

// WriteFailed records the paths whose transfer chains did not complete, in
// the diff.txt format so the failed subset can be re-run directly.
func WriteFailed(repoDir string, res RepoResult) error {
	return writeFile(filepath.Join(repoDir, FailedFile), renderRepoDiff(res))
}

func writeFile(path, contents string) error {
	if err := atomic.WriteFile(path, bytes.NewReader([]byte(contents))); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (r *Run) renderSummary() string {
	var b bytes.Buffer
	failed := len(r.Failed())
	fmt.Fprintf(&b, "repositories: %d  failed: %d  transfers: %d\n\n", len(r.Results), failed, r.TransferCount())

	for _, res := range r.Results {
		if res.Err != nil {
			fmt.Fprintf(&b, "%s\tstatus=failed\terror=%v\n", res.Repo, res.Err)
			continue
		}
		fmt.Fprintf(&b, "%s\tstatus=ok\ttransfer=%d\ttarget_only=%d\tcompared=%d\n",
			res.Repo, len(res.Diff.Transfer), res.Diff.TargetOnly, res.Diff.Compared)
	}
	return b.String()
}

func (r *Run) renderGlobalDiff() string {
	var b bytes.Buffer
	idx := 1
	for _, res := range r.Results {
		for _, entry := range res.Diff.Transfer {
			fmt.Fprintf(&b, "%d\t%s/%s,%s\n", idx, res.Repo, entry.Path, entry.SHA256)
			idx++
		}
	}
	return b.String()
}

func renderRepoDiff(res RepoResult) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# repository: %s\n", res.Repo)
	fmt.Fprintf(&b, "# target: %s\n", res.TargetRepo)
	fmt.Fprintf(&b, "# compared: %d  target-only: %d\n", res.Diff.Compared, res.Diff.TargetOnly)
	for i, entry := range res.Diff.Transfer {
		fmt.Fprintf(&b, "%d\t%s,%s\n", i+1, entry.Path, entry.SHA256)
	}
	return b.String()
}
