package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/artifact-sre/rtsync/internal/config"
	"github.com/artifact-sre/rtsync/internal/repolist"
	"github.com/artifact-sre/rtsync/pkg/artifactory"
	"github.com/artifact-sre/rtsync/pkg/catalog"
	"github.com/artifact-sre/rtsync/pkg/command"
	"github.com/artifact-sre/rtsync/pkg/compare"
	"github.com/artifact-sre/rtsync/pkg/logger"
	"github.com/artifact-sre/rtsync/pkg/report"
	"github.com/artifact-sre/rtsync/pkg/transfer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	cfgFile     string
	reposFile   string
	typeFlag    string
	dialectFlag string
	outputBase  string

	runDirFlag  string
	repoDirFlag string
	dryRun      bool
	failedOnly  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rtsync",
		Short: "Checksum-based reconciliation between binary repository servers",
		Long: `rtsync compares repositories between two Artifactory-compatible servers
by SHA-256 checksum and synthesizes the transfer commands that bring the
target up to date. The compare phase writes a run directory; the transfer
phase executes or re-executes the pending chains from it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare repositories and write diff lists plus transfer scripts",
		RunE:  runCompare,
	}
	compareCmd.Flags().StringVar(&cfgFile, "config", "", "Path to the YAML configuration file")
	compareCmd.Flags().StringVar(&reposFile, "repos", "", "File listing repositories to compare (one per line, src or src,target)")
	compareCmd.Flags().StringVar(&typeFlag, "type", "", "Repository type filter when enumerating (local, remote, virtual, federated)")
	compareCmd.Flags().StringVar(&dialectFlag, "dialect", "", "Transfer command dialect (curl or jf)")
	compareCmd.Flags().StringVar(&outputBase, "output", ".", "Directory under which the run directory is created")
	_ = compareCmd.MarkFlagRequired("config")

	transferCmd := &cobra.Command{
		Use:   "transfer",
		Short: "Execute the pending transfer chains of a previous compare run",
		RunE:  runTransfer,
	}
	transferCmd.Flags().StringVar(&cfgFile, "config", "", "Path to the YAML configuration file")
	transferCmd.Flags().StringVar(&runDirFlag, "run-dir", "", "Run directory of a previous compare (all repositories)")
	transferCmd.Flags().StringVar(&repoDirFlag, "repo-dir", "", "Single repository subdirectory of a previous compare")
	transferCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and report chains without transferring anything")
	transferCmd.Flags().BoolVar(&failedOnly, "failed-only", false, "Re-run only the chains recorded in failed.txt")
	_ = transferCmd.MarkFlagRequired("config")
	transferCmd.MarkFlagsOneRequired("run-dir", "repo-dir")
	transferCmd.MarkFlagsMutuallyExclusive("run-dir", "repo-dir")

	rootCmd.AddCommand(compareCmd, transferCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies command-line overrides on top of the file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if typeFlag != "" {
		cfg.RepoType = typeFlag
	}
	if dialectFlag != "" {
		if _, err := command.ParseDialect(dialectFlag); err != nil {
			return nil, err
		}
		cfg.Dialect = dialectFlag
	}
	return cfg, nil
}

func buildClients(cfg *config.Config, log *zap.Logger) (source, target *artifactory.Client, err error) {
	srcProfile, err := cfg.Profile(cfg.SourceServer)
	if err != nil {
		return nil, nil, err
	}
	tgtProfile, err := cfg.Profile(cfg.TargetServer)
	if err != nil {
		return nil, nil, err
	}
	policy := cfg.RetryPolicy()
	source = artifactory.NewClient(srcProfile, policy, cfg.Timeout(), log)
	target = artifactory.NewClient(tgtProfile, policy, cfg.Timeout(), log)
	return source, target, nil
}

func synthesizer(cfg *config.Config, source, target *artifactory.Client) *command.Synthesizer {
	dialect, _ := command.ParseDialect(cfg.Dialect)
	return &command.Synthesizer{
		Source:  source.Profile(),
		Target:  target.Profile(),
		Dialect: dialect,
		TempDir: cfg.TempDir,
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runDir, err := report.NewRunDir(outputBase, clockwork.NewRealClock())
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, filepath.Join(runDir, "run.log"))
	if err != nil {
		return err
	}
	defer log.Sync()

	source, target, err := buildClients(cfg, log)
	if err != nil {
		return err
	}

	pairs, err := resolvePairs(ctx, cfg, source)
	if err != nil {
		return err
	}
	log.Info("starting comparison",
		zap.Int("repositories", len(pairs)),
		zap.String("source", source.Profile().Name),
		zap.String("target", target.Profile().Name),
		zap.String("run_dir", runDir))

	runner := compare.NewRunner(
		catalog.NewFetcher(source, cfg.PageSize, log),
		catalog.NewFetcher(target, cfg.PageSize, log),
		cfg.ParallelWorkers, log)
	run := runner.Run(ctx, pairs)

	if err := run.Write(runDir, synthesizer(cfg, source, target)); err != nil {
		return err
	}

	failed := run.Failed()
	log.Info("comparison finished",
		zap.Int("repositories", len(run.Results)),
		zap.Int("failed", len(failed)),
		zap.Int("paths_to_transfer", run.TransferCount()))
	fmt.Printf("Run directory: %s\n", runDir)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("comparison interrupted: %w", err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d repositories failed to compare", len(failed), len(run.Results))
	}
	return nil
}

// resolvePairs returns the repositories to compare, either from the mapping
// file or by enumerating the source server.
func resolvePairs(ctx context.Context, cfg *config.Config, source *artifactory.Client) ([]compare.Pair, error) {
	if reposFile != "" {
		entries, err := repolist.Read(reposFile)
		if err != nil {
			return nil, err
		}
		pairs := make([]compare.Pair, 0, len(entries))
		for _, e := range entries {
			pairs = append(pairs, compare.Pair{Source: e.Source, Target: e.Target})
		}
		if len(pairs) == 0 {
			return nil, fmt.Errorf("repository list %s is empty", reposFile)
		}
		return pairs, nil
	}

	repos, err := source.Repositories(ctx, cfg.RepoType)
	if err != nil {
		return nil, fmt.Errorf("enumerate repositories: %w", err)
	}
	pairs := make([]compare.Pair, 0, len(repos))
	for _, r := range repos {
		pairs = append(pairs, compare.Pair{Source: r.Key, Target: r.Key})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("source server has no repositories of type %q", cfg.RepoType)
	}
	return pairs, nil
}

func runTransfer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer log.Sync()

	diffs, err := readDiffs()
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		fmt.Println("Nothing to transfer.")
		return nil
	}

	source, target, err := buildClients(cfg, log)
	if err != nil {
		return err
	}
	synth := synthesizer(cfg, source, target)

	opts := []transfer.Opt{}
	if dryRun {
		opts = append(opts, transfer.WithDryRun())
	}
	if cfg.VerifyAfterPush {
		opts = append(opts, transfer.WithVerify())
	}
	exec := transfer.NewExecutor(source, target, cfg.ParallelWorkers, log, opts...)

	var total transfer.Summary
	for _, d := range diffs {
		chains := synth.Synthesize(d.Diff, d.TargetRepo)
		log.Info("transferring repository",
			zap.String("repository", d.Repo),
			zap.String("target_repository", d.TargetRepo),
			zap.Int("chains", len(chains)),
			zap.Bool("dry_run", dryRun))

		results := exec.Execute(ctx, chains)
		summary := transfer.Summarize(results)
		total.Succeeded += summary.Succeeded
		total.Failed += summary.Failed
		total.Skipped += summary.Skipped

		if !dryRun {
			if err := recordFailed(d, transfer.FailedChains(results)); err != nil {
				return err
			}
		}
		log.Info("repository done",
			zap.String("repository", d.Repo),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped))
	}

	fmt.Printf("Transferred: %d  Failed: %d  Skipped: %d\n",
		total.Succeeded, total.Failed, total.Skipped)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transfer interrupted: %w", err)
	}
	if total.Failed > 0 {
		return fmt.Errorf("%d transfer chains failed", total.Failed)
	}
	return nil
}

// readDiffs loads the pending work: all repositories of a run directory or
// one repository directory, from diff.txt or failed.txt.
func readDiffs() ([]*report.RepoDiffFile, error) {
	if runDirFlag != "" {
		if failedOnly {
			return report.ReadRunFailed(runDirFlag)
		}
		return report.ReadRunDiffs(runDirFlag)
	}
	var (
		d   *report.RepoDiffFile
		err error
	)
	if failedOnly {
		d, err = report.ReadFailed(repoDirFlag)
	} else {
		d, err = report.ReadRepoDiff(repoDirFlag)
	}
	if err != nil {
		return nil, err
	}
	return []*report.RepoDiffFile{d}, nil
}

// recordFailed rewrites failed.txt for the repository, or removes it when
// every chain completed, so --failed-only always sees the current failed
// set.
func recordFailed(d *report.RepoDiffFile, failed []command.Chain) error {
	repoDir := repoDirFlag
	if repoDir == "" {
		repoDir = filepath.Join(runDirFlag, d.Repo)
	}

	if len(failed) == 0 {
		if err := os.Remove(filepath.Join(repoDir, report.FailedFile)); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	res := report.RepoResult{
		Repo:       d.Repo,
		TargetRepo: d.TargetRepo,
	}
	res.Diff.Repo = d.Repo
	for _, c := range failed {
		res.Diff.Transfer = append(res.Diff.Transfer, catalog.Entry{
			Repo:   c.Repo,
			Path:   c.Path,
			SHA256: c.SHA256,
			Size:   c.Size,
		})
	}
	return report.WriteFailed(repoDir, res)
}
