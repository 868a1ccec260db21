package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/artifact-sre/rtsync/pkg/catalog"
	"github.com/artifact-sre/rtsync/pkg/differ"
)

// RepoDiffFile is the parsed form of one repository's diff list, read back
// from a run directory for the transfer phase.
type RepoDiffFile struct {
	Repo       string
	TargetRepo string
	Diff       differ.Result
}

// ReadRepoDiff parses <repoDir>/diff.txt.
func ReadRepoDiff(repoDir string) (*RepoDiffFile, error) {
	return readDiffFile(filepath.Join(repoDir, RepoDiff), filepath.Base(repoDir))
}

// ReadFailed parses <repoDir>/failed.txt, written by a previous transfer
// invocation. The format matches diff.txt so failed subsets re-run the same
// way.
func ReadFailed(repoDir string) (*RepoDiffFile, error) {
	return readDiffFile(filepath.Join(repoDir, FailedFile), filepath.Base(repoDir))
}

func readDiffFile(path, fallbackRepo string) (*RepoDiffFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	parsed := &RepoDiffFile{
		Repo: fallbackRepo,
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), ":")
			if !ok {
				continue
			}
			switch strings.TrimSpace(key) {
			case "repository":
				parsed.Repo = strings.TrimSpace(value)
			case "target":
				parsed.TargetRepo = strings.TrimSpace(value)
			}
			continue
		}

		_, rest, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("parse %s: malformed line %q", path, line)
		}
		entryPath, sha, _ := strings.Cut(rest, ",")
		parsed.Diff.Transfer = append(parsed.Diff.Transfer, catalog.Entry{
			Repo:   parsed.Repo,
			Path:   entryPath,
			SHA256: sha,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	parsed.Diff.Repo = parsed.Repo
	if parsed.TargetRepo == "" {
		parsed.TargetRepo = parsed.Repo
	}
	return parsed, nil
}

// ReadRunDiffs parses every repository diff list under a run directory.
func ReadRunDiffs(runDir string) ([]*RepoDiffFile, error) {
	return readRunFiles(runDir, RepoDiff)
}

// ReadRunFailed parses every repository failed list under a run directory,
// for re-running just the failed subset.
func ReadRunFailed(runDir string) ([]*RepoDiffFile, error) {
	return readRunFiles(runDir, FailedFile)
}

func readRunFiles(runDir, name string) ([]*RepoDiffFile, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, fmt.Errorf("read run directory: %w", err)
	}

	var diffs []*RepoDiffFile
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		repoDir := filepath.Join(runDir, e.Name())
		if _, err := os.Stat(filepath.Join(repoDir, name)); err != nil {
			continue
		}
		parsed, err := readDiffFile(filepath.Join(repoDir, name), e.Name())
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, parsed)
	}
	return diffs, nil
}
