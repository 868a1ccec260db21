// Package command turns a per-repository diff into ordered transfer
// operation chains and renders them as executable command files in one of
// two dialects: raw HTTP (curl) or the repository-native CLI (jf).
package command

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/artifact-sre/rtsync/pkg/artifactory"
	"github.com/artifact-sre/rtsync/pkg/differ"
)

// Dialect selects the output format for transfer commands. Chosen once at
// configuration time.
type Dialect string

const (
	// DialectCurl emits raw HTTP commands: fetch to a temporary file, push,
	// then remove the temporary file.
	DialectCurl Dialect = "curl"
	// DialectJF emits repository-native CLI commands; the tool stages its
	// own downloads, so chains have no cleanup step.
	DialectJF Dialect = "jf"
)

// ParseDialect validates a configured dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case DialectCurl, DialectJF:
		return Dialect(s), nil
	default:
		return "", fmt.Errorf("unknown dialect %q (expected curl or jf)", s)
	}
}

// OpKind is one step kind within a transfer chain.
type OpKind string

const (
	OpFetch   OpKind = "fetch"
	OpPush    OpKind = "push"
	OpCleanup OpKind = "cleanup"
)

// Op is a single transfer operation.
type Op struct {
	Kind      OpKind
	SourceURL string
	TargetURL string
	LocalPath string
}

// Chain is the ordered operation sequence for one differing path. Ops must
// execute in order; an earlier failure aborts the rest of the chain.
type Chain struct {
	Repo       string
	TargetRepo string
	Path       string
	SHA256     string
	Size       int64
	Ops        []Op
}

// Synthesizer builds chains and command files for one source/target server
// pair.
type Synthesizer struct {
	Source  artifactory.ServerProfile
	Target  artifactory.ServerProfile
	Dialect Dialect
	TempDir string
}

// Synthesize converts a diff into one chain per differing path, in the
// diff's (sorted) order. targetRepo may differ from the source repository
// when a mapping is configured.
func (s *Synthesizer) Synthesize(diff differ.Result, targetRepo string) []Chain {
	if targetRepo == "" {
		targetRepo = diff.Repo
	}

	chains := make([]Chain, 0, len(diff.Transfer))
	for _, entry := range diff.Transfer {
		local := filepath.Join(s.TempDir, diff.Repo, filepath.FromSlash(entry.Path))
		chain := Chain{
			Repo:       diff.Repo,
			TargetRepo: targetRepo,
			Path:       entry.Path,
			SHA256:     entry.SHA256,
			Size:       entry.Size,
		}

		chain.Ops = append(chain.Ops, Op{
			Kind:      OpFetch,
			SourceURL: artifactory.ItemURL(s.Source, diff.Repo, entry.Path),
			LocalPath: local,
		})
		chain.Ops = append(chain.Ops, Op{
			Kind:      OpPush,
			TargetURL: artifactory.ItemURL(s.Target, targetRepo, entry.Path),
			LocalPath: local,
		})
		if s.Dialect == DialectCurl {
			chain.Ops = append(chain.Ops, Op{
				Kind:      OpCleanup,
				LocalPath: local,
			})
		}

		chains = append(chains, chain)
	}
	return chains
}

// FileName is the name of the command file within a repository's output
// directory.
func (s *Synthesizer) FileName() string {
	return fmt.Sprintf("transfer.%s.sh", s.Dialect)
}

// Render produces the command file contents for chains. Credentials are
// embedded here and nowhere else; access to the file is the caller's
// responsibility.
func (s *Synthesizer) Render(chains []Chain) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if len(chains) > 0 {
		fmt.Fprintf(&b, "# %d transfers for repository %s\n", len(chains), chains[0].Repo)
	}

	for _, chain := range chains {
		b.WriteString("\n")
		for _, op := range chain.Ops {
			switch s.Dialect {
			case DialectJF:
				b.WriteString(s.renderJF(chain, op))
			default:
				b.WriteString(s.renderCurl(op))
			}
		}
	}
	return b.String()
}

func (s *Synthesizer) renderCurl(op Op) string {
	switch op.Kind {
	case OpFetch:
		return fmt.Sprintf("curl -fsSL %s --create-dirs -o %q %q\n",
			curlAuth(s.Source), op.LocalPath, op.SourceURL)
	case OpPush:
		return fmt.Sprintf("curl -fsSL %s -T %q %q\n",
			curlAuth(s.Target), op.LocalPath, op.TargetURL)
	case OpCleanup:
		return fmt.Sprintf("rm -f %q\n", op.LocalPath)
	}
	return ""
}

func (s *Synthesizer) renderJF(chain Chain, op Op) string {
	switch op.Kind {
	case OpFetch:
		return fmt.Sprintf("jf rt download --flat=false --url %q %s %q %q\n",
			strings.TrimSuffix(s.Source.URL, "/")+"/artifactory",
			jfAuth(s.Source),
			chain.Repo+"/"+chain.Path,
			filepath.ToSlash(filepath.Join(s.TempDir, chain.Repo))+"/",
		)
	case OpPush:
		return fmt.Sprintf("jf rt upload --flat --url %q %s %q %q\n",
			strings.TrimSuffix(s.Target.URL, "/")+"/artifactory",
			jfAuth(s.Target),
			filepath.ToSlash(op.LocalPath),
			chain.TargetRepo+"/"+chain.Path,
		)
	}
	return ""
}

func curlAuth(p artifactory.ServerProfile) string {
	if p.Token != "" {
		return fmt.Sprintf("-H %q", "Authorization: Bearer "+p.Token)
	}
	if p.Username != "" {
		return fmt.Sprintf("-u %q", p.Username+":"+p.Password)
	}
	return ""
}

func jfAuth(p artifactory.ServerProfile) string {
	if p.Token != "" {
		return fmt.Sprintf("--access-token %q", p.Token)
	}
	if p.Username != "" {
		return fmt.Sprintf("--user %q --password %q", p.Username, p.Password)
	}
	return ""
}
