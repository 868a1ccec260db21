package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artifact-sre/rtsync/pkg/artifactory"
	"github.com/artifact-sre/rtsync/pkg/catalog"
	"github.com/artifact-sre/rtsync/pkg/differ"
)

var (
	srcProfile = artifactory.ServerProfile{Name: "src", URL: "https://src.example.com", Token: "src-token"}
	dstProfile = artifactory.ServerProfile{Name: "dst", URL: "https://dst.example.com", Username: "deploy", Password: "s3cret"}
)

func sampleDiff() differ.Result {
	return differ.Result{
		Repo: "libs-release",
		Transfer: []catalog.Entry{
			{Repo: "libs-release", Path: "org/example/a.jar", SHA256: "aaa", Size: 10},
			{Repo: "libs-release", Path: "org/example/b.jar", SHA256: "bbb", Size: 20},
		},
	}
}

func TestParseDialect(t *testing.T) {
	for _, valid := range []string{"curl", "jf"} {
		d, err := ParseDialect(valid)
		require.NoError(t, err)
		assert.Equal(t, Dialect(valid), d)
	}
	_, err := ParseDialect("wget")
	assert.Error(t, err)
}

func TestSynthesizeCurlChains(t *testing.T) {
	s := &Synthesizer{Source: srcProfile, Target: dstProfile, Dialect: DialectCurl, TempDir: "tmp"}

	chains := s.Synthesize(sampleDiff(), "")
	require.Len(t, chains, 2)

	chain := chains[0]
	assert.Equal(t, "libs-release", chain.Repo)
	assert.Equal(t, "libs-release", chain.TargetRepo)
	assert.Equal(t, "org/example/a.jar", chain.Path)
	assert.Equal(t, "aaa", chain.SHA256)

	require.Len(t, chain.Ops, 3)
	assert.Equal(t, OpFetch, chain.Ops[0].Kind)
	assert.Equal(t, OpPush, chain.Ops[1].Kind)
	assert.Equal(t, OpCleanup, chain.Ops[2].Kind)

	assert.Equal(t, "https://src.example.com/artifactory/libs-release/org/example/a.jar", chain.Ops[0].SourceURL)
	assert.Equal(t, "https://dst.example.com/artifactory/libs-release/org/example/a.jar", chain.Ops[1].TargetURL)
	assert.Equal(t, chain.Ops[0].LocalPath, chain.Ops[1].LocalPath)
	assert.Equal(t, chain.Ops[0].LocalPath, chain.Ops[2].LocalPath)
}

func TestSynthesizeJFChainsHaveNoCleanup(t *testing.T) {
	s := &Synthesizer{Source: srcProfile, Target: dstProfile, Dialect: DialectJF, TempDir: "tmp"}

	chains := s.Synthesize(sampleDiff(), "")
	require.Len(t, chains, 2)
	for _, chain := range chains {
		require.Len(t, chain.Ops, 2)
		assert.Equal(t, OpFetch, chain.Ops[0].Kind)
		assert.Equal(t, OpPush, chain.Ops[1].Kind)
	}
}

func TestSynthesizeMappedTargetRepo(t *testing.T) {
	s := &Synthesizer{Source: srcProfile, Target: dstProfile, Dialect: DialectCurl, TempDir: "tmp"}

	chains := s.Synthesize(sampleDiff(), "libs-release-copy")
	require.Len(t, chains, 2)
	assert.Equal(t, "libs-release-copy", chains[0].TargetRepo)
	assert.Contains(t, chains[0].Ops[1].TargetURL, "/artifactory/libs-release-copy/")
}

func TestRenderCurl(t *testing.T) {
	s := &Synthesizer{Source: srcProfile, Target: dstProfile, Dialect: DialectCurl, TempDir: "tmp"}
	out := s.Render(s.Synthesize(sampleDiff(), ""))

	assert.True(t, strings.HasPrefix(out, "#!/bin/sh\n"))
	assert.Contains(t, out, `-H "Authorization: Bearer src-token"`)
	assert.Contains(t, out, `-u "deploy:s3cret"`)
	assert.Contains(t, out, `-T `)
	assert.Contains(t, out, "rm -f ")
	assert.Contains(t, out, "https://src.example.com/artifactory/libs-release/org/example/a.jar")

	// fetch must precede push, push must precede cleanup
	fetchIdx := strings.Index(out, "--create-dirs")
	pushIdx := strings.Index(out, "-T ")
	rmIdx := strings.Index(out, "rm -f")
	assert.Less(t, fetchIdx, pushIdx)
	assert.Less(t, pushIdx, rmIdx)
}

func TestRenderJF(t *testing.T) {
	s := &Synthesizer{Source: srcProfile, Target: dstProfile, Dialect: DialectJF, TempDir: "tmp"}
	out := s.Render(s.Synthesize(sampleDiff(), "libs-copy"))

	assert.Contains(t, out, "jf rt download")
	assert.Contains(t, out, "jf rt upload")
	assert.Contains(t, out, `--access-token "src-token"`)
	assert.Contains(t, out, `--user "deploy" --password "s3cret"`)
	assert.Contains(t, out, `"libs-release/org/example/a.jar"`)
	assert.Contains(t, out, `"libs-copy/org/example/a.jar"`)
	assert.NotContains(t, out, "rm -f")
}

func TestFileNamePerDialect(t *testing.T) {
	assert.Equal(t, "transfer.curl.sh", (&Synthesizer{Dialect: DialectCurl}).FileName())
	assert.Equal(t, "transfer.jf.sh", (&Synthesizer{Dialect: DialectJF}).FileName())
}
