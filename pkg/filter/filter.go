// Package filter decides which catalog paths are repository-generated
// metadata and must be excluded from comparison and transfer.
package filter

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// generatedNames are exact basenames produced by repository indexers and
// package managers rather than deployed by users.
var generatedNames = []string{
	"repository.catalog",
	"maven-metadata.xml",
	"Packages",
	"Packages.gz",
	"Packages.bz2",
	"Release",
	"repomd.xml",
	"repomd.xml.asc",
	"repomd.xml.key",
	"primary.xml.gz",
	"other.xml.gz",
	"filelists.xml.gz",
	"by-hash",
	".gemspec.rz",
	".json",
}

// generatedPrefixes are tool-owned namespaces at the repository root.
var generatedPrefixes = []string{
	".npm/",
	".jfrog/",
	".pypi/",
	".composer/",
	"versions/",
}

// generatedSubstrings mark a path as generated wherever they appear in it.
var generatedSubstrings = []string{
	"_uploads",
	"index.yaml",
	"tags.json",
	"repository_v2.catalog",
}

// generatedGlobs match generated directories and temporary upload markers
// anywhere in the tree.
var generatedGlobs = []string{
	"**/by-hash/**",
	"by-hash/**",
	"**/*.tmp.upload",
}

// IsGenerated reports whether path is repository-generated metadata. It is a
// pure predicate over the package-level match lists; extending the lists
// never requires touching callers.
func IsGenerated(path string) bool {
	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}

	for _, name := range generatedNames {
		if base == name {
			return true
		}
	}

	for _, prefix := range generatedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	for _, sub := range generatedSubstrings {
		if strings.Contains(path, sub) {
			return true
		}
	}

	for _, pattern := range generatedGlobs {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}

	return false
}
