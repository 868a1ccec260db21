// Package differ computes which paths require transfer between a source and
// target catalog of the same repository. The comparison is source
// authoritative and one-directional.
package differ

import (
	"sort"

	"github.com/artifact-sre/rtsync/pkg/catalog"
)

// Result is the outcome of comparing one repository across two servers.
// Immutable once produced.
type Result struct {
	Repo string
	// Transfer lists entries missing from the target or present with a
	// different checksum, sorted by path.
	Transfer []catalog.Entry
	// TargetOnly counts paths present only on the target; informational,
	// never scheduled.
	TargetOnly int
	// Compared counts source paths examined.
	Compared int
}

// Diff compares source against target by checksum equality. Repeated runs
// on unchanged catalogs produce byte-identical ordered output.
func Diff(source, target *catalog.Catalog) Result {
	result := Result{
		Repo:     source.Repo(),
		Transfer: []catalog.Entry{},
	}

	for _, path := range source.Paths() {
		entry, _ := source.Get(path)
		result.Compared++

		tgt, exists := target.Get(path)
		if !exists || tgt.SHA256 != entry.SHA256 {
			result.Transfer = append(result.Transfer, entry)
		}
	}

	for _, path := range target.Paths() {
		if _, exists := source.Get(path); !exists {
			result.TargetOnly++
		}
	}

	sort.Slice(result.Transfer, func(i, j int) bool {
		return result.Transfer[i].Path < result.Transfer[j].Path
	})

	return result
}
