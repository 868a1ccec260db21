package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/artifact-sre/rtsync/pkg/artifactory"
)

// fakeQuerier serves a fixed record set page by page, like the server would.
type fakeQuerier struct {
	items   []artifactory.Item
	queries []int // offsets seen
	failAt  map[int]error
}

func (f *fakeQuerier) Query(_ context.Context, repo string, offset, limit int) (*artifactory.QueryPage, error) {
	f.queries = append(f.queries, offset)
	if err, ok := f.failAt[offset]; ok {
		return nil, err
	}

	end := offset + limit
	if offset > len(f.items) {
		offset = len(f.items)
	}
	if end > len(f.items) {
		end = len(f.items)
	}
	return &artifactory.QueryPage{
		Items: f.items[offset:end],
		Total: int64(len(f.items)),
	}, nil
}

func fixedItems(n int) []artifactory.Item {
	items := make([]artifactory.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, artifactory.Item{
			Repo:   "libs-release",
			Path:   "org/example",
			Name:   fmt.Sprintf("artifact-%03d.jar", i),
			SHA256: fmt.Sprintf("sha-%03d", i),
			Size:   int64(i),
		})
	}
	return items
}

func TestFetchPaginationIndependentOfPageSize(t *testing.T) {
	const n = 57
	var reference []string

	for _, pageSize := range []int{1, 2, 7, 56, 57, 58, 1000} {
		t.Run(fmt.Sprintf("pageSize=%d", pageSize), func(t *testing.T) {
			q := &fakeQuerier{items: fixedItems(n)}
			f := NewFetcher(q, pageSize, zaptest.NewLogger(t))

			cat, err := f.Fetch(context.Background(), "libs-release")
			require.NoError(t, err)
			assert.Equal(t, n, cat.Len())

			if reference == nil {
				reference = cat.Paths()
			} else {
				assert.Equal(t, reference, cat.Paths())
			}
		})
	}
}

func TestFetchStopsOnShortPage(t *testing.T) {
	q := &fakeQuerier{items: fixedItems(25)}
	f := NewFetcher(q, 10, zaptest.NewLogger(t))

	cat, err := f.Fetch(context.Background(), "libs-release")
	require.NoError(t, err)
	assert.Equal(t, 25, cat.Len())
	// Offsets 0, 10, 20; the short page at 20 ends the fetch.
	assert.Equal(t, []int{0, 10, 20}, q.queries)
}

func TestFetchEmptyRepository(t *testing.T) {
	q := &fakeQuerier{}
	f := NewFetcher(q, 10, zaptest.NewLogger(t))

	cat, err := f.Fetch(context.Background(), "empty-repo")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
	assert.Equal(t, []int{0}, q.queries)
}

func TestFetchExcludesGeneratedPaths(t *testing.T) {
	q := &fakeQuerier{items: []artifactory.Item{
		{Repo: "r", Path: "org/example", Name: "a.jar", SHA256: "s1"},
		{Repo: "r", Path: "org/example", Name: "maven-metadata.xml", SHA256: "s2"},
		{Repo: "r", Path: ".npm/app", Name: "package.json", SHA256: "s3"},
		{Repo: "r", Path: "org/example/_uploads/x", Name: "blob", SHA256: "s4"},
	}}
	f := NewFetcher(q, 10, zaptest.NewLogger(t))

	cat, err := f.Fetch(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, []string{"org/example/a.jar"}, cat.Paths())
}

func TestFetchSurfacesQueryError(t *testing.T) {
	serverErr := &artifactory.ServerError{Server: "src", Status: 502}
	q := &fakeQuerier{
		items:  fixedItems(30),
		failAt: map[int]error{10: serverErr},
	}
	f := NewFetcher(q, 10, zaptest.NewLogger(t))

	_, err := f.Fetch(context.Background(), "libs-release")
	require.Error(t, err)
	var se *artifactory.ServerError
	assert.True(t, errors.As(err, &se))
}

func TestFetchHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &fakeQuerier{items: fixedItems(5)}
	f := NewFetcher(q, 10, zaptest.NewLogger(t))

	_, err := f.Fetch(ctx, "libs-release")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, q.queries)
}
