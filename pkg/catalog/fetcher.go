package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/artifact-sre/rtsync/pkg/artifactory"
	"github.com/artifact-sre/rtsync/pkg/filter"
)

// DefaultPageSize keeps page counts small even for repositories with
// millions of objects while bounding one page in flight at a time.
const DefaultPageSize = 100000

// Querier is the catalog query capability of one server.
type Querier interface {
	Query(ctx context.Context, repo string, offset, limit int) (*artifactory.QueryPage, error)
}

// Fetcher drives paginated queries against one server, accumulating
// non-generated records into a Catalog.
type Fetcher struct {
	client   Querier
	pageSize int
	logger   *zap.Logger
}

// NewFetcher builds a fetcher. pageSize <= 0 selects DefaultPageSize.
func NewFetcher(client Querier, pageSize int, logger *zap.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Fetcher{
		client:   client,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Fetch retrieves the complete catalog for repo. Pages are requested in
// increasing-offset order; the fetch ends on the first short or empty page.
// The returned catalog is complete and safe to read without locking.
func (f *Fetcher) Fetch(ctx context.Context, repo string) (*Catalog, error) {
	cat := New(repo)
	offset := 0
	var fetched int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch catalog for %s: %w", repo, err)
		}

		page, err := f.client.Query(ctx, repo, offset, f.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch catalog for %s at offset %d: %w", repo, offset, err)
		}

		for _, item := range page.Items {
			if filter.IsGenerated(item.FullPath()) {
				continue
			}
			cat.add(item)
		}

		fetched += int64(len(page.Items))
		if page.Total > 0 {
			f.logger.Info("catalog progress",
				zap.String("repo", repo),
				zap.Int64("fetched", fetched),
				zap.Int64("total", page.Total),
			)
		} else {
			f.logger.Info("catalog progress",
				zap.String("repo", repo),
				zap.Int64("fetched", fetched),
			)
		}

		if len(page.Items) < f.pageSize {
			break
		}
		offset += f.pageSize
	}

	return cat, nil
}
