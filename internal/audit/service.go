package audit

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxDateRange    = 90 * 24 * time.Hour
)

// RepositoryPort is the query surface the service needs.
type RepositoryPort interface {
	TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service serves the audit timeline read model.
type Service struct {
	repo RepositoryPort
}

// NewService returns a timeline service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit entries matching the filters. It fetches
// one row beyond the page size to detect a next page without a count query.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() {
		if filters.From.After(filters.To) {
			return Result{}, fmt.Errorf("audit: from must not be after to")
		}
		if filters.To.Sub(filters.From) > maxDateRange {
			return Result{}, fmt.Errorf("audit: date range exceeds 90 days")
		}
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	entries, err := s.repo.TimelineWindow(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// Export returns all entries matching the filters, newest first, for CSV
// download. Bounded by the same 90-day range guard as Timeline.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Sub(filters.From) > maxDateRange {
		return nil, fmt.Errorf("audit: date range exceeds 90 days")
	}
	const exportBatch = 1000
	var all []Entry
	offset := 0
	for {
		batch, err := s.repo.TimelineWindow(ctx, filters, exportBatch, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < exportBatch {
			return all, nil
		}
		offset += exportBatch
	}
}

// Purge drops entries older than the retention window and reports the count.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.PurgeOlderThan(ctx, time.Now().UTC().Add(-retention))
}
