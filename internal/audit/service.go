package audit

import (
	"context"
	"fmt"
)

// Result wraps one listing page with paging information.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}

// Service coordinates read access to the audit trail.
type Service struct {
	repo Repository
}

// NewService constructs the read-side audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List fetches a page of audit entries with defensive paging bounds.
func (s *Service) List(ctx context.Context, filters ListFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	filters.Page = page
	filters.PageSize = pageSize

	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	return Result{
		Rows:   rows,
		Paging: PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}
