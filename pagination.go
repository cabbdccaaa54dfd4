package sqlkit

import "context"

// DefaultPageSize is the page size used when PerPage is absent.
const DefaultPageSize = 20

// MaxPageSize is the maximum allowed page size.
const MaxPageSize = 100

// Pagination contains page metadata for an offset-paginated result.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// Page is an offset-paginated result: the rows plus their metadata.
type Page struct {
	Data       *Rows      `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// PaginateOptions configures Paginate. Page and PerPage are clamped:
// page below 1 becomes 1, absent PerPage becomes DefaultPageSize, and
// PerPage is capped at MaxPageSize. The remaining fields mirror
// SelectOptions.
type PaginateOptions struct {
	Page    int
	PerPage int
	Columns []string
	Where   string
	Params  []any
	OrderBy string
}

// Paginate counts the matching rows, fetches one page of them with
// LIMIT/OFFSET, and returns both with metadata. The offset is
// (page-1)*perPage and Pages is ceil(total/perPage), never below 1.
func (db *DB) Paginate(ctx context.Context, table string, o PaginateOptions, opts ...Option) (*Page, error) {
	page, perPage := clampPage(o.Page, o.PerPage)

	total, err := db.Count(ctx, table, o.Where, o.Params, opts...)
	if err != nil {
		return nil, err
	}

	rows, err := db.Select(ctx, table, SelectOptions{
		Columns: o.Columns,
		Where:   o.Where,
		Params:  o.Params,
		OrderBy: o.OrderBy,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}, opts...)
	if err != nil {
		return nil, err
	}

	return &Page{
		Data:       rows,
		Pagination: paginationFor(page, perPage, total),
	}, nil
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	return page, perPage
}

// paginationFor computes page metadata from a total row count.
func paginationFor(page, perPage, total int) Pagination {
	pages := (total + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}

	return Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}
