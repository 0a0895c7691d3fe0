package apiclient

import (
	"context"
	"io"
	"net/url"
	"strconv"
)

// Pager walks a paginated collection one page at a time, for infinite scrolling.
type Pager[T any] struct {
	client *Client
	path   string
	query  url.Values
	limit  int

	page int
	done bool
	meta Meta
}

// NewPager starts at page 1. A non-positive limit leaves the page size to the API.
func NewPager[T any](client *Client, path string, query url.Values, limit int) *Pager[T] {
	return &Pager[T]{client: client, path: path, query: query, limit: limit}
}

// Next fetches the following page. It returns io.EOF once the collection is exhausted.
// A failed fetch does not advance the pager, so Next can be called again.
func (p *Pager[T]) Next(ctx context.Context) ([]T, error) {
	if p.done {
		return nil, io.EOF
	}

	q := url.Values{}
	for k, v := range p.query {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(p.page+1))
	if p.limit > 0 {
		q.Set("limit", strconv.Itoa(p.limit))
	}

	page, err := GetPage[T](ctx, p.client, p.path, q)
	if err != nil {
		return nil, err
	}

	p.page++
	p.meta = page.Meta
	if page.Meta.Page > 0 {
		p.page = page.Meta.Page
	}
	p.done = !page.HasMore() || len(page.Data) == 0
	return page.Data, nil
}

// HasMore reports whether Next may return more items.
func (p *Pager[T]) HasMore() bool {
	return !p.done
}

// Meta is the pagination metadata of the last page fetched.
func (p *Pager[T]) Meta() Meta {
	return p.meta
}

// Reset rewinds to the first page.
func (p *Pager[T]) Reset() {
	p.page = 0
	p.done = false
	p.meta = Meta{}
}
