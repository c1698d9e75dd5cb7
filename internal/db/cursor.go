package db

import (
	"context"

	"boardpulse/internal/types"
)

// FetchPage loads one page of rows strictly after the given token, in
// (created_at, id) ascending order. It returns the rows and the token of the
// last row, which seeds the next fetch.
type FetchPage[T any] func(ctx context.Context, after types.PageToken, limit int) ([]T, types.PageToken, error)

// Cursor is a lazy, forward-only sequence over a query result, fetched in
// pages so large result sets never fully materialize in memory. It is the
// repository analogue of a server-side cursor: finite, not restartable once
// iteration starts, restartable only by issuing a fresh Find call.
//
// Usage mirrors pgx.Rows:
//
//	cur := repo.FindDeletionCandidates(ctx, cutoff, 50)
//	for cur.Next(ctx) {
//	    u := cur.Item()
//	    ...
//	}
//	if err := cur.Err(); err != nil { ... }
//
// Deleting the yielded row between pages is safe: paging is keyed on the last
// row's sort key, not on an offset, so removed rows cannot shift the window.
type Cursor[T any] struct {
	fetch    FetchPage[T]
	pageSize int

	buf   []T
	pos   int
	after types.PageToken
	done  bool
	err   error
	item  T
}

// NewCursor builds a Cursor over the given page fetcher. Exported so
// consumers of the repository interfaces can construct cursors over other
// sources, in-memory fixtures included.
func NewCursor[T any](fetch FetchPage[T], pageSize int) *Cursor[T] {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Cursor[T]{fetch: fetch, pageSize: pageSize}
}

// defaultPageSize bounds cursor fetches when the caller passes no explicit
// page size.
const defaultPageSize = 100

// Next advances the cursor, fetching the next page from the database when the
// buffered one is exhausted. It returns false at the end of the result set or
// on error; check Err afterwards.
func (c *Cursor[T]) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if c.pos >= len(c.buf) {
		if c.done {
			return false
		}
		rows, last, err := c.fetch(ctx, c.after, c.pageSize)
		if err != nil {
			c.err = err
			return false
		}
		if len(rows) == 0 {
			c.done = true
			return false
		}
		if len(rows) < c.pageSize {
			// Short page: the next fetch would return nothing.
			c.done = true
		}
		c.buf = rows
		c.pos = 0
		c.after = last
	}
	c.item = c.buf[c.pos]
	c.pos++
	return true
}

// Item returns the row the last successful Next call advanced to.
func (c *Cursor[T]) Item() T {
	return c.item
}

// Err returns the first error encountered during iteration, if any.
func (c *Cursor[T]) Err() error {
	return c.err
}
