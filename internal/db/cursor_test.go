package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardpulse/internal/types"
)

func TestCursor_PagesThroughAllRows(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	all := []string{"a", "b", "c", "d", "e"}

	var fetches int
	cur := NewCursor(func(_ context.Context, after types.PageToken, limit int) ([]string, types.PageToken, error) {
		fetches++
		start := 0
		if !after.IsZero() {
			for i, id := range all {
				if id == after.ID {
					start = i + 1
				}
			}
		}
		end := start + limit
		if end > len(all) {
			end = len(all)
		}
		page := all[start:end]
		var last types.PageToken
		if len(page) > 0 {
			last = types.PageToken{CreatedAt: base, ID: page[len(page)-1]}
		}
		return page, last, nil
	}, 2)

	var got []string
	for cur.Next(context.Background()) {
		got = append(got, cur.Item())
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, all, got)
	// Pages of 2 over 5 rows: two full pages plus the short final one.
	assert.Equal(t, 3, fetches)
}

func TestCursor_ShortPageEndsIteration(t *testing.T) {
	var fetches int
	cur := NewCursor(func(_ context.Context, _ types.PageToken, _ int) ([]string, types.PageToken, error) {
		fetches++
		return []string{"only"}, types.PageToken{ID: "only"}, nil
	}, 10)

	assert.True(t, cur.Next(context.Background()))
	assert.Equal(t, "only", cur.Item())
	assert.False(t, cur.Next(context.Background()))
	require.NoError(t, cur.Err())
	assert.Equal(t, 1, fetches, "a short page must not trigger another fetch")
}

func TestCursor_EmptyResult(t *testing.T) {
	cur := NewCursor(func(_ context.Context, _ types.PageToken, _ int) ([]int, types.PageToken, error) {
		return nil, types.PageToken{}, nil
	}, 10)

	assert.False(t, cur.Next(context.Background()))
	assert.NoError(t, cur.Err())
}

func TestCursor_FetchErrorStopsIteration(t *testing.T) {
	fetchErr := errors.New("query failed")
	cur := NewCursor(func(_ context.Context, _ types.PageToken, _ int) ([]int, types.PageToken, error) {
		return nil, types.PageToken{}, fetchErr
	}, 10)

	assert.False(t, cur.Next(context.Background()))
	assert.ErrorIs(t, cur.Err(), fetchErr)
	assert.False(t, cur.Next(context.Background()), "a failed cursor must stay stopped")
}
