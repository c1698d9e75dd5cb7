package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"boardpulse/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows ---

type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		assignMockValue(d, row[i])
	}
	return nil
}

// assignMockValue copies a fixture value into a scan destination, covering
// the column types the repositories in this package scan.
func assignMockValue(dest, val any) {
	switch v := dest.(type) {
	case *string:
		*v = val.(string)
	case *bool:
		*v = val.(bool)
	case *int:
		*v = val.(int)
	case *time.Time:
		*v = val.(time.Time)
	case **time.Time:
		if val == nil {
			*v = nil
		} else {
			t := val.(time.Time)
			*v = &t
		}
	case *[]string:
		if val == nil {
			*v = nil
		} else {
			*v = val.([]string)
		}
	case *json.RawMessage:
		*v = val.(json.RawMessage)
	case *types.JobType:
		*v = types.JobType(val.(string))
	case *types.JobStatus:
		*v = types.JobStatus(val.(string))
	}
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// jobFixtureRow builds a mockRows row matching jobColumns order.
func jobFixtureRow(id string, jobType types.JobType, status types.JobStatus, subject string, data string, result string, createdAt time.Time) []any {
	return []any{id, string(jobType), string(status), subject, json.RawMessage(data), result, createdAt}
}

// userFixtureRow builds a mockRows row matching userColumns order.
// prevention and notified may be nil for NULL columns.
func userFixtureRow(id, email string, createdAt time.Time, prevention, notified any) []any {
	return []any{id, email, "Test", "User", true, false, createdAt, prevention, notified}
}
