package postgres

import (
	"context"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakePool records queries and plays back canned rows, enough to cover
// the repo SQL paths without a database.
type fakePool struct {
	execTag  pgconn.CommandTag
	execErr  error
	execSQL  []string
	execArgs [][]any

	row pgx.Row

	pingErr error
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.execTag, f.execErr
}

func (f *fakePool) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return f.row
}

func (f *fakePool) Ping(_ context.Context) error { return f.pingErr }

// fakeRow scans its values positionally into the destinations.
type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) {
			break
		}
		assign(d, r.values[i])
	}
	return nil
}

func assign(dest, val any) {
	dv := reflect.ValueOf(dest).Elem()
	if val == nil {
		dv.SetZero()
		return
	}
	vv := reflect.ValueOf(val)
	if vv.Type().ConvertibleTo(dv.Type()) {
		dv.Set(vv.Convert(dv.Type()))
	}
}

func (f *fakePool) lastSQL() string {
	if len(f.execSQL) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(f.execSQL[len(f.execSQL)-1]), " ")
}
