package credential

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	return nil
}

type fakeQuerier struct {
	rows    map[string]string
	rowErr  error
	execErr error
	sql     []string
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql = append(q.sql, sql)
	if q.rowErr != nil {
		return fakeRow{err: q.rowErr}
	}
	v, ok := q.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: v}
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.sql = append(q.sql, sql)
	if q.execErr != nil {
		return pgconn.CommandTag{}, q.execErr
	}
	if q.rows == nil {
		q.rows = map[string]string{}
	}
	switch {
	case strings.HasPrefix(sql, "INSERT"):
		q.rows[args[0].(string)] = args[1].(string)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.HasPrefix(sql, "DELETE"):
		delete(q.rows, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.CommandTag{}, nil
}

func TestPostgresStore_Get(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuerier{rows: map[string]string{AccessTokenKey: "pgtoken"}}
	s := NewPostgresStore(q, "")

	v, ok, err := s.Get(ctx, AccessTokenKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || v != "pgtoken" {
		t.Errorf("Get() = (%q, %v), want (\"pgtoken\", true)", v, ok)
	}
	if want := `SELECT value FROM "local_storage" WHERE key = $1`; q.sql[0] != want {
		t.Errorf("sql = %q, want %q", q.sql[0], want)
	}

	_, ok, err = s.Get(ctx, "missing")
	if err != nil {
		t.Errorf("Get(missing) error = %v, want nil", err)
	}
	if ok {
		t.Error("Get(missing) ok = true, want false")
	}
}

func TestPostgresStore_QueryError(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewPostgresStore(&fakeQuerier{rowErr: boom}, "sessions")

	_, _, err := s.Get(context.Background(), AccessTokenKey)
	if !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want wrapped %v", err, boom)
	}
}

func TestPostgresStore_SetDelete(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuerier{}
	s := NewPostgresStore(q, "sessions")

	if err := s.Set(ctx, AccessTokenKey, "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !strings.Contains(q.sql[0], `"sessions"`) || !strings.Contains(q.sql[0], "ON CONFLICT") {
		t.Errorf("upsert sql = %q", q.sql[0])
	}
	if v, _, _ := s.Get(ctx, AccessTokenKey); v != "v1" {
		t.Errorf("Get() = %q, want %q", v, "v1")
	}

	if err := s.Delete(ctx, AccessTokenKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, AccessTokenKey); ok {
		t.Error("expected key deleted")
	}

	q.execErr = errors.New("read-only")
	if err := s.Set(ctx, "k", "v"); err == nil {
		t.Error("expected Set error")
	}
}
