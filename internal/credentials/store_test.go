package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"studio/internal/sqlinline"
	"studio/internal/storage"
)

type stubExecutor struct {
	token string
	err   error
	exec  struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return stubRow{token: s.token, err: s.err}
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestStoreGetTrims(t *testing.T) {
	store := NewStore(NewPostgresSlot(&stubExecutor{token: " abc123 "}))
	key, ok, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok || key != "abc123" {
		t.Fatalf("expected abc123, got %q (ok=%v)", key, ok)
	}
}

func TestStoreGetNoRows(t *testing.T) {
	store := NewStore(NewPostgresSlot(&stubExecutor{err: pgx.ErrNoRows}))
	key, ok, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if ok || key != "" {
		t.Fatalf("expected no key, got %q (ok=%v)", key, ok)
	}
}

func TestStoreGetPropagatesBackendError(t *testing.T) {
	store := NewStore(NewPostgresSlot(&stubExecutor{err: errors.New("connection reset")}))
	if _, _, err := store.Get(context.Background()); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestStoreSetUpserts(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(NewPostgresSlot(exec))
	if err := store.Set(context.Background(), "  secret "); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if exec.exec.query != sqlinline.QUpsertIntegrationToken {
		t.Fatalf("unexpected query: %s", exec.exec.query)
	}
	if len(exec.exec.args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != SlotKey {
		t.Fatalf("expected slot key argument, got %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestStoreSetRejectsBlank(t *testing.T) {
	for _, token := range []string{"", " ", "\t\n"} {
		exec := &stubExecutor{}
		store := NewStore(NewPostgresSlot(exec))
		if err := store.Set(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Set(%q) = %v, want ErrInvalidToken", token, err)
		}
		if exec.exec.query != "" {
			t.Fatalf("Set(%q) reached the backend", token)
		}
	}
}

func TestStoreClearDeletes(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(NewPostgresSlot(exec))
	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if exec.exec.query != sqlinline.QDeleteIntegrationToken {
		t.Fatalf("unexpected query: %s", exec.exec.query)
	}
}

func TestMemorySlotLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemorySlot())
	if _, ok, _ := store.Get(ctx); ok {
		t.Fatal("expected empty store")
	}
	if err := store.Set(ctx, "k1"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if got, ok, _ := store.Get(ctx); !ok || got != "k1" {
		t.Fatalf("Get = %q (ok=%v)", got, ok)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear #%d error: %v", i+1, err)
		}
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Fatal("expected cleared store")
	}
}

func TestFileSlotPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if err := NewStore(NewFileSlot(fs)).Set(ctx, "persisted"); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	reopened, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	store := NewStore(NewFileSlot(reopened))
	got, ok, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok || got != "persisted" {
		t.Fatalf("Get = %q (ok=%v)", got, ok)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear error: %v", err)
	}
	if _, ok, _ := store.Get(ctx); ok {
		t.Fatal("expected cleared file slot")
	}
}

type stubRedis struct {
	redis.Cmdable
	values map[string]string
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *stubRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	s.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := s.values[k]; ok {
			delete(s.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisSlot(t *testing.T) {
	ctx := context.Background()
	rdb := &stubRedis{values: map[string]string{}}
	store := NewStore(NewRedisSlot(rdb, "studio"))

	if _, ok, err := store.Get(ctx); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "rk"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if rdb.values["studio:"+SlotKey] != "rk" {
		t.Fatalf("unexpected redis contents: %#v", rdb.values)
	}
	if got, ok, _ := store.Get(ctx); !ok || got != "rk" {
		t.Fatalf("Get = %q (ok=%v)", got, ok)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear error: %v", err)
	}
}
