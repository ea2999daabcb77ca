package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "cloudmux-test.db")
	database, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	})
	return database, path
}

func assertTableExists(t *testing.T, conn *sql.DB, table string) {
	t.Helper()
	var count int
	err := conn.QueryRow(`SELECT count(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master error: %v", err)
	}
	if count != 1 {
		t.Fatalf("table %q not found", table)
	}
}

func TestOpenCreatesDBFileAndRunsMigrations(t *testing.T) {
	database, path := openTestDB(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected DB file at %q: %v", path, err)
	}

	assertTableExists(t, database.SQL(), "_meta")
	assertTableExists(t, database.SQL(), "terminal_sessions")
	assertTableExists(t, database.SQL(), "log_tails")
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	database, _ := openTestDB(t)

	if err := RunMigrations(context.Background(), database.SQL()); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}

	version, err := SchemaVersion(context.Background(), database.SQL())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("schema version = %d, want %d", version, len(migrations))
	}
}

func TestTerminalSessionRepoLifecycle(t *testing.T) {
	database, _ := openTestDB(t)
	repo := NewTerminalSessionRepo(database.SQL())
	ctx := context.Background()

	session := &TerminalSession{
		ID:          "s-1",
		Title:       "Local Shell",
		SessionType: `{"type":"local"}`,
		Kind:        "local",
		Status:      "running",
		Cols:        80,
		Rows:        24,
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.CreatedAt.IsZero() {
		t.Fatal("Create() did not set CreatedAt")
	}

	got, err := repo.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Title != "Local Shell" || got.Kind != "local" || got.EndedAt != nil {
		t.Fatalf("Get() got = %#v", got)
	}

	if err := repo.UpdateGeometry(ctx, "s-1", 120, 40); err != nil {
		t.Fatalf("UpdateGeometry() error = %v", err)
	}

	changed, err := repo.MarkEnded(ctx, "s-1", "closed", "")
	if err != nil || !changed {
		t.Fatalf("MarkEnded() = %v, %v", changed, err)
	}
	changed, err = repo.MarkEnded(ctx, "s-1", "error", "late failure")
	if err != nil || changed {
		t.Fatalf("second MarkEnded() = %v, %v; want no change", changed, err)
	}

	got, err = repo.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != "closed" || got.EndedAt == nil || got.Cols != 120 || got.Rows != 40 {
		t.Fatalf("Get() after end = %#v", got)
	}

	missing, err := repo.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("Get(missing) = %#v, %v", missing, err)
	}

	if deleted, err := repo.Delete(ctx, "s-1"); err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v", deleted, err)
	}
	if deleted, err := repo.Delete(ctx, "s-1"); err != nil || deleted {
		t.Fatalf("second Delete() = %v, %v", deleted, err)
	}
	if got, _ := repo.Get(ctx, "s-1"); got != nil {
		t.Fatalf("Get() after delete = %#v", got)
	}
}

func TestTerminalSessionRepoListOrderAndFilter(t *testing.T) {
	database, _ := openTestDB(t)
	repo := NewTerminalSessionRepo(database.SQL())
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		s := &TerminalSession{
			ID:          id,
			Title:       id,
			SessionType: `{"type":"local"}`,
			Kind:        "local",
			Status:      "running",
			CreatedAt:   base.Add(time.Duration(i) * 100 * time.Millisecond),
		}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}
	if _, err := repo.MarkEnded(ctx, "b", "error", "spawn failed"); err != nil {
		t.Fatal(err)
	}

	all, err := repo.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("List() order = %v", ids(all))
	}

	limited, err := repo.List(ctx, ListFilter{Limit: 2})
	if err != nil || len(limited) != 2 {
		t.Fatalf("List(limit) = %d, %v", len(limited), err)
	}

	failed, err := repo.List(ctx, ListFilter{Status: "error"})
	if err != nil {
		t.Fatalf("List(error) error = %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" || failed[0].Detail != "spawn failed" {
		t.Fatalf("List(error) = %#v", failed)
	}
}

func TestLogTailRepoLifecycle(t *testing.T) {
	database, _ := openTestDB(t)
	repo := NewLogTailRepo(database.SQL())
	ctx := context.Background()

	tail := &LogTail{ID: "t-1", LogGroupName: "/ecs/api", FilterPattern: "ERROR", Region: "eu-west-1", Status: "running"}
	if err := repo.Create(ctx, tail); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, msg := range []string{"throttled", "access denied"} {
		if ok, err := repo.RecordError(ctx, "t-1", msg); err != nil || !ok {
			t.Fatalf("RecordError() = %v, %v", ok, err)
		}
	}

	got, err := repo.Get(ctx, "t-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastError != "access denied" || got.ErrorCount != 2 || got.Status != "running" {
		t.Fatalf("Get() = %#v", got)
	}

	if ok, err := repo.MarkEnded(ctx, "t-1", "stopped"); err != nil || !ok {
		t.Fatalf("MarkEnded() = %v, %v", ok, err)
	}
	if ok, _ := repo.RecordError(ctx, "t-1", "after end"); ok {
		t.Fatal("RecordError() should ignore ended tails")
	}

	if err := repo.SetFinalStatus(ctx, "t-1", "error"); err != nil {
		t.Fatalf("SetFinalStatus() error = %v", err)
	}
	got, _ = repo.Get(ctx, "t-1")
	if got.Status != "error" || got.EndedAt == nil {
		t.Fatalf("Get() after final status = %#v", got)
	}

	list, err := repo.List(ctx, ListFilter{Status: "error"})
	if err != nil || len(list) != 1 {
		t.Fatalf("List(error) = %d, %v", len(list), err)
	}
}

func TestCreateRequiresID(t *testing.T) {
	database, _ := openTestDB(t)
	ctx := context.Background()
	if err := NewTerminalSessionRepo(database.SQL()).Create(ctx, &TerminalSession{}); err == nil {
		t.Fatal("terminal session without id should fail")
	}
	if err := NewLogTailRepo(database.SQL()).Create(ctx, &LogTail{}); err == nil {
		t.Fatal("log tail without id should fail")
	}
}

func ids(sessions []*TerminalSession) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}
