package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"convertmcp/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st := NewSQLiteStore(filepath.Join(t.TempDir(), "journal", "convertmcp.sqlite"))
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return st
}

func TestSQLiteStore_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.UnixMilli(1_700_000_000_000)
	ok := model.Invocation{
		ID:        "a",
		Tool:      model.ToolConvertFile,
		FilePath:  "/tmp/a.txt",
		ExtOut:    "pdf",
		Outcome:   model.OutcomeOK,
		Message:   "/tmp/a.txt.converted.pdf",
		StartedAt: base,
		Duration:  1500 * time.Millisecond,
	}
	failed := model.Invocation{
		ID:        "b",
		Tool:      model.ToolDetectFileType,
		FilePath:  "/tmp/missing",
		Outcome:   model.OutcomeError,
		ErrorKind: model.KindInput,
		Message:   "File not found (use the absolute file path): /tmp/missing",
		StartedAt: base.Add(time.Second),
		Duration:  2 * time.Millisecond,
	}
	for _, inv := range []model.Invocation{ok, failed} {
		if err := st.Record(ctx, inv); err != nil {
			t.Fatalf("Record(%s) failed: %v", inv.ID, err)
		}
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 invocations, got %#v", got)
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("expected newest first, got %s,%s", got[0].ID, got[1].ID)
	}
	if got[0].ErrorKind != model.KindInput || got[0].Outcome != model.OutcomeError {
		t.Fatalf("unexpected failed row: %#v", got[0])
	}
	if !got[1].StartedAt.Equal(base) || got[1].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected timing: %v %v", got[1].StartedAt, got[1].Duration)
	}
	if got[1].ExtOut != "pdf" || got[1].Message != ok.Message {
		t.Fatalf("unexpected ok row: %#v", got[1])
	}
}

func TestSQLiteStore_RecentLimit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < DefaultRecentLimit+5; i++ {
		if err := st.Record(ctx, model.Invocation{
			ID:        fmt.Sprintf("inv-%02d", i),
			Tool:      model.ToolDetectFileType,
			Outcome:   model.OutcomeOK,
			StartedAt: base.Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := st.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != fmt.Sprintf("inv-%02d", DefaultRecentLimit+4) {
		t.Fatalf("unexpected limited result: %#v", got)
	}

	got, err = st.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != DefaultRecentLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultRecentLimit, len(got))
	}
}

func TestSQLiteStore_RecordRequiresIDAndTool(t *testing.T) {
	st := newTestStore(t)
	if err := st.Record(context.Background(), model.Invocation{Tool: model.ToolConvertFile}); err == nil {
		t.Fatal("expected error for empty id")
	}
	if err := st.Record(context.Background(), model.Invocation{ID: "x", Tool: "  "}); err == nil {
		t.Fatal("expected error for empty tool")
	}
}

func TestSQLiteStore_RecordReplacesSameID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	inv := model.Invocation{ID: "same", Tool: model.ToolConvertFile, Outcome: model.OutcomeOK, StartedAt: time.UnixMilli(1)}
	if err := st.Record(ctx, inv); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	inv.Outcome = model.OutcomeError
	inv.Message = "later"
	if err := st.Record(ctx, inv); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || got[0].Outcome != model.OutcomeError || got[0].Message != "later" {
		t.Fatalf("unexpected rows: %#v", got)
	}
}

func TestSQLiteStore_LazyInitAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.sqlite")

	st := NewSQLiteStore(path)
	if err := st.Record(ctx, model.Invocation{ID: "1", Tool: model.ToolDetectFileType, StartedAt: time.UnixMilli(5)}); err != nil {
		t.Fatalf("Record without Init failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	reopened := NewSQLiteStore(path)
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || got[0].Outcome != model.OutcomeOK {
		t.Fatalf("expected persisted row with default outcome, got %#v", got)
	}
}

func TestSQLiteStore_ConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- st.Record(ctx, model.Invocation{
				ID:        fmt.Sprintf("c-%d", i),
				Tool:      model.ToolConvertFile,
				Outcome:   model.OutcomeOK,
				StartedAt: time.UnixMilli(int64(i)),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Record failed: %v", err)
		}
	}

	got, err := st.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 16 {
		t.Fatalf("expected 16 rows, got %d", len(got))
	}
}

func TestSQLiteStore_SchemaIndex(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	db, err := st.ensureDB(ctx)
	if err != nil {
		t.Fatalf("ensureDB failed: %v", err)
	}
	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='index' AND name='idx_invocations_started'`).Scan(&name)
	if err != nil {
		t.Fatalf("expected started index: %v", err)
	}
}

func TestSQLiteStore_InitRequiresPath(t *testing.T) {
	if err := NewSQLiteStore(" ").Init(context.Background()); err == nil {
		t.Fatal("expected error for empty path")
	}
}
