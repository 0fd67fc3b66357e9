package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "dealbot/pkg/logx"
)

func newTestStore(t *testing.T) (*fileStore, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "store")}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st.(*fileStore), dir
}

func TestMarkPublishedThenSeen(t *testing.T) {
	t.Parallel()
	st, _ := newTestStore(t)
	ctx := context.Background()

	seen, err := st.Seen(ctx, "B000TEST01")
	if err != nil || seen {
		t.Fatalf("Seen before mark = %v, %v; want false, nil", seen, err)
	}

	if err := st.MarkPublished(ctx, "b000test01"); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}

	// Lookups normalize case the same way marks do.
	seen, err = st.Seen(ctx, "B000TEST01")
	if err != nil || !seen {
		t.Fatalf("Seen after mark = %v, %v; want true, nil", seen, err)
	}
}

func TestCanPostCooldown(t *testing.T) {
	t.Parallel()
	st, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }

	if err := st.MarkPublished(ctx, "B000TEST02"); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}

	ok, err := st.CanPost(ctx, "B000TEST02", 24*time.Hour)
	if err != nil || ok {
		t.Fatalf("CanPost within cooldown = %v, %v; want false, nil", ok, err)
	}

	st.now = func() time.Time { return base.Add(24*time.Hour + time.Minute) }
	ok, err = st.CanPost(ctx, "B000TEST02", 24*time.Hour)
	if err != nil || !ok {
		t.Fatalf("CanPost past cooldown = %v, %v; want true, nil", ok, err)
	}

	// Unknown ASINs are always postable.
	ok, err = st.CanPost(ctx, "B000NEVER0", 24*time.Hour)
	if err != nil || !ok {
		t.Fatalf("CanPost unknown = %v, %v; want true, nil", ok, err)
	}
}

func TestResetClearsLedgerKeepsCursor(t *testing.T) {
	t.Parallel()
	st, _ := newTestStore(t)
	ctx := context.Background()

	if err := st.MarkPublished(ctx, "B000TEST03"); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	if err := st.SetCursor(ctx, 7); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}

	if err := st.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	seen, err := st.Seen(ctx, "B000TEST03")
	if err != nil || seen {
		t.Fatalf("Seen after reset = %v, %v; want false, nil", seen, err)
	}
	ok, err := st.CanPost(ctx, "B000TEST03", 24*time.Hour)
	if err != nil || !ok {
		t.Fatalf("CanPost after reset = %v, %v; want true, nil", ok, err)
	}
	cur, err := st.Cursor(ctx)
	if err != nil || cur != 7 {
		t.Fatalf("Cursor after reset = %d, %v; want 7, nil", cur, err)
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "store")
	ctx := context.Background()

	st1, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := st1.MarkPublished(ctx, "B000TEST04"); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	if err := st1.SetCursor(ctx, 3); err != nil {
		t.Fatalf("SetCursor: %v", err)
	}
	if err := st1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	seen, err := st2.Seen(ctx, "B000TEST04")
	if err != nil || !seen {
		t.Fatalf("Seen after reopen = %v, %v; want true, nil", seen, err)
	}
	ok, err := st2.CanPost(ctx, "B000TEST04", 24*time.Hour)
	if err != nil || ok {
		t.Fatalf("CanPost after reopen = %v, %v; want false, nil", ok, err)
	}
	cur, err := st2.Cursor(ctx)
	if err != nil || cur != 3 {
		t.Fatalf("Cursor after reopen = %d, %v; want 3, nil", cur, err)
	}
}

func TestCursorCorruptFallsBackToZero(t *testing.T) {
	t.Parallel()
	st, _ := newTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		body string
	}{
		{"garbage", "not-a-number\n"},
		{"negative", "-4"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := os.WriteFile(st.cursorPath, []byte(tc.body), 0o600); err != nil {
				t.Fatalf("write cursor: %v", err)
			}
			v, err := st.Cursor(ctx)
			if err != nil || v != 0 {
				t.Fatalf("Cursor = %d, %v; want 0, nil", v, err)
			}
		})
	}
}

func TestLoadSkipsCorruptLogLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "store")
	log := path + ".published.log"
	body := "B000GOOD01;2026-03-02T12:00:00Z\nmalformed line\nB000GOOD02;not-a-time\n"
	if err := os.WriteFile(log, []byte(body), 0o600); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	fs := st.(*fileStore)
	if _, ok := fs.lastAt["B000GOOD01"]; !ok {
		t.Fatal("valid log line was not loaded")
	}
	if _, ok := fs.lastAt["B000GOOD02"]; ok {
		t.Fatal("line with bad timestamp should be skipped")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "bolt", Path: "x"}, logx.Nop())
	if err == nil {
		t.Fatal("want error for unknown driver")
	}
}
