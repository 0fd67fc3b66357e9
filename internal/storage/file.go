package storage

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	logx "dealbot/pkg/logx"
)

// fileStore is the dependency-free persistence backend.
//
// Files (all under <prefix>):
//   - <prefix>.published.list  one uppercase ASIN per line, append-only
//   - <prefix>.published.log   "ASIN;RFC3339" per line, append-only
//   - <prefix>.cursor          single integer, replaced atomically
//
// Appends are flushed and fsynced before MarkPublished returns, so a crash
// mid-write cannot silently lose a dedup record. Corrupt lines and a
// corrupt cursor are tolerated (skipped / treated as 0).
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	listPath   string
	logPath    string
	cursorPath string

	listFile *os.File
	logFile  *os.File

	seen   map[string]struct{}
	lastAt map[string]time.Time

	now func() time.Time
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	s := &fileStore{
		log:        log,
		listPath:   prefix + ".published.list",
		logPath:    prefix + ".published.log",
		cursorPath: prefix + ".cursor",
		seen:       map[string]struct{}{},
		lastAt:     map[string]time.Time{},
		now:        time.Now,
	}

	if err := s.loadList(); err != nil {
		return nil, err
	}
	if err := s.loadLog(); err != nil {
		return nil, err
	}

	lf, err := os.OpenFile(s.listPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, &PersistenceError{Op: "open list", Err: err}
	}
	gf, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = lf.Close()
		return nil, &PersistenceError{Op: "open log", Err: err}
	}
	s.listFile = lf
	s.logFile = gf
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.listFile != nil {
		err1 = s.listFile.Close()
		s.listFile = nil
	}
	if s.logFile != nil {
		err2 = s.logFile.Close()
		s.logFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) Seen(ctx context.Context, asin string) (bool, error) {
	_ = ctx
	asin = normalizeASIN(asin)
	s.mu.Lock()
	_, ok := s.seen[asin]
	s.mu.Unlock()
	return ok, nil
}

func (s *fileStore) CanPost(ctx context.Context, asin string, cooldown time.Duration) (bool, error) {
	_ = ctx
	asin = normalizeASIN(asin)
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.lastAt[asin]
	if !ok {
		return true, nil
	}
	return s.now().Sub(at) > cooldown, nil
}

func (s *fileStore) MarkPublished(ctx context.Context, asin string) error {
	_ = ctx
	asin = normalizeASIN(asin)
	if asin == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listFile == nil || s.logFile == nil {
		return &PersistenceError{Op: "mark", Err: errors.New("store closed")}
	}
	now := s.now().UTC()

	if err := appendSync(s.listFile, asin+"\n"); err != nil {
		return &PersistenceError{Op: "mark list", Err: err}
	}
	if err := appendSync(s.logFile, asin+";"+now.Format(time.RFC3339)+"\n"); err != nil {
		return &PersistenceError{Op: "mark log", Err: err}
	}

	s.seen[asin] = struct{}{}
	s.lastAt[asin] = now
	return nil
}

func (s *fileStore) Reset(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range []*os.File{s.listFile, s.logFile} {
		if f == nil {
			return &PersistenceError{Op: "reset", Err: errors.New("store closed")}
		}
		if err := f.Truncate(0); err != nil {
			return &PersistenceError{Op: "reset", Err: err}
		}
		if err := f.Sync(); err != nil {
			return &PersistenceError{Op: "reset", Err: err}
		}
	}
	s.seen = map[string]struct{}{}
	s.lastAt = map[string]time.Time{}
	s.log.Info("ledger reset")
	return nil
}

func (s *fileStore) Cursor(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.cursorPath)
	if err != nil {
		// Missing file is the initial state.
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || v < 0 {
		s.log.Warn("corrupt rotation cursor, falling back to 0", logx.String("path", s.cursorPath))
		return 0, nil
	}
	return v, nil
}

func (s *fileStore) SetCursor(ctx context.Context, v int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.cursorPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return &PersistenceError{Op: "cursor", Err: err}
	}
	if _, err := f.WriteString(strconv.Itoa(v)); err != nil {
		_ = f.Close()
		return &PersistenceError{Op: "cursor", Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &PersistenceError{Op: "cursor", Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistenceError{Op: "cursor", Err: err}
	}
	if err := os.Rename(tmp, s.cursorPath); err != nil {
		return &PersistenceError{Op: "cursor", Err: err}
	}
	return nil
}

func (s *fileStore) loadList() error {
	f, err := os.Open(s.listPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &PersistenceError{Op: "load list", Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		asin := normalizeASIN(sc.Text())
		if asin != "" {
			s.seen[asin] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return &PersistenceError{Op: "load list", Err: err}
	}
	return nil
}

func (s *fileStore) loadLog() error {
	f, err := os.Open(s.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &PersistenceError{Op: "load log", Err: err}
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		asin, ts, ok := strings.Cut(strings.TrimSpace(sc.Text()), ";")
		if !ok {
			continue
		}
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		asin = normalizeASIN(asin)
		if prev, ok := s.lastAt[asin]; !ok || at.After(prev) {
			s.lastAt[asin] = at
		}
	}
	if err := sc.Err(); err != nil {
		return &PersistenceError{Op: "load log", Err: err}
	}
	return nil
}

func appendSync(f *os.File, line string) error {
	if _, err := f.WriteString(line); err != nil {
		return err
	}
	return f.Sync()
}

func normalizeASIN(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
