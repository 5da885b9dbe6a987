// Package history keeps a bounded sqlite log of run attempts, fed from the
// event bus. It is observability bookkeeping only; the supervisor never reads
// it back for scheduling decisions.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"staywatch/internal/eventbus"
	logx "staywatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// RunRecord is one job attempt as published on the event bus.
type RunRecord struct {
	Cadence    string    `json:"cadence"`
	Source     string    `json:"source"` // "schedule", "manual", "startup"
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	Artifacts  []string  `json:"artifacts,omitempty"`
}

type Config struct {
	Path        string
	BusyTimeout time.Duration
	Keep        int // retained rows; default 500
}

type Service struct {
	db   *sql.DB
	log  logx.Logger
	keep int
}

func Open(cfg Config, log logx.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history: path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 500
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Service{db: db, log: log, keep: cfg.Keep}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one run attempt and prunes old rows past the retention bound.
func (s *Service) Record(ctx context.Context, r RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (cadence, source, started_at, finished_at, ok, error, artifacts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Cadence, r.Source,
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		boolToInt(r.OK), r.Error, strings.Join(r.Artifacts, "\n"),
	)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, s.keep)
	return err
}

// Recent returns the latest n run attempts, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]RunRecord, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cadence, source, started_at, finished_at, ok, error, artifacts
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		var (
			r                  RunRecord
			started, finished  int64
			okInt              int
			artifacts, errText string
		)
		if err := rows.Scan(&r.Cadence, &r.Source, &started, &finished, &okInt, &errText, &artifacts); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		r.OK = okInt != 0
		r.Error = errText
		if artifacts != "" {
			r.Artifacts = strings.Split(artifacts, "\n")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run subscribes to run.finished events and records them until ctx ends.
func (s *Service) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(32)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if ev.Type != eventbus.TypeRunFinished {
				continue
			}
			rec, ok := ev.Data.(RunRecord)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Record(wctx, rec); err != nil {
				s.log.Warn("run history write failed", logx.Err(err))
			}
			cancel()
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
