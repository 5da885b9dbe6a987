package state

import (
	"os"
	"path/filepath"
	"time"

	logx "staywatch/pkg/logx"
)

// Store reads and writes the state file.
//
// It is NOT safe for concurrent use; the supervisor loop is the only caller
// (single-owner model). Save always writes the complete state to a temp file
// and renames it into place so a crash mid-write cannot leave a half-updated
// file.
type Store struct {
	path string
	log  logx.Logger

	// dailyHour/dailyMinute fill in the time-of-day when migrating the
	// legacy date-only field.
	dailyHour   int
	dailyMinute int
}

func NewStore(path string, dailyHour, dailyMinute int, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log, dailyHour: dailyHour, dailyMinute: dailyMinute}
}

func (st *Store) Path() string { return st.path }

// Load reads the state file. It fails soft: a missing or unreadable file
// yields the zero State, never an error. Corruption costs only the
// unreadable record; the caller re-initializes deadlines from the clock.
//
// If the file carries only the legacy date-only field, it is migrated by
// combining the date with the configured daily time-of-day and the upgraded
// state is written back immediately. Once the modern field exists the legacy
// field is ignored even if still present.
func (st *Store) Load() State {
	b, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.log.Warn("state file unreadable; starting empty", logx.String("path", st.path), logx.Err(err))
		}
		return State{}
	}

	s, legacy, err := unmarshal(b)
	if err != nil {
		st.log.Warn("state file corrupt; starting empty", logx.String("path", st.path), logx.Err(err))
		return State{}
	}

	if legacy != "" && s.LastSuccessfulRun.IsZero() {
		day, perr := parseLegacyDate(legacy)
		if perr != nil {
			st.log.Warn("legacy state field ignored", logx.Err(perr))
			return s
		}
		s.LastSuccessfulRun = time.Date(day.Year(), day.Month(), day.Day(), st.dailyHour, st.dailyMinute, 0, 0, time.Local)
		st.log.Info("migrated legacy last_run_date",
			logx.String("date", legacy),
			logx.Time("last_successful_run", s.LastSuccessfulRun),
		)
		// Persist the upgrade so migration runs at most once.
		if err := st.Save(s); err != nil {
			st.log.Warn("state migration save failed", logx.Err(err))
		}
	}
	return s
}

// Save atomically replaces the state file with the full given state.
func (st *Store) Save(s State) error {
	b, err := s.marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(st.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(b)
	if werr == nil {
		werr = tmp.Sync()
	}
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmpName)
		if werr != nil {
			return werr
		}
		return cerr
	}

	if err := os.Rename(tmpName, st.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
