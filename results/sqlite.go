package results

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/justapithecus/flanker/policy"
	"github.com/justapithecus/flanker/types"
)

// SQLiteSink appends outcomes to a SQLite database shared by every session
// of a study. Safe for concurrent use.
type SQLiteSink struct {
	db      *sql.DB
	mu      sync.Mutex
	session *types.Session
	seq     int64
}

// OpenSQLite opens (or creates) the database at path and registers the
// session. Uses WAL mode for file databases.
func OpenSQLite(ctx context.Context, path string, session *types.Session) (*SQLiteSink, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteSink{db: db, session: session}
	if err := s.registerSession(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	connStr := path
	if path == ":memory:" {
		// shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		participant TEXT NOT NULL,
		sex TEXT NOT NULL,
		age INTEGER NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		seq INTEGER NOT NULL,
		phase TEXT NOT NULL,
		trial INTEGER NOT NULL,
		stimulus_id TEXT NOT NULL,
		category TEXT NOT NULL,
		duration_label TEXT NOT NULL,
		key TEXT NOT NULL,
		elapsed_ms INTEGER,
		correct INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_phase ON outcomes(session_id, phase);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteSink) registerSession(ctx context.Context) error {
	p := s.session.Participant
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, participant, sex, age, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.session.ID, p.Code(), p.Sex, p.Age, s.session.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

// WriteOutcomes implements policy.Sink. The batch is written in one
// transaction.
func (s *SQLiteSink) WriteOutcomes(ctx context.Context, outcomes []types.TrialOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (
			session_id, seq, phase, trial, stimulus_id, category,
			duration_label, key, elapsed_ms, correct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, o := range outcomes {
		// training rows store NULL
		var elapsed sql.NullInt64
		elapsed.Int64, elapsed.Valid = o.ReportedElapsedMs()
		_, err := stmt.ExecContext(ctx,
			s.session.ID, s.seq+int64(i), string(o.Phase), o.Index, o.StimulusID,
			string(o.Category), o.DurationLabel, o.Response.Key, elapsed, o.Correct)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert outcome: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.seq += int64(len(outcomes))
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Verify SQLiteSink implements policy.Sink.
var _ policy.Sink = (*SQLiteSink)(nil)

// ReadSQLite returns the outcomes of a session in write order.
func ReadSQLite(ctx context.Context, path, sessionID string) ([]types.TrialOutcome, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return queryOutcomes(ctx, db, sessionID)
}

func queryOutcomes(ctx context.Context, db *sql.DB, sessionID string) ([]types.TrialOutcome, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT phase, trial, stimulus_id, category, duration_label, key, elapsed_ms, correct
		FROM outcomes WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []types.TrialOutcome
	for rows.Next() {
		var (
			o               types.TrialOutcome
			phase, category string
			elapsed         sql.NullInt64
		)
		if err := rows.Scan(&phase, &o.Index, &o.StimulusID, &category, &o.DurationLabel,
			&o.Response.Key, &elapsed, &o.Correct); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Response.ElapsedMs = types.ElapsedFromReport(o.Response.Key, elapsed.Int64, elapsed.Valid)
		o.Phase = types.Phase(phase)
		o.Category = types.Category(category)
		out = append(out, o)
	}
	return out, rows.Err()
}
