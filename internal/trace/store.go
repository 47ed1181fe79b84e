package trace

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxTraces = 100

// Store persists pipeline trace data to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL trace database at connStr.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureTrace inserts the trace row if it does not exist yet and prunes old traces.
func (s *Store) EnsureTrace(id, metadata string) error {
	_, err := s.db.Exec(
		`INSERT INTO traces (id, metadata, started_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		id, metadata, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM traces WHERE id NOT IN (SELECT id FROM traces ORDER BY started_at DESC LIMIT $1)`,
		maxTraces,
	)
	return err
}

// CreateRun inserts a new run.
func (s *Store) CreateRun(id, traceID string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, trace_id, started_at, status) VALUES ($1, $2, $3, 'running')`,
		id, traceID, time.Now().UTC(),
	)
	return err
}

// FinishRun sets the run's final fields. Duration is derived from started_at.
func (s *Store) FinishRun(id, transcript, response, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs
		 SET duration_ms = EXTRACT(EPOCH FROM (now() - started_at)) * 1000,
		     transcript = $1, response = $2, status = $3
		 WHERE id = $4`,
		transcript, response, status, id,
	)
	return err
}

// CreateSpan inserts a span.
func (s *Store) CreateSpan(sp Span) error {
	_, err := s.db.Exec(
		`INSERT INTO spans (id, run_id, name, started_at, duration_ms, input, output, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sp.ID, sp.RunID, sp.Name, sp.StartedAt.UTC(),
		sp.DurationMs, sp.Input, sp.Output, sp.Status, sp.Error,
	)
	return err
}

// ListTraces returns traces ordered newest first, with run counts.
func (s *Store) ListTraces(limit, offset int) ([]Trace, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM traces`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT t.id, t.metadata, t.started_at, COUNT(r.id) as run_count
		FROM traces t
		LEFT JOIN runs r ON r.trace_id = t.id
		GROUP BY t.id
		ORDER BY t.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var traces []Trace
	for rows.Next() {
		var t Trace
		if err = rows.Scan(&t.ID, &t.Metadata, &t.StartedAt, &t.RunCount); err != nil {
			return nil, 0, err
		}
		traces = append(traces, t)
	}
	return traces, total, rows.Err()
}

// GetTrace returns a single trace with its runs.
func (s *Store) GetTrace(id string) (*Trace, []Run, error) {
	var t Trace
	err := s.db.QueryRow(
		`SELECT id, metadata, started_at FROM traces WHERE id = $1`, id,
	).Scan(&t.ID, &t.Metadata, &t.StartedAt)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(`
		SELECT r.id, r.trace_id, r.started_at, r.duration_ms, r.transcript, r.response, r.status,
		       COUNT(sp.id) as span_count
		FROM runs r
		LEFT JOIN spans sp ON sp.run_id = r.id
		WHERE r.trace_id = $1
		GROUP BY r.id
		ORDER BY r.started_at ASC
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err = rows.Scan(&r.ID, &r.TraceID, &r.StartedAt, &r.DurationMs, &r.Transcript, &r.Response, &r.Status, &r.SpanCount); err != nil {
			return nil, nil, err
		}
		runs = append(runs, r)
	}
	return &t, runs, rows.Err()
}

// GetRun returns a single run with its spans.
func (s *Store) GetRun(traceID, runID string) (*Run, []Span, error) {
	var r Run
	err := s.db.QueryRow(
		`SELECT id, trace_id, started_at, duration_ms, transcript, response, status FROM runs WHERE id = $1 AND trace_id = $2`,
		runID, traceID,
	).Scan(&r.ID, &r.TraceID, &r.StartedAt, &r.DurationMs, &r.Transcript, &r.Response, &r.Status)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, name, started_at, duration_ms, input, output, status, error_msg FROM spans WHERE run_id = $1 ORDER BY started_at ASC`,
		runID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		var sp Span
		if err = rows.Scan(&sp.ID, &sp.RunID, &sp.Name, &sp.StartedAt, &sp.DurationMs, &sp.Input, &sp.Output, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	return &r, spans, rows.Err()
}
