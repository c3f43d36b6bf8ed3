package command

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"nrgchamp/homectl/internal/clock"
)

// IdempotencyWindow bounds how far back Execute looks for a matching
// prior command.
const IdempotencyWindow = 48 * time.Hour

// FreshnessWindow: a match created within this window is "still
// settling" and short-circuits to Skipped without even checking whether
// its effect is reflected in state yet.
const FreshnessWindow = 30 * time.Second

// CacheWindow is the rolling window per-target command lookups are
// served from before falling back to a direct DB query.
const CacheWindow = 48 * time.Hour

// ReflectedChecker asks the state store whether cmd's effect is already
// visible in current state; semantics are per command kind (§4.6).
type ReflectedChecker func(ctx context.Context, cmd Command) (bool, error)

// Store is the command log: append-only rows plus a per-target cache.
type Store struct {
	db *sql.DB

	cacheMu sync.Mutex
	cache   map[string]*targetCache
}

// targetCache holds the cached command rows for one target over a
// rolling window, plus a coalescing guard so concurrent misses on the
// same target issue a single DB query (try_get_with-style).
type targetCache struct {
	mu      sync.Mutex
	valid   bool
	rows    []Execution
	since   clock.DateTime
	loading *loadFuture
}

type loadFuture struct {
	done  chan struct{}
	rows  []Execution
	err   error
}

// Open runs this package's migration against a shared *sql.DB (typically
// the same file statestore.Open returned, so one process owns one
// sqlite file).
func Open(db *sql.DB) (*Store, error) {
	s := &Store{db: db, cache: make(map[string]*targetCache)}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS commands (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			command        TEXT NOT NULL,
			target_key     TEXT NOT NULL,
			created        INTEGER NOT NULL,
			status         TEXT NOT NULL,
			error          TEXT,
			source_type    TEXT NOT NULL,
			source_id      TEXT NOT NULL,
			correlation_id TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate commands: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_commands_target_created ON commands(target_key, created DESC)`)
	if err != nil {
		return fmt.Errorf("migrate commands index: %w", err)
	}
	return nil
}

// Execute performs the idempotency-and-freshness check and either skips
// or appends a new Pending command.
func (s *Store) Execute(ctx context.Context, cmd Command, source Source, correlationID string, reflected ReflectedChecker) (Result, error) {
	now := clock.Now()
	target := cmd.Target()

	match, found, err := s.latestMatching(ctx, target, source, cmd, now.Add(clock.Hours(-int64(IdempotencyWindow/time.Hour))))
	if err != nil {
		return "", fmt.Errorf("lookup latest matching command: %w", err)
	}

	if found && now.Sub(match.Created).Std() < FreshnessWindow {
		return Skipped, nil
	}

	if found {
		isReflected, err := reflected(ctx, cmd)
		if err != nil {
			return "", fmt.Errorf("check reflected-in-state: %w", err)
		}
		if isReflected {
			return Skipped, nil
		}
	}

	if err := s.insert(ctx, cmd, target, Pending, source, correlationID, now); err != nil {
		return "", err
	}
	s.invalidate(target.Key())
	return Triggered, nil
}

func (s *Store) insert(ctx context.Context, cmd Command, target Target, state State, source Source, correlationID string, created clock.DateTime) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands(command, target_key, created, status, source_type, source_id, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(payload), target.Key(), created.Time().UnixMicro(), string(state), source.Kind, source.Key, correlationID)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

func (s *Store) latestMatching(ctx context.Context, target Target, source Source, cmd Command, since clock.DateTime) (Execution, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, created, status, error, source_type, source_id, correlation_id
		FROM commands
		WHERE target_key = ? AND source_type = ? AND source_id = ? AND created >= ?
		ORDER BY created DESC
	`, target.Key(), source.Kind, source.Key, since.Time().UnixMicro())
	if err != nil {
		return Execution{}, false, err
	}
	defer rows.Close()

	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return Execution{}, false, err
		}
		if Equal(exec.Command, cmd) {
			return exec, true, nil
		}
	}
	return Execution{}, false, rows.Err()
}

// GetCommandForProcessing claims one pending row (newest first), marking
// it InProgress and every other Pending row sharing the same target as
// Error("superseded by <id>") in the same transaction.
func (s *Store) GetCommandForProcessing(ctx context.Context) (*Execution, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, command, created, status, error, source_type, source_id, correlation_id
		FROM commands WHERE status = ? ORDER BY created DESC LIMIT 1
	`, string(Pending))

	raw, err := scanRaw(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim command: %w", err)
	}

	var exec Execution
	exec.ID, exec.Created, exec.State = raw.id, clock.FromTime(time.UnixMicro(raw.created).UTC()), State(raw.status)
	exec.Source = Source{Kind: raw.sourceType, Key: raw.sourceID}
	exec.CorrelationID = raw.correlationID

	if err := json.Unmarshal([]byte(raw.command), &exec.Command); err != nil {
		msg := fmt.Sprintf("deserialize failed: %v", err)
		if _, uerr := tx.ExecContext(ctx, `UPDATE commands SET status = ?, error = ? WHERE id = ?`, string(Error), msg, raw.id); uerr != nil {
			return nil, fmt.Errorf("mark undecodable command error: %w", uerr)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit undecodable mark: %w", err)
		}
		return nil, nil
	}

	target := exec.Command.Target()

	if _, err := tx.ExecContext(ctx, `UPDATE commands SET status = ? WHERE id = ?`, string(InProgress), exec.ID); err != nil {
		return nil, fmt.Errorf("mark in_progress: %w", err)
	}

	supersededMsg := fmt.Sprintf("superseded by %d", exec.ID)
	if _, err := tx.ExecContext(ctx, `
		UPDATE commands SET status = ?, error = ?
		WHERE status = ? AND target_key = ? AND id != ?
	`, string(Error), supersededMsg, string(Pending), target.Key(), exec.ID); err != nil {
		return nil, fmt.Errorf("mark superseded: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	s.invalidate(target.Key())
	exec.State = InProgress
	return &exec, nil
}

func (s *Store) SetCommandStateSuccess(ctx context.Context, id int64) error {
	return s.setTerminal(ctx, id, Success, "")
}

func (s *Store) SetCommandStateError(ctx context.Context, id int64, msg string) error {
	return s.setTerminal(ctx, id, Error, msg)
}

func (s *Store) setTerminal(ctx context.Context, id int64, state State, msg string) error {
	var target Target
	var payload string
	if err := s.db.QueryRowContext(ctx, `SELECT command FROM commands WHERE id = ?`, id).Scan(&payload); err == nil {
		var cmd Command
		if err := json.Unmarshal([]byte(payload), &cmd); err == nil {
			target = cmd.Target()
		}
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE commands SET status = ?, error = ? WHERE id = ?`, string(state), msg, id); err != nil {
		return fmt.Errorf("set command %d state %s: %w", id, state, err)
	}
	s.invalidate(target.Key())
	return nil
}

type rawRow struct {
	id                        int64
	command, status           string
	created                   int64
	errMsg                    sql.NullString
	sourceType, sourceID      string
	correlationID             string
}

func scanRaw(row interface{ Scan(...any) error }) (rawRow, error) {
	var r rawRow
	var corr sql.NullString
	if err := row.Scan(&r.id, &r.command, &r.created, &r.status, &r.errMsg, &r.sourceType, &r.sourceID, &corr); err != nil {
		return rawRow{}, err
	}
	r.correlationID = corr.String
	return r, nil
}

func scanExecution(row interface{ Scan(...any) error }) (Execution, error) {
	r, err := scanRaw(row)
	if err != nil {
		return Execution{}, err
	}
	var exec Execution
	if err := json.Unmarshal([]byte(r.command), &exec.Command); err != nil {
		return Execution{}, fmt.Errorf("decode stored command %d: %w", r.id, err)
	}
	exec.ID = r.id
	exec.Created = clock.FromTime(time.UnixMicro(r.created).UTC())
	exec.State = State(r.status)
	exec.ErrorMessage = r.errMsg.String
	exec.Source = Source{Kind: r.sourceType, Key: r.sourceID}
	exec.CorrelationID = r.correlationID
	return exec, nil
}
