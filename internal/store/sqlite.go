package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/models"
)

// SQLiteStore implements HistoryStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the history database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One final consensus per day; re-runs replace the row
	CREATE TABLE IF NOT EXISTS consensus_history (
		date TEXT PRIMARY KEY,
		run_id TEXT,
		timestamp TEXT NOT NULL,
		score REAL NOT NULL,
		action TEXT NOT NULL,
		emoji TEXT,
		agreement_level REAL NOT NULL,
		majority_action TEXT,
		risk_override INTEGER DEFAULT 0,
		original_action TEXT,
		voters INTEGER NOT NULL,
		record TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Risk flags that fired, for trend queries
	CREATE TABLE IF NOT EXISTS risk_flag_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		flag TEXT NOT NULL,
		value REAL NOT NULL,
		threshold REAL NOT NULL,
		FOREIGN KEY (date) REFERENCES consensus_history(date) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_risk_flag_history_date ON risk_flag_history(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveConsensus archives c, replacing any record for the same date.
func (s *SQLiteStore) SaveConsensus(ctx context.Context, c *models.Consensus) error {
	if c == nil || c.Date == "" {
		return apperr.NewValidationError("date", "", "consensus must have a date")
	}

	record, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode consensus: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO consensus_history
			(date, run_id, timestamp, score, action, emoji, agreement_level, majority_action,
			 risk_override, original_action, voters, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Date, c.RunID, c.Timestamp, c.Score, c.Action, c.Emoji, c.AgreementLevel, c.MajorityAction,
		boolToInt(c.RiskOverride), c.OriginalAction, len(c.AgentVotes), string(record))
	if err != nil {
		return fmt.Errorf("%w: failed to save consensus: %v", apperr.ErrDatabaseError, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM risk_flag_history WHERE date = ?`, c.Date); err != nil {
		return fmt.Errorf("%w: failed to clear risk flags: %v", apperr.ErrDatabaseError, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risk_flag_history (date, flag, value, threshold) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range c.RiskFlags {
		if _, err := stmt.ExecContext(ctx, c.Date, f.Flag, f.Value, f.Threshold); err != nil {
			return fmt.Errorf("%w: failed to insert risk flag: %v", apperr.ErrDatabaseError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetConsensus returns the archived record for date.
func (s *SQLiteStore) GetConsensus(ctx context.Context, date string) (*models.Consensus, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `
		SELECT record FROM consensus_history WHERE date = ?
	`, date).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, apperr.NewDataError("consensus history", date, "not archived", apperr.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query consensus: %v", apperr.ErrDatabaseError, err)
	}

	var c models.Consensus
	if err := json.Unmarshal([]byte(record), &c); err != nil {
		return nil, fmt.Errorf("failed to decode consensus: %w", err)
	}
	return &c, nil
}

// ListConsensus returns the most recent days first. A non-positive limit
// returns every day.
func (s *SQLiteStore) ListConsensus(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `
		SELECT date, COALESCE(run_id, ''), timestamp, score, action, COALESCE(emoji, ''),
		       agreement_level, risk_override, voters
		FROM consensus_history
		ORDER BY date DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query history: %v", apperr.ErrDatabaseError, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var override int
		if err := rows.Scan(&e.Date, &e.RunID, &e.Timestamp, &e.Score, &e.Action, &e.Emoji,
			&e.AgreementLevel, &override, &e.Voters); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.RiskOverride = override != 0
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// RiskFlagCounts returns how often each risk flag fired across the archive.
func (s *SQLiteStore) RiskFlagCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flag, COUNT(*) FROM risk_flag_history GROUP BY flag
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query risk flags: %v", apperr.ErrDatabaseError, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var flag string
		var n int
		if err := rows.Scan(&flag, &n); err != nil {
			return nil, fmt.Errorf("failed to scan risk flag: %w", err)
		}
		counts[flag] = n
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
