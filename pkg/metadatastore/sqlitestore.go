package metadatastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/justGiveMeOneThen/sentinel-ai-threat-detection/pkg/models"
)

// timeLayout has fixed-width fractions so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore provides SQLite-based persistence for training runs
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes, so the pool stays small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// In-memory databases cannot use WAL and report "memory"
	wantMode := "wal"
	if isMemoryPath(dbPath) {
		wantMode = "memory"
	}
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	if strings.ToLower(journalMode) != wantMode {
		db.Close()
		return nil, fmt.Errorf("unexpected journal mode: got %s, want %s", journalMode, wantMode)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func isMemoryPath(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a write that failed with SQLITE_BUSY, on top of the
// busy_timeout pragma
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "SQLITE_BUSY") {
			return err
		}
		// 10ms, 20ms, 40ms, ...
		time.Sleep(time.Duration(10*(1<<uint(i))) * time.Millisecond)
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		run_trigger TEXT NOT NULL,
		best_model TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_training_runs_started_at ON training_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_training_runs_status ON training_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or replaces a training run
func (s *SQLiteStore) SaveRun(run *models.TrainingRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid training run: %w", err)
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal training run: %w", err)
	}

	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(timeLayout)
	}

	query := `
		INSERT OR REPLACE INTO training_runs (id, status, run_trigger, best_model, started_at, completed_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			run.ID,
			string(run.Status),
			string(run.Trigger),
			string(run.BestModel),
			run.StartedAt.UTC().Format(timeLayout),
			completedAt,
			string(data),
		)
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save training run: %w", err)
	}
	return nil
}

// GetRun retrieves a training run by ID
func (s *SQLiteStore) GetRun(id string) (*models.TrainingRun, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM training_runs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("training run %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return decodeRun(data)
}

// ListRuns retrieves all training runs, newest first
func (s *SQLiteStore) ListRuns() ([]*models.TrainingRun, error) {
	rows, err := s.db.Query(`SELECT data FROM training_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.TrainingRun{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		run, err := decodeRun(data)
		if err != nil {
			// Skip rows written by an incompatible version
			continue
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started completed run
func (s *SQLiteStore) LatestRun() (*models.TrainingRun, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT data FROM training_runs WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		string(models.RunStatusCompleted),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("completed training run %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest training run: %w", err)
	}
	return decodeRun(data)
}

// DeleteRun removes a training run
func (s *SQLiteStore) DeleteRun(id string) error {
	var result sql.Result
	err := s.retryOnBusy(func() error {
		var execErr error
		result, execErr = s.db.Exec(`DELETE FROM training_runs WHERE id = ?`, id)
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to delete training run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("training run %w: %s", ErrNotFound, id)
	}
	return nil
}

func decodeRun(data string) (*models.TrainingRun, error) {
	var run models.TrainingRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal training run: %w", err)
	}
	return &run, nil
}
