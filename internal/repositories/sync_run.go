package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ipodkit/shuffleport/internal/models"
	"github.com/ipodkit/shuffleport/internal/shared"
)

// SyncRunRepository implements models.Repository[*models.SyncRun].
//
// It also satisfies the engine's history recorder: Begin inserts a running
// record before the copy phase starts and Finish stamps the terminal status
// and counters afterwards.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Begin creates and persists a SyncRun in the running state.
func (r *SyncRunRepository) Begin(devicePath, sourcePath string) (*models.SyncRun, error) {
	run := models.NewSyncRun(0, devicePath, sourcePath)
	if err := r.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Finish transitions a run to its terminal status with final counters.
func (r *SyncRunRepository) Finish(run *models.SyncRun, status string, copied, skipped, failed, pruned int, bytesCopied int64) error {
	run.SetCounters(copied, skipped, failed, pruned, bytesCopied)
	run.Complete(status)
	return r.Update(run)
}

// Create inserts a new [models.SyncRun] into the database with generated ID and sequence
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetSequence(sequence)
	run.SetID(shared.GenerateID())

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO sync_runs (id, sequence, device_path, source_path, status, copied, skipped, failed, pruned, bytes_copied, started_at, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		run.Sequence(),
		run.DevicePath(),
		run.SourcePath(),
		run.Status(),
		run.Copied(),
		run.Skipped(),
		run.Failed(),
		run.Pruned(),
		run.BytesCopied(),
		run.StartedAt(),
		nullableTime(run.FinishedAt()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := `
		SELECT id, sequence, device_path, source_path, status, copied, skipped, failed, pruned, bytes_copied, started_at, finished_at, created_at, updated_at, deleted_at
		FROM sync_runs
		WHERE id = ? AND deleted_at IS NULL
	`

	return scanSyncRun(r.db.QueryRow(query, id))
}

// Update modifies an existing run in the database
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET status = ?, copied = ?, skipped = ?, failed = ?, pruned = ?, bytes_copied = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.Status(),
		run.Copied(),
		run.Skipped(),
		run.Failed(),
		run.Pruned(),
		run.BytesCopied(),
		nullableTime(run.FinishedAt()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found or already deleted: %s", run.ID())
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE sync_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves runs matching the given criteria, newest first, excluding
// soft-deleted runs. Supported criteria: "device" (mount path), "status",
// and "limit" (int).
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `
		SELECT id, sequence, device_path, source_path, status, copied, skipped, failed, pruned, bytes_copied, started_at, finished_at, created_at, updated_at, deleted_at
		FROM sync_runs
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if dev, ok := criteria["device"].(string); ok && dev != "" {
		query += " AND device_path = ?"
		args = append(args, dev)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func scanSyncRun(row *sql.Row) (*models.SyncRun, error) {
	run, err := scanSyncRunFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sync run not found")
	}
	return run, err
}

func scanSyncRunRow(rows *sql.Rows) (*models.SyncRun, error) {
	return scanSyncRunFrom(rows.Scan)
}

func scanSyncRunFrom(scan func(...any) error) (*models.SyncRun, error) {
	var (
		id          string
		sequence    int
		devicePath  string
		sourcePath  string
		status      string
		copied      int
		skipped     int
		failed      int
		pruned      int
		bytesCopied int64
		startedAt   time.Time
		finishedAt  sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := scan(&id, &sequence, &devicePath, &sourcePath, &status, &copied, &skipped, &failed, &pruned, &bytesCopied, &startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run := models.NewSyncRun(sequence, devicePath, sourcePath)
	run.SetID(id)
	run.SetStatus(status)
	run.SetCounters(copied, skipped, failed, pruned, bytesCopied)
	run.SetStartedAt(startedAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
