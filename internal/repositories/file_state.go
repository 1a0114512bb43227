package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ipodkit/shuffleport/internal/models"
	"github.com/ipodkit/shuffleport/internal/shared"
)

// FileStateRepository implements models.Repository[*models.FileState] and the
// engine's file-state cache. Rows are keyed by (device_path, rel_path) with
// the rel path normalized, so a case-changed FAT filename still hits the same
// record.
type FileStateRepository struct {
	db *sql.DB
}

// NewFileStateRepository creates a new FileStateRepository with the given database connection
func NewFileStateRepository(db *sql.DB) *FileStateRepository {
	return &FileStateRepository{db: db}
}

// Lookup returns the cached state for a device file, or (nil, nil) when no
// record exists.
func (r *FileStateRepository) Lookup(devicePath, relPath string) (*models.FileState, error) {
	query := `
		SELECT id, sequence, device_path, rel_path, size, mod_time, checksum, synced_at, created_at, updated_at, deleted_at
		FROM file_states
		WHERE device_path = ? AND rel_path = ? AND deleted_at IS NULL
	`

	state, err := scanFileState(r.db.QueryRow(query, devicePath, shared.NormalizePathKey(relPath)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return state, err
}

// Remember upserts the cached state after a successful copy.
func (r *FileStateRepository) Remember(devicePath, relPath string, size int64, modTime time.Time, checksum string) error {
	existing, err := r.Lookup(devicePath, relPath)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.Refresh(size, modTime, checksum)
		return r.Update(existing)
	}

	state := models.NewFileState(0, devicePath, shared.NormalizePathKey(relPath), size, modTime, checksum)
	return r.Create(state)
}

// Forget hard-deletes the cached state for a device file. Pruned files leave
// no tombstone so a later re-copy starts clean.
func (r *FileStateRepository) Forget(devicePath, relPath string) error {
	_, err := r.db.Exec(
		`DELETE FROM file_states WHERE device_path = ? AND rel_path = ?`,
		devicePath, shared.NormalizePathKey(relPath),
	)
	if err != nil {
		return fmt.Errorf("failed to forget file state: %w", err)
	}
	return nil
}

// Create inserts a new [models.FileState] into the database with generated ID and sequence
func (r *FileStateRepository) Create(state *models.FileState) error {
	sequence, err := NextSequence(r.db, "file_states")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	state.SetSequence(sequence)
	state.SetID(shared.GenerateID())

	if err := state.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO file_states (id, sequence, device_path, rel_path, size, mod_time, checksum, synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		state.ID(),
		state.Sequence(),
		state.DevicePath(),
		state.RelPath(),
		state.Size(),
		state.ModTime().Unix(),
		state.Checksum(),
		state.SyncedAt(),
		state.CreatedAt(),
		state.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert file state: %w", err)
	}

	return nil
}

// Get retrieves a file state by ID, excluding soft-deleted records
func (r *FileStateRepository) Get(id string) (*models.FileState, error) {
	query := `
		SELECT id, sequence, device_path, rel_path, size, mod_time, checksum, synced_at, created_at, updated_at, deleted_at
		FROM file_states
		WHERE id = ? AND deleted_at IS NULL
	`

	state, err := scanFileState(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file state not found")
	}
	return state, err
}

// Update modifies an existing file state in the database
func (r *FileStateRepository) Update(state *models.FileState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	state.SetUpdatedAt(now)

	query := `
		UPDATE file_states
		SET size = ?, mod_time = ?, checksum = ?, synced_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		state.Size(),
		state.ModTime().Unix(),
		state.Checksum(),
		state.SyncedAt(),
		now,
		state.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update file state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file state not found or already deleted: %s", state.ID())
	}

	return nil
}

// Delete soft-deletes a file state by ID
func (r *FileStateRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE file_states
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete file state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("file state not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves file states matching the given criteria, excluding
// soft-deleted records. Supported criteria: "device" (mount path).
func (r *FileStateRepository) List(criteria map[string]any) ([]*models.FileState, error) {
	query := `
		SELECT id, sequence, device_path, rel_path, size, mod_time, checksum, synced_at, created_at, updated_at, deleted_at
		FROM file_states
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if dev, ok := criteria["device"].(string); ok && dev != "" {
		query += " AND device_path = ?"
		args = append(args, dev)
	}

	query += " ORDER BY rel_path ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query file states: %w", err)
	}
	defer rows.Close()

	var states []*models.FileState
	for rows.Next() {
		state, err := scanFileStateRow(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return states, nil
}

// PurgeDevice removes every cached record for a device. Used when a device is
// re-formatted or its cache is suspected stale.
func (r *FileStateRepository) PurgeDevice(devicePath string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM file_states WHERE device_path = ?`, devicePath)
	if err != nil {
		return 0, fmt.Errorf("failed to purge file states: %w", err)
	}
	return result.RowsAffected()
}

func scanFileState(row *sql.Row) (*models.FileState, error) {
	return scanFileStateFrom(row.Scan)
}

func scanFileStateRow(rows *sql.Rows) (*models.FileState, error) {
	return scanFileStateFrom(rows.Scan)
}

func scanFileStateFrom(scan func(...any) error) (*models.FileState, error) {
	var (
		id         string
		sequence   int
		devicePath string
		relPath    string
		size       int64
		modUnix    int64
		checksum   string
		syncedAt   time.Time
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := scan(&id, &sequence, &devicePath, &relPath, &size, &modUnix, &checksum, &syncedAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file state: %w", err)
	}

	state := models.NewFileState(sequence, devicePath, relPath, size, time.Unix(modUnix, 0), checksum)
	state.SetID(id)
	state.SetSyncedAt(syncedAt)
	state.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		state.SetDeletedAt(&deletedAt.Time)
	}

	return state, nil
}
