// Package repositories provides persistence layer implementations for all model types.
//
// Each repository implements models.Repository[T] for a specific entity type,
// handling CRUD operations, soft deletes, and sequence generation.
//
// [SyncRunRepository] doubles as the engine's history recorder and
// [FileStateRepository] backs the file-state cache that lets repeat transfers
// skip unchanged files.
package repositories
