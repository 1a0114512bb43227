// Package models defines domain entities and persistence interfaces for the shuffleport sync tool.
//
// The package contains two categories of types:
//
// 1. Persistent Entities: Database-backed models with full lifecycle management
//   - [SyncRun] : One orchestrated transfer onto a device, with counters and status
//   - [FileState] : Cached state of a file copied to a device, used to skip unchanged files
//
// 2. Interfaces
//   - [Model] : ID generation, timestamps, validation, soft delete support
//   - [Repository] : Standard CRUD operations for database access
package models
