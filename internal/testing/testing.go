// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/models"
	"github.com/ipodkit/shuffleport/internal/tasks"
)

// MockEngine is a test double for [tasks.SyncEngine]
type MockEngine struct {
	PlanResult  *tasks.Plan
	PlanErr     error
	RunResult   *tasks.RunResult
	RunErr      error
	AuditResult *tasks.AuditResult
	AuditErr    error

	PlanCalls  []tasks.PlanOpts
	RunCalls   []tasks.RunOpts
	AuditCalls []tasks.PlanOpts
}

var _ tasks.SyncEngine = (*MockEngine)(nil)

func (m *MockEngine) Plan(ctx context.Context, progress chan<- tasks.ProgressUpdate, opts tasks.PlanOpts) (*tasks.Plan, error) {
	m.PlanCalls = append(m.PlanCalls, opts)
	return m.PlanResult, m.PlanErr
}

func (m *MockEngine) Run(ctx context.Context, progress chan<- tasks.ProgressUpdate, plan *tasks.Plan, opts tasks.RunOpts) (*tasks.RunResult, error) {
	m.RunCalls = append(m.RunCalls, opts)
	return m.RunResult, m.RunErr
}

func (m *MockEngine) Audit(ctx context.Context, progress chan<- tasks.ProgressUpdate, opts tasks.PlanOpts) (*tasks.AuditResult, error) {
	m.AuditCalls = append(m.AuditCalls, opts)
	return m.AuditResult, m.AuditErr
}

// MemoryCacher is an in-memory [tasks.FileStateCacher]
type MemoryCacher struct {
	States map[string]*models.FileState
	Err    error
}

var _ tasks.FileStateCacher = (*MemoryCacher)(nil)

func NewMemoryCacher() *MemoryCacher {
	return &MemoryCacher{States: make(map[string]*models.FileState)}
}

func (c *MemoryCacher) key(devicePath, relPath string) string {
	return devicePath + "|" + relPath
}

func (c *MemoryCacher) Lookup(devicePath, relPath string) (*models.FileState, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.States[c.key(devicePath, relPath)], nil
}

func (c *MemoryCacher) Remember(devicePath, relPath string, size int64, modTime time.Time, checksum string) error {
	if c.Err != nil {
		return c.Err
	}
	c.States[c.key(devicePath, relPath)] = models.NewFileState(0, devicePath, relPath, size, modTime, checksum)
	return nil
}

func (c *MemoryCacher) Forget(devicePath, relPath string) error {
	if c.Err != nil {
		return c.Err
	}
	delete(c.States, c.key(devicePath, relPath))
	return nil
}

// MemoryRecorder is an in-memory [tasks.HistoryRecorder]
type MemoryRecorder struct {
	Runs     []*models.SyncRun
	BeginErr error
}

var _ tasks.HistoryRecorder = (*MemoryRecorder)(nil)

func (r *MemoryRecorder) Begin(devicePath, sourcePath string) (*models.SyncRun, error) {
	if r.BeginErr != nil {
		return nil, r.BeginErr
	}
	run := models.NewSyncRun(len(r.Runs)+1, devicePath, sourcePath)
	r.Runs = append(r.Runs, run)
	return run, nil
}

func (r *MemoryRecorder) Finish(run *models.SyncRun, status string, copied, skipped, failed, pruned int, bytesCopied int64) error {
	run.SetCounters(copied, skipped, failed, pruned, bytesCopied)
	run.Complete(status)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MakeDevice creates a temp directory shaped like an initialized device and
// returns its mount path.
func MakeDevice(t *testing.T) string {
	t.Helper()
	mount := t.TempDir()
	for _, dir := range []string{device.MusicDir, device.ITunesDir, device.PlaylistDir} {
		if err := os.MkdirAll(filepath.Join(mount, filepath.FromSlash(dir)), 0755); err != nil {
			t.Fatalf("Failed to create device layout: %v", err)
		}
	}
	return mount
}

// MustWriteFile writes content to path, creating parent directories.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileAbsent(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
