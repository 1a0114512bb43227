// package formatter provides functions to export device inventory reports to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/library"
	"github.com/ipodkit/shuffleport/internal/shared"
)

// ReportTrack is one audio file in a device report.
type ReportTrack struct {
	Rel     string    `json:"rel"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// DeviceReport is a point-in-time inventory of a mounted device.
type DeviceReport struct {
	Mount       string        `json:"mount"`
	Label       string        `json:"label,omitempty"`
	TotalBytes  uint64        `json:"total_bytes"`
	FreeBytes   uint64        `json:"free_bytes"`
	HasDatabase bool          `json:"has_database"`
	Tracks      []ReportTrack `json:"tracks"`
	Playlists   []string      `json:"playlists"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// TotalTrackBytes sums the sizes of all tracks in the report.
func (r *DeviceReport) TotalTrackBytes() int64 {
	var total int64
	for _, t := range r.Tracks {
		total += t.Size
	}
	return total
}

// BuildDeviceReport walks a validated volume and collects its music files and
// playlists. Tracks are sorted by relative path.
func BuildDeviceReport(vol *device.Volume) (*DeviceReport, error) {
	report := &DeviceReport{
		Mount:       vol.Mount,
		Label:       vol.Label,
		TotalBytes:  vol.TotalBytes,
		FreeBytes:   vol.FreeBytes,
		GeneratedAt: time.Now(),
	}

	if _, err := os.Stat(vol.DatabasePath()); err == nil {
		report.HasDatabase = true
	}

	musicPath := vol.MusicPath()
	if _, err := os.Stat(musicPath); err == nil {
		err := filepath.Walk(musicPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || strings.HasPrefix(info.Name(), ".") || !library.IsAudioFile(path) {
				return nil
			}
			rel, err := filepath.Rel(vol.Mount, path)
			if err != nil {
				return err
			}
			report.Tracks = append(report.Tracks, ReportTrack{
				Rel:     filepath.ToSlash(rel),
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk device music: %w", err)
		}
	}

	sort.Slice(report.Tracks, func(i, j int) bool {
		return report.Tracks[i].Rel < report.Tracks[j].Rel
	})

	playlistPath := filepath.Join(vol.Mount, device.PlaylistDir)
	if entries, err := os.ReadDir(playlistPath); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !library.IsPlaylistFile(entry.Name()) {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			report.Playlists = append(report.Playlists, name)
		}
	}

	return report, nil
}

// ExportToCSV converts a DeviceReport to CSV format with columns: Path, Size, Modified
func ExportToCSV(report *DeviceReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Path", "Size", "Modified"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range report.Tracks {
		record := []string{
			track.Rel,
			strconv.FormatInt(track.Size, 10),
			track.ModTime.Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a DeviceReport to Markdown format
func ExportToMarkdown(report *DeviceReport) ([]byte, error) {
	var buf bytes.Buffer

	title := report.Label
	if title == "" {
		title = report.Mount
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	buf.WriteString(fmt.Sprintf("**Mount**: %s\n", report.Mount))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d (%s)\n", len(report.Tracks), shared.HumanBytes(report.TotalTrackBytes())))
	buf.WriteString(fmt.Sprintf("**Free space**: %s\n", shared.HumanBytes(int64(report.FreeBytes))))
	buf.WriteString(fmt.Sprintf("**Database present**: %t\n\n", report.HasDatabase))

	if len(report.Playlists) > 0 {
		buf.WriteString("## Playlists\n\n")
		for _, name := range report.Playlists {
			buf.WriteString(fmt.Sprintf("- %s\n", name))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, track := range report.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, track.Rel, shared.HumanBytes(track.Size)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a DeviceReport to plain text format
func ExportToText(report *DeviceReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Device: %s\n", report.Mount))
	if report.Label != "" {
		buf.WriteString(fmt.Sprintf("Label: %s\n", report.Label))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n", len(report.Tracks)))
	buf.WriteString(fmt.Sprintf("Playlists: %d\n\n", len(report.Playlists)))

	for i, track := range report.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, track.Rel))
	}

	return buf.Bytes(), nil
}

// ToJSON generates an indented JSON representation of the full report
func ToJSON(report *DeviceReport) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// WriteReport renders the report in the given format ("csv", "markdown",
// "text" or "json") and writes it to path. An empty path derives a filename
// from the device label or mount.
func WriteReport(report *DeviceReport, format, path string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case "csv":
		data, err = ExportToCSV(report)
		ext = ".csv"
	case "markdown", "md":
		data, err = ExportToMarkdown(report)
		ext = ".md"
	case "text", "txt":
		data, err = ExportToText(report)
		ext = ".txt"
	case "json":
		data, err = ToJSON(report)
		ext = ".json"
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if path == "" {
		base := report.Label
		if base == "" {
			base = filepath.Base(report.Mount)
		}
		path = strings.ToLower(strings.ReplaceAll(base, " ", "_")) + "_report" + ext
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}
