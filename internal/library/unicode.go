package library

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsFATSafe reports whether every rune in name fits in latin-1. The device
// firmware cannot address files whose names fall outside that range.
func IsFATSafe(name string) bool {
	for _, r := range name {
		if r > 0xFF {
			return false
		}
	}
	return true
}

// SafeName derives a stable latin-1-safe replacement for name from its md5
// digest. The audio extension is preserved so the builder still indexes the
// file; other extensions are dropped, matching the device tooling.
func SafeName(name string) string {
	digest := md5.Sum([]byte(name))
	short := hex.EncodeToString(digest[:])[:8]

	var b strings.Builder
	for i := len(short) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%02X", short[i])
	}

	ext := strings.ToLower(filepath.Ext(name))
	if audioExt[ext] {
		return b.String() + ext
	}
	return b.String()
}

// SafeRelPath rewrites each unsafe component of a slash-separated relative
// path via [SafeName], leaving safe components untouched.
func SafeRelPath(rel string) string {
	parts := strings.Split(rel, "/")
	for i, part := range parts {
		if !IsFATSafe(part) {
			parts[i] = SafeName(part)
		}
	}
	return strings.Join(parts, "/")
}

// RenameUnsafe walks dir renaming files and directories whose names are not
// latin-1-safe. Only files with recognized audio or playlist extensions
// trigger renames of themselves and their parent directories, so unrelated
// data on the volume is left alone. Returns the renames performed as
// old path → new path pairs.
func RenameUnsafe(dir string) (map[string]string, error) {
	renamed := make(map[string]string)
	if _, err := renameUnsafeWalk(dir, renamed); err != nil {
		return renamed, err
	}
	return renamed, nil
}

// renameUnsafeWalk reports whether the subtree contains recognizable media.
func renameUnsafeWalk(dir string, renamed map[string]string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	hasMedia := false
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)

		if entry.IsDir() {
			childHasMedia, err := renameUnsafeWalk(full, renamed)
			if err != nil {
				return hasMedia, err
			}
			if childHasMedia {
				hasMedia = true
				if !IsFATSafe(name) {
					dest := filepath.Join(dir, SafeName(name))
					if err := os.Rename(full, dest); err != nil {
						return hasMedia, fmt.Errorf("failed to rename %s: %w", full, err)
					}
					renamed[full] = dest
				}
			}
			continue
		}

		if !IsAudioFile(name) && !IsPlaylistFile(name) {
			continue
		}
		hasMedia = true
		if IsFATSafe(name) {
			continue
		}
		dest := filepath.Join(dir, SafeName(name))
		if err := os.Rename(full, dest); err != nil {
			return hasMedia, fmt.Errorf("failed to rename %s: %w", full, err)
		}
		renamed[full] = dest
	}

	return hasMedia, nil
}
