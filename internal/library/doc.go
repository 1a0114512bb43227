// Package library scans the source music tree and parses playlist definitions.
//
// A [Scanner] walks the configured music directory collecting audio files and
// playlist files in a deterministic order (directories sorted, filenames
// sorted case-insensitively, hidden entries skipped). Playlists come in three
// shapes:
//
//  1. .m3u files: one path per line, comment lines starting with '#' skipped
//  2. .pls files: FileN=path entries, URL-unescaped, ordered by N
//  3. directories: every audio file beneath the directory, recursively
//
// Relative playlist entries are resolved against the playlist file's own
// directory, matching how desktop players write them.
//
// The package also owns FAT-name safety: names that cannot be encoded as
// latin-1 are rewritten to a stable hash-derived name so the device firmware
// can address them (see [SafeName] and [RenameUnsafe]).
package library
