// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for device transfers:
//  1. [DeviceListView] : Pick a detected device (or wait for one to appear)
//  2. [PlanView] : Review the computed plan before anything is written
//  3. [ConfirmView] : Confirm the transfer
//  4. [SyncView] : Monitor real-time copy and rebuild progress
//  5. [ResultView] : Display final counters and per-file failures
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the sync engine, providing
// non-blocking status reporting during transfers.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
