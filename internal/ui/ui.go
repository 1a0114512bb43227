package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/ipodkit/shuffleport/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DeviceListView ViewState = iota
	PlanView
	ConfirmView
	SyncView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	engine       tasks.SyncEngine
	planOpts     tasks.PlanOpts
	runOpts      tasks.RunOpts
	width        int
	height       int
	deviceList   list.Model
	devices      []device.Volume
	planList     list.Model
	plan         *tasks.Plan
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

type devicesDetectedMsg struct {
	devices []device.Volume
	err     error
}

type planReadyMsg struct {
	plan *tasks.Plan
	err  error
}

type progressUpdateMsg tasks.ProgressUpdate

type syncCompleteMsg struct {
	result *tasks.RunResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies. The plan
// options carry the source library paths; the device is filled in when the
// user picks one.
func NewModel(ctx context.Context, engine tasks.SyncEngine, planOpts tasks.PlanOpts, runOpts tasks.RunOpts) *Model {
	return &Model{
		ctx:      ctx,
		view:     DeviceListView,
		engine:   engine,
		planOpts: planOpts,
		runOpts:  runOpts,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by probing for connected devices.
func (m *Model) Init() tea.Cmd {
	return m.detectDevices()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.deviceList.Width() == 0 {
			m.deviceList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.planList.Width() == 0 {
			m.planList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DeviceListView:
			return m.handleDeviceListKeys(msg)
		case PlanView:
			return m.handlePlanKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case devicesDetectedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.devices = msg.devices
		items := make([]list.Item, len(msg.devices))
		for i, vol := range msg.devices {
			items[i] = deviceItem{volume: vol}
		}
		m.deviceList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.deviceList.Title = "Connected Devices"
		m.deviceList.SetSize(m.width-4, m.height-8)
		return m, nil

	case planReadyMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = DeviceListView
			return m, nil
		}
		m.plan = msg.plan
		pending := append(msg.plan.Pending(), msg.plan.Prunes()...)
		items := make([]list.Item, len(pending))
		for i, action := range pending {
			items[i] = actionItem{action: action}
		}
		m.planList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.planList.Title = fmt.Sprintf("Plan for %s", msg.plan.Volume.Mount)
		m.planList.SetSize(m.width-4, m.height-8)
		m.view = PlanView
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case syncCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case DeviceListView:
		return m.renderDeviceList()
	case PlanView:
		return m.renderPlan()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleDeviceListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.err = nil
		return m, m.detectDevices()
	case "enter":
		selected := m.deviceList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(deviceItem); ok {
				m.err = nil
				return m, m.computePlan(item.volume.Mount)
			}
		}
	}

	var cmd tea.Cmd
	m.deviceList, cmd = m.deviceList.Update(msg)
	return m, cmd
}

func (m *Model) handlePlanKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = DeviceListView
		return m, nil
	case "enter":
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.planList, cmd = m.planList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n":
		m.view = PlanView
		return m, nil
	case "y":
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = DeviceListView
		m.plan = nil
		m.result = nil
		m.err = nil
		return m, m.detectDevices()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case DeviceListView:
		m.deviceList, cmd = m.deviceList.Update(msg)
	case PlanView:
		m.planList, cmd = m.planList.Update(msg)
	}
	return m, cmd
}

func (m *Model) detectDevices() tea.Cmd {
	return func() tea.Msg {
		devices, err := device.Detect()
		if errors.Is(err, shared.ErrDeviceNotFound) {
			// An empty list renders the rescan hint instead of quitting.
			return devicesDetectedMsg{}
		}
		return devicesDetectedMsg{devices: devices, err: err}
	}
}

func (m *Model) computePlan(mount string) tea.Cmd {
	return func() tea.Msg {
		opts := m.planOpts
		opts.Device = mount
		plan, err := m.engine.Plan(m.ctx, nil, opts)
		return planReadyMsg{plan: plan, err: err}
	}
}

func (m *Model) startSync() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	progressChan := m.progressChan

	go func() {
		result, err := m.engine.Run(m.ctx, progressChan, m.plan, m.runOpts)
		m.result = result
		m.err = err
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan := m.progressChan
	return func() tea.Msg {
		if progressChan == nil {
			return syncCompleteMsg{result: m.result, err: m.err}
		}

		update, ok := <-progressChan
		if !ok {
			return syncCompleteMsg{result: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderDeviceList() string {
	if len(m.devices) == 0 {
		title := styles.title.Render("No devices found")
		hint := "Connect an iPod and press r to rescan."
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.quit})
		return fmt.Sprintf("%s\n%s\n\n%s", title, hint, helpView)
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.deviceList.View(), helpView)
}

func (m *Model) renderPlan() string {
	syncKey := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "sync"),
	)
	helpKeys := []key.Binding{syncKey, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	summary := fmt.Sprintf("%d to copy, %d unchanged, %d to remove (%s)",
		m.plan.CopyCount+m.plan.RefreshCount, m.plan.SkipCount, m.plan.PruneCount,
		shared.HumanBytes(m.plan.CopyBytes))

	return fmt.Sprintf("%s\n%s\n\n%s", m.planList.View(), styles.warn.Render(summary), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Sync to %s?", m.plan.Volume.Mount))
	info := fmt.Sprintf("\nCopy: %d files (%s)\nRemove: %d files\nPlaylists: %d\n",
		m.plan.CopyCount+m.plan.RefreshCount,
		shared.HumanBytes(m.plan.CopyBytes),
		m.plan.PruneCount,
		len(m.plan.Playlists))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing")

	var phase string
	switch m.progress.Phase {
	case tasks.CopyFiles:
		phase = fmt.Sprintf("Copying files (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.WritePlaylists:
		phase = "Writing playlists..."
	case tasks.PruneFiles:
		phase = fmt.Sprintf("Removing files (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.RebuildDB:
		phase = "Rebuilding device database..."
	default:
		phase = "Working..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.err)) + "\n\n" + helpView
	}

	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Sync Complete")
	info := fmt.Sprintf(
		"\nCopied: %d (%s)\nSkipped: %d\nRemoved: %d\nPlaylists: %d\nDuration: %s",
		m.result.Copied,
		shared.HumanBytes(m.result.BytesCopied),
		m.result.Skipped,
		m.result.Pruned,
		m.result.PlaylistsWritten,
		m.result.Duration.Round(time.Millisecond),
	)

	var failed string
	if m.result.Failed > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Failed to copy %d files:", m.result.Failed)))
		for _, fe := range m.result.FailedFiles {
			failed += fmt.Sprintf("\n  • %s", fe.Rel)
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
