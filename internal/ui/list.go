package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/ipodkit/shuffleport/internal/device"
	"github.com/ipodkit/shuffleport/internal/shared"
	"github.com/ipodkit/shuffleport/internal/tasks"
)

var (
	_ list.Item = deviceItem{}
	_ list.Item = actionItem{}
)

// deviceItem wraps [device.Volume] to implement [list.Item].
type deviceItem struct {
	volume device.Volume
}

func (i deviceItem) FilterValue() string { return i.volume.Mount }
func (i deviceItem) Title() string {
	if i.volume.Label != "" {
		return i.volume.Label
	}
	return i.volume.Mount
}
func (i deviceItem) Description() string {
	desc := i.volume.Mount
	if i.volume.FreeBytes > 0 {
		desc = fmt.Sprintf("%s • %s free", desc, shared.HumanBytes(int64(i.volume.FreeBytes)))
	}
	if !i.volume.HasControl {
		desc = fmt.Sprintf("%s • uninitialized", desc)
	}
	return desc
}

// actionItem wraps [tasks.FileAction] to implement [list.Item].
type actionItem struct {
	action tasks.FileAction
}

func (i actionItem) FilterValue() string { return i.action.DestRel }
func (i actionItem) Title() string       { return i.action.DestRel }
func (i actionItem) Description() string {
	desc := i.action.Kind.String()
	if i.action.Reason != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.action.Reason)
	}
	if i.action.Kind == tasks.ActionCopy || i.action.Kind == tasks.ActionRefresh {
		desc = fmt.Sprintf("%s • %s", desc, shared.HumanBytes(i.action.Track.Size))
	}
	return desc
}
