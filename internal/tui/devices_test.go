// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xspectrum/internal/audio"
)

func testDevices() ([]audio.Device, error) {
	return []audio.Device{
		{ID: 0, Name: "Built-in Microphone", HostAPI: "Core Audio", MaxInputChannels: 1, DefaultSampleRate: 48000},
		{ID: 1, Name: "Built-in Output", HostAPI: "Core Audio", MaxOutputChannels: 2, DefaultSampleRate: 44100},
		{ID: 2, Name: "USB Interface", HostAPI: "Core Audio", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 96000},
	}, nil
}

func updateList(t *testing.T, m DeviceListModel, msg tea.Msg) (DeviceListModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(DeviceListModel), cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func loadedModel(t *testing.T) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(testDevices)
	assert.Equal(t, "Initializing...", m.View())
	m, _ = updateList(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = updateList(t, m, m.Init()())
	return m
}

func TestDeviceListShowsInputsOnly(t *testing.T) {
	m := loadedModel(t)
	require.Len(t, m.devices, 2)
	view := m.View()
	assert.Contains(t, view, "Built-in Microphone")
	assert.Contains(t, view, "USB Interface (Input/Output, Core Audio)")
	assert.NotContains(t, view, "Built-in Output")
}

func TestDeviceListSelect(t *testing.T) {
	m := loadedModel(t)

	m, _ = updateList(t, m, keyMsg("down"))
	m, _ = updateList(t, m, keyMsg("down")) // clamps at the last device
	assert.Equal(t, 1, m.selectedIndex)

	m, _ = updateList(t, m, keyMsg("enter"))
	assert.Equal(t, ConfigScreen, m.activeScreen)
	assert.Equal(t, 3, m.sampleRateIndex, "starts at the device default of 96 kHz")
	assert.Contains(t, m.View(), "Configure Device: USB Interface")

	m, _ = updateList(t, m, keyMsg("up"))
	m, cmd := updateList(t, m, keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	sel, ok := m.Selection()
	require.True(t, ok)
	assert.Equal(t, Selection{DeviceID: 2, DeviceName: "USB Interface", SampleRate: 88200}, sel)
}

func TestDeviceListBackAndQuit(t *testing.T) {
	m := loadedModel(t)
	m, _ = updateList(t, m, keyMsg("enter"))
	m, _ = updateList(t, m, keyMsg("esc"))
	assert.Equal(t, ListScreen, m.activeScreen)

	m, cmd := updateList(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	_, ok := m.Selection()
	assert.False(t, ok)
}

func TestDeviceListError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host") })
	m, _ = updateList(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = updateList(t, m, m.Init()())
	assert.Contains(t, m.View(), "Error: no host")
}

func TestRateIndex(t *testing.T) {
	assert.Equal(t, 1, rateIndex(48000))
	assert.Equal(t, 0, rateIndex(22050))
}
