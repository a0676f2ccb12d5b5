// SPDX-License-Identifier: MIT

// Package tui holds the Bubble Tea front ends: a device selector and a live
// spectrum view.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	maxStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E8B339"))

	minStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5A8DEE"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C6C6C"))
)
