// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/dylibtree/dylibtree/internal/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// newLogger returns a slog logger backed by a charmbracelet/log handler
// writing to w. Debug records are only emitted when verbose is set.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})

	styles := log.DefaultStyles()
	styles.Levels[log.WarnLevel] = levelStyle(log.WarnLevel, ColorWarning)
	styles.Levels[log.ErrorLevel] = levelStyle(log.ErrorLevel, ColorError)
	styles.Levels[log.DebugLevel] = levelStyle(log.DebugLevel, ColorVerbose)
	handler.SetStyles(styles)

	return slog.New(handler)
}

func levelStyle(level log.Level, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(strings.ToUpper(level.String())).
		Bold(true).
		MaxWidth(4).
		Foreground(color)
}
