// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dylibtree/dylibtree/internal/issue"
	"github.com/dylibtree/dylibtree/internal/objfile"

	"github.com/charmbracelet/fang"
)

// glamourStyle picks dark or light from the terminal and plain text when
// stderr is not a terminal.
const glamourStyle = "auto"

// renderError is the fang error handler. The first line of the message is
// styled; in verbose mode the matching troubleshooting entry follows.
func (a *App) renderError(w io.Writer, _ fang.Styles, err error) {
	msg := formatErrorForDisplay(err, a.verbose)
	first, rest, _ := strings.Cut(msg, "\n")

	fmt.Fprintln(w, ErrorStyle.Render(first))
	if rest != "" {
		fmt.Fprintln(w, rest)
	}

	if !a.verbose {
		return
	}
	if doc := renderIssue(err); doc != "" {
		fmt.Fprint(w, doc)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// issueFor maps an error to its troubleshooting catalog entry.
func issueFor(err error) (issue.Id, bool) {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return ae.Issue, true
	}

	var fe *objfile.FormatError
	switch {
	case errors.As(err, &fe):
		return issue.UnsupportedFormatId, true
	case errors.Is(err, objfile.ErrNoArchitecture):
		return issue.NoArchitectureId, true
	}
	return 0, false
}

func renderIssue(err error) string {
	id, ok := issueFor(err)
	if !ok {
		return ""
	}
	entry := issue.Get(id)
	if entry == nil {
		return ""
	}
	out, rerr := entry.Render(glamourStyle)
	if rerr != nil {
		return ""
	}
	return out
}
