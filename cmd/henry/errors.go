package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"henry/internal/errors"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitNoResult    = 3
	exitBackend     = 4
	exitInterrupted = 130
)

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	if stderrors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	var ae *errors.AuditError
	if !stderrors.As(err, &ae) {
		return exitFailure
	}
	switch ae.Code {
	case errors.ScopeInvalid, errors.ConfigInvalid:
		return exitUsage
	case errors.NotFound, errors.EmptyResult:
		return exitNoResult
	case errors.BackendUnavailable, errors.Unauthorized, errors.RateLimited, errors.Timeout:
		return exitBackend
	}
	return exitFailure
}

// printError writes err and any suggested fixes to w.
func printError(w io.Writer, err error) {
	if stderrors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "Interrupted")
		return
	}

	var ae *errors.AuditError
	if !stderrors.As(err, &ae) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	// Terminal scope conditions print their message alone.
	if errors.IsTerminal(err) {
		fmt.Fprintln(w, ae.Message)
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	for _, fix := range ae.SuggestedFixes {
		switch {
		case fix.Command != "" && fix.Description != "":
			fmt.Fprintf(w, "  hint: %s (%s)\n", fix.Description, fix.Command)
		case fix.Command != "":
			fmt.Fprintf(w, "  hint: %s\n", fix.Command)
		case fix.Description != "":
			fmt.Fprintf(w, "  hint: %s\n", fix.Description)
		}
	}
}
