package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/clearstack/clearflow/internal/lifecycle"
	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/types"
)

// Exit codes by error kind, for scripting.
const (
	exitGeneral      = 1
	exitValidation   = 2
	exitNotFound     = 3
	exitUnauthorized = 4
	exitConflict     = 5
	exitUnavailable  = 6
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return exitValidation
	case errors.Is(err, storage.ErrNotFound):
		return exitNotFound
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return exitUnauthorized
	case errors.Is(err, storage.ErrConflict):
		return exitConflict
	case errors.Is(err, storage.ErrTransient), errors.Is(err, lifecycle.ErrDependency):
		return exitUnavailable
	default:
		return exitGeneral
	}
}

// fatalError prints the error (JSON when --json) and exits with the kind's code.
func fatalError(err error) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintln(os.Stderr, string(out))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// outputJSON pretty-prints v to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func time24h(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

// printRequest renders one request in the human format.
func printRequest(req *types.Request) {
	fmt.Printf("%s  %s\n", req.ID, statusLabel(req))
	fmt.Printf("  document type: %s\n", req.DocumentTypeID)
	fmt.Printf("  requester:     %s\n", req.RequesterID)
	fmt.Printf("  stages:        %s\n", renderStages(req))
	if req.RejectionReason != "" {
		fmt.Printf("  on hold:       %s\n", req.RejectionReason)
	}
	if req.Escalated {
		fmt.Printf("  escalation:    level %d\n", req.EscalationLevel)
	}
	fmt.Printf("  last activity: %s\n", req.LastActivityAt.Local().Format(time.RFC3339))
	fmt.Printf("  created:       %s  version %d\n", req.CreatedAt.Local().Format(time.RFC3339), req.Version)
}

// printRequestLine renders one request as a single list row.
func printRequestLine(req *types.Request) {
	stage := "done"
	if !req.IsCompleted {
		stage = req.CurrentStage()
	}
	fmt.Printf("%-38s %-10s %-14s %s\n", req.ID, req.CurrentStatus, stage, req.RequesterID)
}

func statusLabel(req *types.Request) string {
	if req.IsCompleted {
		return "completed"
	}
	return string(req.CurrentStatus)
}

// renderStages shows the stage sequence with the current position marked,
// e.g. "library ✓ > [cashier] > registrar".
func renderStages(req *types.Request) string {
	parts := make([]string, len(req.Stages))
	for i, stage := range req.Stages {
		switch {
		case i < req.CurrentStageIndex:
			parts[i] = stage + " ✓"
		case i == req.CurrentStageIndex && !req.IsCompleted:
			parts[i] = "[" + stage + "]"
		default:
			parts[i] = stage
		}
	}
	return strings.Join(parts, " > ")
}
