package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/stagehandhq/stagehandd/internal"
	"github.com/stagehandhq/stagehandd/internal/cli"
	"github.com/stagehandhq/stagehandd/internal/graph"
	"github.com/stagehandhq/stagehandd/internal/launch"
)

// Exit codes distinguishing failure classes for scripted callers.
const (
	exitFailure     = 1
	exitGraphError  = 2
	exitConfigError = 3
)

// The entry point for the stagehandd daemon.
//
// Initializes logging, displays startup information, and executes the root
// command. Graph and configuration failures map to distinct exit codes.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("stagehandd is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(exitCode(err))
	}
}

// Maps an error to the process exit code.
func exitCode(err error) int {
	var gerr *graph.Error
	if errors.As(err, &gerr) {
		return exitGraphError
	}

	var lerr *launch.Error
	if errors.As(err, &lerr) {
		return exitConfigError
	}

	return exitFailure
}

// Creates a logger seeded from build-time linker flags.
//
// The logger is reconfigured after flag parsing via cli.Execute.
func logger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()})
	return slog.New(handler).WithGroup(internal.Name)
}

// Returns the log level derived from build-time linker flags.
func logLevel() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
