package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/puzzlefs/puzzlefs/format"
)

// Exit codes per the CLI surface: 0 success, 1 usage error, 2 image not
// found, 3 integrity failure, 4 unsupported feature, 5 I/O.
const (
	exitOK = iota
	exitUsage
	exitNotFound
	exitIntegrity
	exitUnsupported
	exitIO
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "puzzlefs",
	Short:         "Build, mount, extract, and verify PuzzleFS images",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.AddCommand(buildCmd, mountCmd, extractCmd, verityCmd)
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitCodeFor maps a returned error to the CLI's documented exit code.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, format.ErrNotFound), errors.Is(err, format.ErrMissingBlob):
		return exitNotFound
	case errors.Is(err, format.ErrIntegrityFailed):
		return exitIntegrity
	case errors.Is(err, format.ErrFeatureUnsupported):
		return exitUnsupported
	default:
		var uv *format.UnsupportedVersionError
		if errors.As(err, &uv) {
			return exitUnsupported
		}
		var usage *usageError
		if errors.As(err, &usage) {
			return exitUsage
		}
		return exitIO
	}
}

// usageError marks an error as a command-line usage mistake (exit code 1)
// rather than a runtime failure of the operation itself.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

func usagef(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exactArgs returns a cobra.PositionalArgs that reports a mismatched
// argument count as a usageError, so Execute maps it to exit code 1
// instead of cobra's own generic error.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: %s", usage)
		}
		return nil
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "puzzlefs:", err)
	}
	return exitCodeFor(err)
}
