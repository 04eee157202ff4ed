package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/polar9527/tag-audio/internal/apierr"
	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/cli"
	"github.com/polar9527/tag-audio/internal/config"
	"github.com/polar9527/tag-audio/internal/ffmpeg"
	"github.com/polar9527/tag-audio/internal/id3"
	"github.com/polar9527/tag-audio/internal/interrupt"
	"github.com/polar9527/tag-audio/internal/keyword"
	"github.com/polar9527/tag-audio/internal/pipeline"
	"github.com/polar9527/tag-audio/internal/transcribe"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitGeneral     = 1
	ExitUsage       = 2
	ExitSetup       = 3
	ExitValidation  = 4
	ExitRecognition = 5
	ExitTagWrite    = 6
	ExitInterrupt   = interrupt.ExitInterrupt
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// First Ctrl+C cancels and lets the pipeline checkpoint, the second aborts.
	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	env := cli.DefaultEnv()
	rootCmd := cli.NewRootCmd(env, fmt.Sprintf("%s (commit: %s)", version, commit))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		handler.Stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors (ExitUsage = 2): Cobra flag/arg parsing errors.
	// Cobra doesn't expose typed errors, so we check for known error message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	// Tag write errors (ExitTagWrite = 6). Checked first: the wrapped cause
	// may itself be a validation sentinel.
	if errors.Is(err, pipeline.ErrTagWrite) || errors.Is(err, id3.ErrTooManyChapters) ||
		errors.Is(err, id3.ErrUnsupportedContainer) {
		return ExitTagWrite
	}

	// Setup errors (ExitSetup = 3).
	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, transcribe.ErrAPIKeyMissing) ||
		errors.Is(err, transcribe.ErrUnknownBackend) || errors.Is(err, transcribe.ErrBackendUnavailable) ||
		errors.Is(err, config.ErrReadConfig) || errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, keyword.ErrNoKeywords) {
		return ExitSetup
	}

	// Recognition errors (ExitRecognition = 5). Checked before validation:
	// a worker failing setup wraps the backend's own sentinel.
	if errors.Is(err, keyword.ErrRecognizerSetup) || errors.Is(err, transcribe.ErrModelLoad) ||
		errors.Is(err, apierr.ErrAuthFailed) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrTimeout) {
		return ExitRecognition
	}

	// Validation errors (ExitValidation = 4).
	if errors.Is(err, audio.ErrFileNotFound) || errors.Is(err, audio.ErrDecodeFailed) ||
		errors.Is(err, cli.ErrNoChapters) || errors.Is(err, cli.ErrOutputExists) ||
		errors.Is(err, id3.ErrNoTag) || errors.Is(err, id3.ErrUnsupportedTag) ||
		errors.Is(err, id3.ErrMalformedTag) {
		return ExitValidation
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// These patterns are stable across Cobra versions (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",          // Missing required flag
	"unknown flag",           // Flag doesn't exist
	"unknown shorthand",      // Short flag doesn't exist
	"unknown command",        // Subcommand doesn't exist
	"flag needs an argument", // Flag provided without value
	"invalid argument",       // Invalid flag value type
	"accepts ",               // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",      // Too few arguments
	"requires at most",       // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
