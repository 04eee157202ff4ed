package audio

import (
	"context"
	"os"
	"os/exec"
)

// commandRunner executes external commands.
type commandRunner interface {
	// CombinedOutput returns stdout and stderr interleaved.
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
	// Output returns stdout only; stderr is attached to an *exec.ExitError on failure.
	Output(ctx context.Context, name string, args []string) ([]byte, error)
}

// fileStatter retrieves file information.
type fileStatter interface {
	Stat(name string) (os.FileInfo, error)
}

// --- Default implementations using real OS functions ---

// osCommandRunner implements commandRunner using exec.CommandContext.
type osCommandRunner struct{}

func (osCommandRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	// #nosec G204 -- name and args are built by this package, not taken from user input
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

func (osCommandRunner) Output(ctx context.Context, name string, args []string) ([]byte, error) {
	// #nosec G204 -- name and args are built by this package, not taken from user input
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// osFileStatter implements fileStatter using os.Stat.
type osFileStatter struct{}

func (osFileStatter) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}
