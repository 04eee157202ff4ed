package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// binaryName is the base name of the ffmpeg binary.
	binaryName = "ffmpeg"

	// binaryExtWindows is the file extension for Windows executables.
	binaryExtWindows = ".exe"

	// minFFmpegMajorVersion is the minimum supported ffmpeg version.
	// Older builds lack the silencedetect output format parsed by the audio package.
	minFFmpegMajorVersion = 4

	// localBinDir is where a user-provided binary is looked up, relative to $HOME.
	localBinDir = ".tag-audio/bin"
)

// Environment variable for custom ffmpeg path.
const envFFmpegPath = "FFMPEG_PATH"

// Resolver locates the ffmpeg binary.
// Lookup order: FFMPEG_PATH, ~/.tag-audio/bin/ffmpeg, then PATH.
type Resolver struct {
	stat fileStatter
	env  envProvider
	goos string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFileStatter sets the stat implementation.
func WithFileStatter(s fileStatter) ResolverOption {
	return func(r *Resolver) { r.stat = s }
}

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// WithGOOS overrides the target operating system (for testing).
func WithGOOS(goos string) ResolverOption {
	return func(r *Resolver) { r.goos = goos }
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		stat: osFileStatter{},
		env:  osEnvProvider{},
		goos: runtime.GOOS,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the path to a usable ffmpeg binary.
// An invalid FFMPEG_PATH is an error rather than a silent fallback,
// so a misconfigured environment is noticed.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if p := r.env.Getenv(envFFmpegPath); p != "" {
		if r.isExecutableFile(p) {
			return p, nil
		}
		return "", fmt.Errorf("%s=%q is not an executable file: %w", envFFmpegPath, p, ErrNotFound)
	}

	if home, err := r.env.UserHomeDir(); err == nil {
		local := filepath.Join(home, localBinDir, r.binaryFileName())
		if r.isExecutableFile(local) {
			return local, nil
		}
	}

	if p, err := r.env.LookPath(binaryName); err == nil {
		return p, nil
	}

	return "", fmt.Errorf("%w\n%s", ErrNotFound, r.manualInstallInstructions())
}

func (r *Resolver) binaryFileName() string {
	if r.goos == "windows" {
		return binaryName + binaryExtWindows
	}
	return binaryName
}

func (r *Resolver) isExecutableFile(path string) bool {
	info, err := r.stat.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if r.goos == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

func (r *Resolver) manualInstallInstructions() string {
	var b strings.Builder
	b.WriteString("Install ffmpeg manually:\n")
	switch r.goos {
	case "darwin":
		b.WriteString("  brew install ffmpeg\n")
	case "linux":
		b.WriteString("  sudo apt install ffmpeg   (Debian/Ubuntu)\n")
		b.WriteString("  sudo dnf install ffmpeg   (Fedora)\n")
	case "windows":
		b.WriteString("  winget install ffmpeg\n")
	default:
		b.WriteString("  https://ffmpeg.org/download.html\n")
	}
	fmt.Fprintf(&b, "Or set %s to the binary path, or place it in ~/%s/", envFFmpegPath, localBinDir)
	return b.String()
}

// Resolve finds ffmpeg using the default resolver.
func Resolve(ctx context.Context) (string, error) {
	return NewResolver().Resolve(ctx)
}

// VersionChecker verifies FFmpeg version requirements.
type VersionChecker struct {
	executor *Executor
	stderr   io.Writer
}

// VersionCheckerOption configures a VersionChecker.
type VersionCheckerOption func(*VersionChecker)

// WithVersionExecutor sets the executor used to run "ffmpeg -version".
func WithVersionExecutor(e *Executor) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.executor = e }
}

// WithVersionStderr sets the writer for warnings.
func WithVersionStderr(w io.Writer) VersionCheckerOption {
	return func(vc *VersionChecker) { vc.stderr = w }
}

// NewVersionChecker creates a VersionChecker with the given options.
func NewVersionChecker(opts ...VersionCheckerOption) *VersionChecker {
	vc := &VersionChecker{
		executor: NewExecutor(),
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(vc)
	}
	return vc
}

// Check warns on stderr when ffmpeg is older than the supported minimum.
// Returns false when the version could not be determined; callers proceed anyway.
func (vc *VersionChecker) Check(ctx context.Context, ffmpegPath string) bool {
	out, err := vc.executor.Stdout(ctx, ffmpegPath, []string{"-hide_banner", "-version"})
	if err != nil {
		return false
	}
	major, ok := parseMajorVersion(string(out))
	if !ok {
		return false
	}
	if major < minFFmpegMajorVersion {
		fmt.Fprintf(vc.stderr, "Warning: ffmpeg version %d detected, version %d+ recommended\n",
			major, minFFmpegMajorVersion)
	}
	return true
}

// parseMajorVersion extracts the major version from the first line of
// "ffmpeg -version", accepting both "ffmpeg version 6.1.1" and "ffmpeg version n6.1".
func parseMajorVersion(output string) (int, bool) {
	line, _, _ := strings.Cut(output, "\n")
	var major int
	if _, err := fmt.Sscanf(line, "ffmpeg version %d", &major); err == nil {
		return major, true
	}
	if _, err := fmt.Sscanf(line, "ffmpeg version n%d", &major); err == nil {
		return major, true
	}
	return 0, false
}
