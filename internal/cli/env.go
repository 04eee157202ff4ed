package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/config"
	"github.com/polar9527/tag-audio/internal/ffmpeg"
	"github.com/polar9527/tag-audio/internal/pipeline"
	"github.com/polar9527/tag-audio/internal/progress"
	"github.com/polar9527/tag-audio/internal/transcribe"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O
	Stdout io.Writer
	Stderr io.Writer

	// Factories for domain objects
	FFmpegResolver    FFmpegResolver
	FFmpegRunner      FFmpegRunner
	ConfigLoader      ConfigLoader
	AudioFactory      AudioFactory
	RecognizerFactory RecognizerFactory
	StoreFactory      StoreFactory
}

// FFmpegResolver resolves the path to the FFmpeg binary.
type FFmpegResolver interface {
	Resolve(ctx context.Context) (string, error)
	CheckVersion(ctx context.Context, ffmpegPath string)
}

// FFmpegRunner runs FFmpeg and returns its stderr.
type FFmpegRunner interface {
	RunOutput(ctx context.Context, ffmpegPath string, args []string) (string, error)
}

// ConfigLoader loads layered configuration. An empty file selects the default location.
type ConfigLoader interface {
	Load(ctx context.Context, file string) (config.Config, error)
	File(file string) (string, error)
}

// Chunker is a pipeline chunker that can also report its chunk count.
type Chunker interface {
	pipeline.Chunker
	Count(track audio.Track) int
}

// AudioFactory creates the FFmpeg-backed audio components.
type AudioFactory interface {
	NewProber(ffmpegPath string) pipeline.Prober
	NewChunker(ffmpegPath string, chunkDuration time.Duration) (Chunker, error)
	NewDetector(ffmpegPath string, s config.Silence) audio.SilenceDetector
}

// RecognizerFactory creates speech recognition backends.
type RecognizerFactory interface {
	New(s transcribe.Settings) (transcribe.Factory, io.Closer, error)
}

// StoreFactory creates the progress store.
type StoreFactory interface {
	New(ctx context.Context, p config.Progress, logger *slog.Logger) (progress.Store, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) { e.Stdout = w }
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) { e.Stderr = w }
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) { e.FFmpegResolver = r }
}

// WithFFmpegRunner sets the FFmpeg runner.
func WithFFmpegRunner(r FFmpegRunner) EnvOption {
	return func(e *Env) { e.FFmpegRunner = r }
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) { e.ConfigLoader = l }
}

// WithAudioFactory sets the audio component factory.
func WithAudioFactory(f AudioFactory) EnvOption {
	return func(e *Env) { e.AudioFactory = f }
}

// WithRecognizerFactory sets the recognition backend factory.
func WithRecognizerFactory(f RecognizerFactory) EnvOption {
	return func(e *Env) { e.RecognizerFactory = f }
}

// WithStoreFactory sets the progress store factory.
func WithStoreFactory(f StoreFactory) EnvOption {
	return func(e *Env) { e.StoreFactory = f }
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:            os.Stdout,
		Stderr:            os.Stderr,
		FFmpegResolver:    &defaultFFmpegResolver{},
		FFmpegRunner:      ffmpeg.NewExecutor(),
		ConfigLoader:      &defaultConfigLoader{},
		AudioFactory:      &defaultAudioFactory{},
		RecognizerFactory: &defaultRecognizerFactory{},
		StoreFactory:      &defaultStoreFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve(ctx context.Context) (string, error) {
	return ffmpeg.Resolve(ctx)
}

func (defaultFFmpegResolver) CheckVersion(ctx context.Context, ffmpegPath string) {
	ffmpeg.NewVersionChecker().Check(ctx, ffmpegPath)
}

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(ctx context.Context, file string) (config.Config, error) {
	return config.NewLoader(config.WithFile(file)).Load(ctx)
}

func (defaultConfigLoader) File(file string) (string, error) {
	return config.NewLoader(config.WithFile(file)).File()
}

type defaultAudioFactory struct{}

func (defaultAudioFactory) NewProber(ffmpegPath string) pipeline.Prober {
	return audio.NewProber(ffmpegPath)
}

func (defaultAudioFactory) NewChunker(ffmpegPath string, chunkDuration time.Duration) (Chunker, error) {
	tc, err := audio.NewTimeChunker(ffmpegPath, chunkDuration)
	if err != nil {
		return nil, err
	}
	return tc, nil
}

func (defaultAudioFactory) NewDetector(ffmpegPath string, s config.Silence) audio.SilenceDetector {
	if s.Detector == "ffmpeg" {
		return audio.NewFFmpegDetector(ffmpegPath, s.ThresholdDB, s.MinLength)
	}
	return audio.NewPCMDetector(ffmpegPath, s.ThresholdDB, s.MinLength)
}

type defaultRecognizerFactory struct{}

func (defaultRecognizerFactory) New(s transcribe.Settings) (transcribe.Factory, io.Closer, error) {
	return transcribe.NewFactory(s)
}

type defaultStoreFactory struct{}

func (defaultStoreFactory) New(ctx context.Context, p config.Progress, logger *slog.Logger) (progress.Store, error) {
	if p.S3Enabled() {
		s3, err := progress.NewS3Store(ctx, progress.S3Config{
			Bucket:          p.S3Bucket,
			Prefix:          p.S3Prefix,
			Region:          p.S3Region,
			Endpoint:        p.S3Endpoint,
			AccessKeyID:     p.S3AccessKeyID,
			SecretAccessKey: p.S3SecretAccessKey,
		}, progress.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return progress.NewFileStore(p.Dir, progress.WithLogger(logger)), nil
}

// Compile-time interface verification.
var (
	_ FFmpegResolver    = (*defaultFFmpegResolver)(nil)
	_ FFmpegRunner      = (*ffmpeg.Executor)(nil)
	_ ConfigLoader      = (*defaultConfigLoader)(nil)
	_ AudioFactory      = (*defaultAudioFactory)(nil)
	_ RecognizerFactory = (*defaultRecognizerFactory)(nil)
	_ StoreFactory      = (*defaultStoreFactory)(nil)
)
