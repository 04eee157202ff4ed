// Package config loads tag-audio settings. Values are layered: built-in
// defaults, then the YAML file, then environment variables; the CLI applies
// its flags last.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/polar9527/tag-audio/internal/lang"
)

// EnvPrefix prefixes every environment variable read into Config.
const EnvPrefix = "TAG_AUDIO_"

// EnvOpenAIKey holds the OpenAI API key. It is never read from the file.
const EnvOpenAIKey = "OPENAI_API_KEY"

// Config holds all user-tunable settings.
type Config struct {
	Keywords         []string      `yaml:"keywords" env:"KEYWORDS" validate:"min=1,dive,required"`
	ChunkDuration    time.Duration `yaml:"chunk_duration" env:"CHUNK_DURATION" validate:"gte=1s"`
	Workers          int           `yaml:"workers" env:"WORKERS" validate:"gte=0"` // 0 picks a value from the CPU count
	MinChapterLength time.Duration `yaml:"min_chapter_length" env:"MIN_CHAPTER_LENGTH" validate:"gte=1ms"`

	Silence    Silence    `yaml:"silence" env:", prefix=SILENCE_"`
	Recognizer Recognizer `yaml:"recognizer" env:", prefix=RECOGNIZER_"`
	Tag        Tag        `yaml:"tag" env:", prefix=TAG_"`
	Progress   Progress   `yaml:"progress" env:", prefix=PROGRESS_"`
	Log        Log        `yaml:"log" env:", prefix=LOG_"`
}

// Silence configures boundary refinement.
type Silence struct {
	Detector       string        `yaml:"detector" env:"DETECTOR" validate:"oneof=pcm ffmpeg"`
	ThresholdDB    float64       `yaml:"threshold_db" env:"THRESHOLD_DB" validate:"lt=0"`
	MinLength      time.Duration `yaml:"min_length" env:"MIN_LENGTH" validate:"gte=0"`
	LookBack       time.Duration `yaml:"look_back" env:"LOOK_BACK" validate:"gt=0"`
	FallbackOffset time.Duration `yaml:"fallback_offset" env:"FALLBACK_OFFSET" validate:"gte=0"`
}

// Recognizer selects and configures the speech recognition backend.
type Recognizer struct {
	Backend    string `yaml:"backend" env:"BACKEND" validate:"oneof=openai whisper-server whisper-native"`
	Model      string `yaml:"model" env:"MODEL"`
	Language   string `yaml:"language" env:"LANGUAGE" validate:"language"`
	ServerURL  string `yaml:"server_url" env:"SERVER_URL" validate:"omitempty,url"`
	ModelPath  string `yaml:"model_path" env:"MODEL_PATH" validate:"required_if=Backend whisper-native"`
	MaxRetries int    `yaml:"max_retries" env:"MAX_RETRIES" validate:"gte=0"`

	APIKey string `yaml:"-"`
}

// Tag configures the chapter table writer.
type Tag struct {
	Padding             int    `yaml:"padding" env:"PADDING" validate:"gte=0"`
	UserTextDescription string `yaml:"user_text_description" env:"USER_TEXT_DESCRIPTION"`
	UserTextValue       string `yaml:"user_text_value" env:"USER_TEXT_VALUE"`
}

// Progress configures where snapshots are kept. A bucket selects S3.
type Progress struct {
	Dir               string `yaml:"dir" env:"DIR"`
	S3Bucket          string `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Prefix          string `yaml:"s3_prefix" env:"S3_PREFIX"`
	S3Region          string `yaml:"s3_region" env:"S3_REGION"`
	S3Endpoint        string `yaml:"s3_endpoint" env:"S3_ENDPOINT" validate:"omitempty,url"`
	S3AccessKeyID     string `yaml:"-" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"-" env:"S3_SECRET_ACCESS_KEY"`
}

// S3Enabled reports whether snapshots go to S3 instead of local files.
func (p Progress) S3Enabled() bool {
	return p.S3Bucket != ""
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" env:"FORMAT" validate:"oneof=text json"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Keywords:         []string{"chapter", "prologue"},
		ChunkDuration:    5 * time.Minute,
		MinChapterLength: 5 * time.Second,
		Silence: Silence{
			Detector:       "pcm",
			ThresholdDB:    -45,
			MinLength:      4 * time.Second,
			LookBack:       5 * time.Second,
			FallbackOffset: 500 * time.Millisecond,
		},
		Recognizer: Recognizer{
			Backend:    "openai",
			MaxRetries: 5,
		},
		Tag: Tag{Padding: 1024},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Dir returns the configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/tag-audio.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tag-audio"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tag-audio"), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// Loader reads configuration from a file and the environment.
type Loader struct {
	file     string
	explicit bool
	lookuper envconfig.Lookuper
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFile reads path instead of the default location. Unlike the default
// file, an explicit file must exist.
func WithFile(path string) LoaderOption {
	return func(l *Loader) {
		if path != "" {
			l.file = path
			l.explicit = true
		}
	}
}

// WithLookuper replaces the process environment.
func WithLookuper(lk envconfig.Lookuper) LoaderOption {
	return func(l *Loader) {
		if lk != nil {
			l.lookuper = lk
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{lookuper: envconfig.OsLookuper()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// File returns the configuration file the loader reads, resolving the
// default location when none was given.
func (l *Loader) File() (string, error) {
	if l.file != "" {
		return ExpandPath(l.file), nil
	}
	return Path()
}

// Load returns the layered configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	cfg := Default()

	file, err := l.File()
	if err != nil {
		return cfg, err
	}
	if err := decodeFile(file, &cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) || l.explicit {
			return cfg, err
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           &cfg,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, l.lookuper),
		DefaultOverwrite: true,
	}); err != nil {
		return cfg, fmt.Errorf("%w: environment: %v", ErrInvalidConfig, err)
	}
	if key, ok := l.lookuper.Lookup(EnvOpenAIKey); ok {
		cfg.Recognizer.APIKey = key
	}

	cfg.Progress.Dir = ExpandPath(cfg.Progress.Dir)
	cfg.Recognizer.ModelPath = ExpandPath(cfg.Recognizer.ModelPath)
	return cfg, nil
}

// decodeFile overlays the YAML file at path onto cfg. Unknown keys are errors.
func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path) // #nosec G304 -- config path chosen by the user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", ErrReadConfig, path, err)
		}
		return fmt.Errorf("%w: %w", ErrReadConfig, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f, cfg)
}

// Decode overlays YAML from r onto cfg. An empty document changes nothing.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode yaml: %v", ErrReadConfig, err)
	}
	return nil
}

var validate = newValidator()

// newValidator registers the "language" tag for recognition language hints.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		return lang.Validate(fl.Field().String()) == nil
	})
	return v
}

// Validate checks every field and reports all failures at once.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Marshal renders cfg as YAML. Secrets are omitted.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// ResolveOutputDir resolves where per-chapter files go:
// an explicit dir, else a directory named after the input next to it.
func ResolveOutputDir(dir, input string) string {
	if dir != "" {
		return filepath.Clean(ExpandPath(dir))
	}
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(input), stem+"_chapters")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}
