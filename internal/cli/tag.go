package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/chapter"
	"github.com/polar9527/tag-audio/internal/config"
	"github.com/polar9527/tag-audio/internal/id3"
	"github.com/polar9527/tag-audio/internal/keyword"
	"github.com/polar9527/tag-audio/internal/observe"
	"github.com/polar9527/tag-audio/internal/pipeline"
	"github.com/polar9527/tag-audio/internal/transcribe"
)

// tagFlags are the root command flags that override configuration.
type tagFlags struct {
	output     string
	configFile string
	workers    int
	backend    string
	stats      bool
}

// NewRootCmd creates the tag-audio command tree. Running the root command
// with an audio file detects chapters and writes the chapter table.
func NewRootCmd(env *Env, version string) *cobra.Command {
	var f tagFlags

	cmd := &cobra.Command{
		Use:   "tag-audio <audio-file>",
		Short: "Detect chapters in an audiobook and tag them",
		Long: `Detect chapter boundaries in a long audio recording and embed them
as an ID3v2 chapter table.

The track is cut into chunks that are transcribed in parallel. Each spoken
keyword ("chapter", "prologue" by default) marks a chapter start, which is
moved back to the nearest preceding silence. Progress is saved after each
stage, so an interrupted run resumes where it stopped.`,
		Example: `  tag-audio book.mp3
  tag-audio book.mp3 -o book_tagged.mp3 --workers 4
  tag-audio book.mp3 --backend whisper-server --stats
  tag-audio inspect book_tagged.mp3
  tag-audio split book_tagged.mp3 -o chapters/`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(cmd, env, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Tagged output file (default: rewrite the input)")
	cmd.PersistentFlags().StringVar(&f.configFile, "config", "", "Configuration file (default: ~/.config/tag-audio/config.yaml)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Parallel recognition workers (default: CPU count - 1)")
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "Recognition backend: openai, whisper-server, whisper-native")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Print run statistics when done")

	cmd.AddCommand(InspectCmd(env))
	cmd.AddCommand(SplitCmd(env))
	cmd.AddCommand(ConfigCmd(env))

	return cmd
}

// loadConfig loads configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command, env *Env, f tagFlags) (config.Config, error) {
	cfg, err := env.ConfigLoader.Load(cmd.Context(), f.configFile)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
	}
	if cmd.Flags().Changed("backend") {
		cfg.Recognizer.Backend = f.backend
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runTag executes the chapter pipeline on one file.
// Validation order: file exists -> config -> ffmpeg -> backend -> keywords
func runTag(cmd *cobra.Command, env *Env, input string, f tagFlags) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	if _, err := os.Stat(input); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", audio.ErrFileNotFound, input)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if err := id3.CheckWritable(input); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, env, f)
	if err != nil {
		return err
	}
	logger := config.NewLogger(env.Stderr, cfg.Log)

	backend, err := transcribe.ParseBackend(cfg.Recognizer.Backend)
	if err != nil {
		return err
	}
	matcher, err := keyword.NewMatcher(cfg.Keywords)
	if err != nil {
		return err
	}

	// === SETUP ===

	ffmpegPath, err := env.FFmpegResolver.Resolve(ctx)
	if err != nil {
		return err
	}
	env.FFmpegResolver.CheckVersion(ctx, ffmpegPath)

	metrics := observe.Global()
	if f.stats {
		stats, err := observe.NewStats()
		if err != nil {
			return err
		}
		defer func() { _ = stats.Shutdown(context.WithoutCancel(ctx)) }()
		defer printStats(ctx, env, stats, logger)
		metrics = stats.Metrics()
	}

	factory, closer, err := env.RecognizerFactory.New(transcribe.Settings{
		Backend:    backend,
		Model:      cfg.Recognizer.Model,
		Language:   cfg.Recognizer.Language,
		ServerURL:  cfg.Recognizer.ServerURL,
		ModelPath:  cfg.Recognizer.ModelPath,
		APIKey:     cfg.Recognizer.APIKey,
		MaxRetries: cfg.Recognizer.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	chunker, err := env.AudioFactory.NewChunker(ffmpegPath, cfg.ChunkDuration)
	if err != nil {
		return err
	}
	counted := &countingChunker{Chunker: chunker}

	spotOpts := []keyword.Option{
		keyword.WithLogger(logger),
		keyword.WithMetrics(metrics),
		keyword.WithProgress(chunkProgress(env.Stderr, counted)),
	}
	if cfg.Workers > 0 {
		spotOpts = append(spotOpts, keyword.WithWorkers(cfg.Workers))
	}

	refiner := chapter.NewRefiner(env.AudioFactory.NewDetector(ffmpegPath, cfg.Silence),
		chapter.WithLookBack(cfg.Silence.LookBack),
		chapter.WithFallbackOffset(cfg.Silence.FallbackOffset),
		chapter.WithRefinerLogger(logger),
	)
	builder := chapter.NewBuilder(refiner,
		chapter.WithMinChapterLength(cfg.MinChapterLength),
		chapter.WithBuilderLogger(logger),
		chapter.WithBuilderMetrics(metrics),
		chapter.WithRefineProgress(refineProgress(env.Stderr)),
	)

	writerOpts := []id3.WriterOption{id3.WithPadding(cfg.Tag.Padding), id3.WithLogger(logger)}
	if cfg.Tag.UserTextDescription != "" {
		writerOpts = append(writerOpts, id3.WithUserText(cfg.Tag.UserTextDescription, cfg.Tag.UserTextValue))
	}

	store, err := env.StoreFactory.New(ctx, cfg.Progress, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Deps{
		Prober:   env.AudioFactory.NewProber(ffmpegPath),
		Chunker:  counted,
		Spotter:  keyword.NewSpotter(matcher, factory, spotOpts...),
		Splitter: builder,
		Writer:   id3.NewWriter(writerOpts...),
		Store:    store,
	}, pipeline.WithLogger(logger))

	// === EXECUTE ===

	_, _ = fmt.Fprintf(env.Stderr, "Detecting chapters in %s...\n", input)
	res, err := p.Run(ctx, input, f.output)
	if res.ResumedFrom != pipeline.Cold {
		_, _ = fmt.Fprintf(env.Stderr, "Resumed from %s stage (%s)\n", res.ResumedFrom, res.Snapshot)
	}
	if err != nil {
		if res.Stage >= pipeline.Spotted {
			logger.Error("run incomplete, rerun to resume", "stage", res.Stage.String(), "progress", res.Snapshot, "error", err)
		}
		if errors.Is(err, context.Canceled) && res.Stage >= pipeline.Spotted {
			_, _ = fmt.Fprintf(env.Stderr, "Progress saved to %s\n", res.Snapshot)
		}
		return err
	}

	for _, line := range res.Timelines {
		_, _ = fmt.Fprintf(env.Stderr, "  %s\n", line)
	}
	printChapters(env.Stdout, res.Chapters)
	_, _ = fmt.Fprintf(env.Stderr, "Done: %s (%d chapters)\n", res.Output, len(res.Chapters))
	return nil
}

// printStats writes the run summary collected by the metrics reader.
func printStats(ctx context.Context, env *Env, stats *observe.Stats, logger *slog.Logger) {
	sum, err := stats.Summary(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("collect stats", "error", err)
		return
	}
	sum.Write(env.Stderr)
}
