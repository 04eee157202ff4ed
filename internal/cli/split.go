package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polar9527/tag-audio/internal/audio"
	"github.com/polar9527/tag-audio/internal/chapter"
	"github.com/polar9527/tag-audio/internal/config"
	"github.com/polar9527/tag-audio/internal/format"
)

// SplitCmd creates the split command.
func SplitCmd(env *Env) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "split <audio-file>",
		Short: "Cut a tagged file into one file per chapter",
		Long: `Cut a tagged file into one file per chapter using its ID3v2 chapter
table. Audio is stream-copied, so the cut is fast and lossless.

Files are named after chapter titles and written to <input>_chapters/
next to the input unless --output is given. Existing files are never
overwritten.`,
		Example: `  tag-audio split book_tagged.mp3
  tag-audio split book_tagged.mp3 -o ~/Audiobooks/book`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, env, args[0], outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: <input>_chapters)")
	return cmd
}

func runSplit(cmd *cobra.Command, env *Env, input, outputDir string) error {
	ctx := cmd.Context()

	if _, err := os.Stat(input); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", audio.ErrFileNotFound, input)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}
	tag, err := readTag(input)
	if err != nil {
		return err
	}
	chapters := tag.ChapterList()

	dir := config.ResolveOutputDir(outputDir, input)
	ext := filepath.Ext(input)
	outputs := make([]string, len(chapters))
	for i, name := range chapterFileNames(chapters, ext) {
		outputs[i] = filepath.Join(dir, name)
		if _, err := os.Stat(outputs[i]); err == nil {
			return fmt.Errorf("%s: %w", outputs[i], ErrOutputExists)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cannot access output file: %w", err)
		}
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, c := range chapters {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(env.Stderr, "  Cutting %d/%d: %s\n", i+1, len(chapters), c.Title)
		if _, err := env.FFmpegRunner.RunOutput(ctx, ffmpegPath, splitArgs(input, c, outputs[i])); err != nil {
			return fmt.Errorf("cut %q: %w", c.Title, err)
		}
	}
	_, _ = fmt.Fprintf(env.Stderr, "Done: %d files in %s\n", len(chapters), dir)
	return nil
}

// splitArgs builds a stream-copy cut of [c.Start, c.End) into out.
func splitArgs(input string, c chapter.Chapter, out string) []string {
	return []string{
		"-hide_banner", "-n",
		"-i", input,
		"-ss", format.Timestamp(format.Millis(c.Start)),
		"-to", format.Timestamp(format.Millis(c.End)),
		"-c", "copy",
		out,
	}
}

// chapterFileName derives a file name from the chapter title. Characters
// that are unsafe in file names become underscores; untitled chapters are
// numbered.
func chapterFileName(i int, c chapter.Chapter, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(c.Title))
	name = strings.Trim(name, ". ")
	if name == "" {
		name = fmt.Sprintf("chapter_%03d", i+1)
	}
	return name + ext
}

// chapterFileNames names every chapter file. A name already taken, compared
// case-insensitively, gets the chapter number appended.
func chapterFileNames(chapters []chapter.Chapter, ext string) []string {
	names := make([]string, len(chapters))
	taken := make(map[string]bool, len(chapters))
	for i, c := range chapters {
		name := chapterFileName(i, c, ext)
		if taken[strings.ToLower(name)] {
			base := strings.TrimSuffix(name, ext)
			name = fmt.Sprintf("%s_%03d%s", base, i+1, ext)
			for k := 2; taken[strings.ToLower(name)]; k++ {
				name = fmt.Sprintf("%s_%03d_%d%s", base, i+1, k, ext)
			}
		}
		taken[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}
