package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polar9527/tag-audio/internal/format"
	"github.com/polar9527/tag-audio/internal/id3"
)

// InspectCmd creates the inspect command.
func InspectCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <audio-file>",
		Short: "Print the chapter table of a tagged file",
		Long: `Print the ID3v2 chapter frames of a file: every CHAP frame in
table-of-contents order, the CTOC frame and any user text frames.`,
		Example: `  tag-audio inspect book_tagged.mp3`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(env, args[0])
		},
	}
}

func runInspect(env *Env, path string) error {
	tag, err := readTag(path)
	if err != nil {
		return err
	}

	chapters := tag.Ordered()
	_, _ = fmt.Fprintf(env.Stdout, "ID3v2.%d, %d chapters\n", tag.Version, len(chapters))
	for i, c := range chapters {
		_, _ = fmt.Fprintf(env.Stdout, "%3d  %-6s %s  %s  %s\n", i+1, c.ElementID,
			format.Timestamp(format.Millis(c.Start)),
			format.Timestamp(format.Millis(c.End)),
			c.Title)
	}
	if toc := tag.TOC; toc != nil {
		var attrs []string
		if toc.TopLevel {
			attrs = append(attrs, "top-level")
		}
		if toc.Ordered {
			attrs = append(attrs, "ordered")
		}
		_, _ = fmt.Fprintf(env.Stdout, "TOC %s [%s]: %s\n", toc.ElementID, strings.Join(attrs, ", "), strings.Join(toc.Children, " "))
	}
	for _, u := range tag.UserText {
		_, _ = fmt.Fprintf(env.Stdout, "TXXX %s: %s\n", u.Description, u.Value)
	}
	return nil
}

// readTag reads the chapter table of path. A tag without CHAP frames
// returns ErrNoChapters.
func readTag(path string) (id3.Tag, error) {
	tag, err := id3.ReadChapters(path)
	if err != nil {
		return tag, err
	}
	if len(tag.Chapters) == 0 {
		return tag, fmt.Errorf("%w: %s", ErrNoChapters, path)
	}
	return tag, nil
}
