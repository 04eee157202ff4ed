package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polar9527/tag-audio/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration settings",
		Long: `Show the effective configuration.

Settings are layered: built-in defaults, then the YAML file
(~/.config/tag-audio/config.yaml or --config), then TAG_AUDIO_*
environment variables, then command-line flags.

Examples of environment overrides:
  TAG_AUDIO_KEYWORDS=chapter,part
  TAG_AUDIO_SILENCE_THRESHOLD_DB=-40
  TAG_AUDIO_RECOGNIZER_BACKEND=whisper-server
  TAG_AUDIO_PROGRESS_S3_BUCKET=my-bucket`,
		Example: `  tag-audio config show
  tag-audio config path
  tag-audio config show --config ./book.yaml`,
	}

	cmd.AddCommand(configShowCmd(env))
	cmd.AddCommand(configPathCmd(env))

	return cmd
}

// configShowCmd creates the "config show" subcommand.
func configShowCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the effective configuration as YAML.

Secrets (API keys, S3 credentials) are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, env)
		},
	}
}

// configPathCmd creates the "config path" subcommand.
func configPathCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigPath(cmd, env)
		},
	}
}

func runConfigShow(cmd *cobra.Command, env *Env) error {
	cfg, err := env.ConfigLoader.Load(cmd.Context(), configFlag(cmd))
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	_, _ = env.Stdout.Write(data)
	return nil
}

func runConfigPath(cmd *cobra.Command, env *Env) error {
	path, err := env.ConfigLoader.File(configFlag(cmd))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(env.Stdout, path)
	return nil
}

// configFlag returns the inherited --config value, empty when unset or when
// the command runs outside the root command.
func configFlag(cmd *cobra.Command) string {
	f := cmd.Flags().Lookup("config")
	if f == nil {
		return ""
	}
	return f.Value.String()
}
