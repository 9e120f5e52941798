package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/avatarscript/internal/config"
	"github.com/dshills/avatarscript/internal/logging"
)

// cli holds state shared by every command, filled in before a command runs.
type cli struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "avatarscript",
		Short: "Sandboxed Lua runtime for entity avatars",
		Long: `avatarscript - Run avatar scripts in an isolated, instruction-limited Lua sandbox.

An avatar is a directory of .lua scripts with an optional avatar.toml
manifest. Scripts see only a safe subset of the standard library plus the
vectors, matrices, events and json helpers, and every phase runs under an
instruction budget.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (default: ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(c),
		newCheckCmd(c),
		newTypesCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and builds the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	path := c.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultFile); err == nil {
			path = config.DefaultFile
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrFileNotFound) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return err
	}

	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		if !logging.ValidLevel(level) {
			return fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", level)
		}
		cfg.Logging.Level = level
	}

	lc := cfg.Logging.Logger()
	lc.Output = cmd.ErrOrStderr()
	c.cfg = cfg
	c.logger = logging.New(lc)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "avatarscript %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
