package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jacentio/docstore/config"
	"github.com/jacentio/docstore/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cli holds flag values and the loaded settings shared by subcommands.
type cli struct {
	configFile string
	dotenvFile string
	verbose    bool

	cfg    store.Config
	logger *slog.Logger

	// clientOpts are passed to every client the commands open.
	clientOpts []store.Option
}

func newRootCmd(opts ...store.Option) *cobra.Command {
	c := &cli{clientOpts: opts}

	root := &cobra.Command{
		Use:           "docstore",
		Short:         "Manage docstore databases",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if c.verbose {
				level = slog.LevelDebug
			}
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			var dotenv []string
			if c.dotenvFile != "" {
				dotenv = append(dotenv, c.dotenvFile)
			}
			cfg, err := config.Load(c.configFile, dotenv...)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML settings file")
	root.PersistentFlags().StringVar(&c.dotenvFile, "env-file", "", "dotenv file (default: .env when present)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd(c))
	root.AddCommand(newMigrateCmd(c))
	return root
}
