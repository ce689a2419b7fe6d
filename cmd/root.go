// Package cmd defines the roosearch CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/roosearch/internal/config"
	"github.com/JakeFAU/roosearch/internal/server"
)

type configKeyType struct{}

var configKey configKeyType

// newApp is the application factory used by every command.
var newApp = server.Build

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "roosearch",
		Short: "A crawl, index and search engine.",
		Long: `roosearch crawls pages breadth-first, keeps an in-memory inverted index
with PageRank authority scores, and answers ranked queries with snippets.
The index is persisted as a compressed snapshot between runs.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newServeCmd(), newCrawlCmd(), newSearchCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}
