package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/roosearch/internal/crawler"
	"github.com/JakeFAU/roosearch/internal/service"
)

type crawlOutput struct {
	Result   crawler.Result        `json:"result"`
	Stats    service.Stats         `json:"stats"`
	Snapshot *service.SnapshotInfo `json:"snapshot,omitempty"`
}

func newCrawlCmd() *cobra.Command {
	var maxPages, concurrency int
	cmd := &cobra.Command{
		Use:   "crawl URL [URL...]",
		Short: "Crawls from the given seeds and saves the index snapshot",
		Long: `Loads the existing snapshot, crawls breadth-first from the seed URLs,
recomputes PageRank and writes the snapshot back.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			if maxPages <= 0 {
				maxPages = cfg.Crawler.MaxPagesDefault
			}
			if concurrency <= 0 {
				concurrency = cfg.Crawler.Concurrency
			}
			cfg.Index.LoadOnStart = true
			cfg.Index.SaveAfterCrawl = false

			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			svc := app.Service()
			res, err := svc.Crawl(cmd.Context(), args, maxPages, concurrency)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
			info, err := svc.SnapshotSave(cmd.Context())
			if err != nil {
				return err
			}
			out := crawlOutput{Result: res, Stats: svc.Stats(), Snapshot: &info}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "maximum pages to index (default from config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "pages fetched per batch (default from config)")
	return cmd
}
