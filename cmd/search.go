package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Searches the saved index snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			cfg.Index.LoadOnStart = true

			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Service().Search(cmd.Context(), strings.Join(args, " "), page, pageSize)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "result page, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "results per page (default from config)")
	return cmd
}
