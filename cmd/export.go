package cmd

import (
	"fmt"

	"github.com/siae-sistema/cardlink/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		out  string
		kind string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export linked cards or accesses to Parquet",
		Example: `  cardlink export --out cards.parquet
  cardlink export --kind accesses --out accesses.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := export.Export(cmd.Context(), db, kind, out)
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", kind, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d %s to %s\n", n, kind, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output Parquet file")
	cmd.Flags().StringVarP(&kind, "kind", "k", export.KindCards, "What to export: cards or accesses")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
