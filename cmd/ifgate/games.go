package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/ifgate/pkg/adapters/process"
	"github.com/spf13/cobra"
)

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List the games in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd, "warn")
		if err != nil {
			return err
		}

		entries, err := process.LoadGames(cfg.CatalogPath())
		if err != nil {
			return fmt.Errorf("error loading game catalog: %w", err)
		}
		games, err := process.NewCatalog(cfg.GamePath, entries).List()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(games)
		}

		if len(games) == 0 {
			fmt.Fprintf(out, "No games found in %s.\n", cfg.GamePath)
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILE\tDESCRIPTION")
		for _, g := range games {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", g.ID, g.Path, g.Description)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(gamesCmd)
	gamesCmd.Flags().Bool("json", false, "Print the catalog as JSON")
}
