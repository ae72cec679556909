package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/ifgate/internal/cli"
	"github.com/aretw0/ifgate/internal/presentation/tui"
	"github.com/aretw0/ifgate/pkg/orchestrator"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript <session-id>",
	Short: "Print a stored session transcript",
	Long:  `Reads a transcript from the configured store. Ended sessions stay readable.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		if page < 1 || limit < 1 || limit > orchestrator.MaxLimit {
			return fmt.Errorf("--page must be at least 1 and --limit between 1 and %d", orchestrator.MaxLimit)
		}

		cfg, _, err := loadConfig(cmd, "warn")
		if err != nil {
			return err
		}

		store, closeStore, err := cli.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		info, err := store.GetSession(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", sessionID, err)
		}
		p, err := store.Transcript(cmd.Context(), sessionID, page, limit)
		if err != nil {
			return fmt.Errorf("error loading transcript: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Session any `json:"session"`
				Page    any `json:"transcript"`
			}{info, p})
		}

		isTTY := term.IsTerminal(int(os.Stdout.Fd()))
		md := tui.TranscriptMarkdown(sessionID, p)
		render, err := tui.NewRenderer(0, isTTY)
		if err == nil {
			if rendered, rerr := render(md); rerr == nil {
				md = rendered
			}
		}
		fmt.Fprint(out, md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.Flags().Int("page", orchestrator.DefaultPage, "Page number, starting at 1")
	transcriptCmd.Flags().Int("limit", orchestrator.DefaultLimit, "Turns per page")
	transcriptCmd.Flags().Bool("json", false, "Print the page as JSON")
}
