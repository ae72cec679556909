package main

import (
	"os"

	"github.com/aretw0/ifgate"
	"github.com/aretw0/ifgate/internal/cli"
	"github.com/aretw0/ifgate/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var playCmd = &cobra.Command{
	Use:   "play <game>",
	Short: "Play a game in this terminal",
	Long: `Starts a local session and reads commands from stdin. Type /transcript to review
the session or /quit to leave. The transcript is kept in the configured store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, "warn")
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := cli.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		isTTY := term.IsTerminal(int(os.Stdout.Fd()))
		width := 0
		if isTTY {
			tui.PrintBanner(out, ifgate.Version)
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = w
			}
		}

		render, err := tui.NewRenderer(width, isTTY)
		if err != nil {
			logger.Warn("Markdown rendering disabled", "err", err)
			render = nil
		}

		return cli.Play(ctx, app.Service, cli.PlayOptions{
			Game:   args[0],
			In:     cmd.InOrStdin(),
			Out:    out,
			Render: render,
		})
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
}
