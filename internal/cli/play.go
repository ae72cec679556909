package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/ifgate/internal/presentation/tui"
	"github.com/aretw0/ifgate/pkg/adapters/process"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/orchestrator"
)

// Meta commands understood by Play. Anything else goes to the game.
const (
	MetaQuit       = "/quit"
	MetaTranscript = "/transcript"
	MetaHelp       = "/help"
)

// PlayService is the part of the orchestrator an interactive session needs.
type PlayService interface {
	CreateSession(ctx context.Context, gameID string) (orchestrator.CreateResult, error)
	SendCommand(ctx context.Context, sessionID, command string) (orchestrator.CommandResult, error)
	Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error)
	TerminateSession(ctx context.Context, sessionID string) error
}

// PlayOptions configures Play.
type PlayOptions struct {
	Game string
	In   io.Reader
	Out  io.Writer
	// Render turns markdown into terminal output for /transcript. Nil prints the markdown.
	Render func(string) (string, error)
}

// Play runs one game interactively until the player quits, input ends,
// the game exits or ctx is cancelled. The session is terminated on return.
func Play(ctx context.Context, svc PlayService, opts PlayOptions) error {
	out := opts.Out

	res, err := svc.CreateSession(ctx, opts.Game)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", opts.Game, err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.TerminateSession(stopCtx, res.SessionID)
	}()

	fmt.Fprintln(out, tui.Notice(out, "Session "+res.SessionID+" ("+MetaHelp+" for commands)"))
	printOutput(out, res.Output, res.Partial)

	done := make(chan struct{})
	defer close(done)
	lines := readLines(opts.In, done)
	for {
		fmt.Fprint(out, tui.Prompt(out))

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = l
		}

		switch strings.TrimSpace(line) {
		case MetaQuit:
			return nil
		case MetaHelp:
			fmt.Fprintln(out, tui.Notice(out, MetaTranscript+"  show the transcript so far\n"+MetaQuit+"        end the session"))
			continue
		case MetaTranscript:
			if err := showTranscript(ctx, svc, res.SessionID, opts); err != nil {
				return err
			}
			continue
		}

		turn, err := svc.SendCommand(ctx, res.SessionID, line)
		if err != nil {
			var exitErr *process.ExitError
			switch {
			case errors.As(err, &exitErr):
				printOutput(out, exitErr.Output, false)
				fmt.Fprintln(out, tui.Notice(out, "[game ended]"))
				return nil
			case domain.IsFatal(err):
				fmt.Fprintln(out, tui.Notice(out, "[game ended]"))
				return nil
			case errors.Is(err, domain.ErrInvalidArgument):
				fmt.Fprintln(out, tui.Notice(out, err.Error()))
				continue
			case errors.Is(err, context.Canceled):
				return nil
			}
			return err
		}
		printOutput(out, turn.Output, turn.Partial)
	}
}

func printOutput(out io.Writer, text string, partial bool) {
	if text != "" {
		fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	}
	if partial {
		fmt.Fprintln(out, tui.Notice(out, "[no prompt yet, output may be incomplete]"))
	}
}

func showTranscript(ctx context.Context, svc PlayService, sessionID string, opts PlayOptions) error {
	var all []domain.Turn
	for page := 1; ; page++ {
		p, err := svc.Transcript(ctx, sessionID, page, orchestrator.DefaultLimit)
		if err != nil {
			return fmt.Errorf("failed to read transcript: %w", err)
		}
		all = append(all, p.Turns...)
		if page >= p.TotalPages {
			break
		}
	}

	md := tui.TranscriptMarkdown(sessionID, domain.TranscriptPage{
		Page: 1, Limit: len(all), TotalPages: 1, TotalTurns: len(all), Turns: all,
	})
	if opts.Render != nil {
		rendered, err := opts.Render(md)
		if err == nil {
			md = rendered
		}
	}
	fmt.Fprint(opts.Out, md)
	return nil
}

// readLines delivers input lines until EOF or done. A Read blocked on a
// terminal keeps the goroutine alive until the next line arrives.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-done:
				return
			}
		}
	}()
	return ch
}
