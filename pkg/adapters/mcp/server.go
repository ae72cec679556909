package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/ifgate"
	"github.com/aretw0/ifgate/internal/logging"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/orchestrator"
	"github.com/aretw0/ifgate/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

const gamesURI = "ifgate://games"

// Service defines the session use cases exposed as MCP tools.
type Service interface {
	CreateSession(ctx context.Context, gameID string) (orchestrator.CreateResult, error)
	SendCommand(ctx context.Context, sessionID, command string) (orchestrator.CommandResult, error)
	Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error)
	TerminateSession(ctx context.Context, sessionID string) error
	Games() ([]ports.Game, error)
}

// CreateSessionInput is the argument set of create_session.
type CreateSessionInput struct {
	Game string `mapstructure:"game"`
}

// SendCommandInput is the argument set of send_command.
type SendCommandInput struct {
	SessionID string  `mapstructure:"session_id"`
	Command   *string `mapstructure:"command"`
}

// TranscriptInput is the argument set of get_transcript.
type TranscriptInput struct {
	SessionID string `mapstructure:"session_id"`
	Page      int    `mapstructure:"page"`
	Limit     int    `mapstructure:"limit"`
}

// SessionInput is the argument set of terminate_session.
type SessionInput struct {
	SessionID string `mapstructure:"session_id"`
}

// TerminateResult is returned by terminate_session.
type TerminateResult struct {
	SessionID  string `json:"session_id" jsonschema_description:"The terminated session"`
	Terminated bool   `json:"terminated"`
}

// GameList is returned by list_games.
type GameList struct {
	Games []ports.Game `json:"games" jsonschema_description:"Games that can be passed to create_session"`
}

// Server exposes the session service as an MCP server.
type Server struct {
	svc       Service
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		mcpServer: server.NewMCPServer("ifgate-mcp", strings.TrimSpace(ifgate.Version), server.WithRecovery()),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves JSON-RPC on in and out until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

// SSEHandler returns an http.Handler serving the SSE transport on /sse and /message.
func (s *Server) SSEHandler(baseURL string) http.Handler {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	return mux
}

// ServeSSE listens on addr using SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.SSEHandler(baseURL),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Start a new interactive fiction session. Returns the session ID and the game's opening text."),
		mcp.WithString("game", mcp.Required(), mcp.Description("Game ID, as returned by list_games")),
		mcp.WithOutputSchema[orchestrator.CreateResult](),
	), mcp.NewStructuredToolHandler(s.handleCreateSession))

	s.mcpServer.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Send one command to the game (e.g. 'look', 'take lamp') and return its response."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID from create_session")),
		mcp.WithString("command", mcp.Required(), mcp.Description("A single line of player input")),
		mcp.WithOutputSchema[orchestrator.CommandResult](),
	), mcp.NewStructuredToolHandler(s.handleSendCommand))

	s.mcpServer.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Read a page of a session's command history, oldest first."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1"), mcp.Min(1)),
		mcp.WithNumber("limit", mcp.Description("Turns per page"), mcp.Min(1), mcp.Max(orchestrator.MaxLimit)),
		mcp.WithOutputSchema[domain.TranscriptPage](),
	), mcp.NewStructuredToolHandler(s.handleTranscript))

	s.mcpServer.AddTool(mcp.NewTool("terminate_session",
		mcp.WithDescription("End a session and stop its game process. The transcript stays readable."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[TerminateResult](),
	), mcp.NewStructuredToolHandler(s.handleTerminate))

	s.mcpServer.AddTool(mcp.NewTool("list_games",
		mcp.WithDescription("List the games that can be played."),
		mcp.WithOutputSchema[GameList](),
	), mcp.NewStructuredToolHandler(s.handleListGames))
}

func decodeArgs(args map[string]any, out any) error {
	if err := mapstructure.Decode(args, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func requireSession(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: session_id is required", domain.ErrInvalidArgument)
	}
	return nil
}

func (s *Server) handleCreateSession(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (orchestrator.CreateResult, error) {
	var in CreateSessionInput
	if err := decodeArgs(args, &in); err != nil {
		return orchestrator.CreateResult{}, err
	}
	if strings.TrimSpace(in.Game) == "" {
		return orchestrator.CreateResult{}, fmt.Errorf("%w: game is required", domain.ErrInvalidArgument)
	}

	res, err := s.svc.CreateSession(ctx, in.Game)
	if err != nil {
		s.logger.Warn("MCP create_session failed", "game", in.Game, "err", err)
		return orchestrator.CreateResult{}, err
	}
	return res, nil
}

func (s *Server) handleSendCommand(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (orchestrator.CommandResult, error) {
	var in SendCommandInput
	if err := decodeArgs(args, &in); err != nil {
		return orchestrator.CommandResult{}, err
	}
	if err := requireSession(in.SessionID); err != nil {
		return orchestrator.CommandResult{}, err
	}
	if in.Command == nil {
		return orchestrator.CommandResult{}, fmt.Errorf("%w: command is required", domain.ErrInvalidArgument)
	}

	res, err := s.svc.SendCommand(ctx, in.SessionID, *in.Command)
	if err != nil {
		s.logger.Warn("MCP send_command failed", "session_id", in.SessionID, "err", err)
		return orchestrator.CommandResult{}, err
	}
	return res, nil
}

func (s *Server) handleTranscript(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (domain.TranscriptPage, error) {
	var in TranscriptInput
	if err := decodeArgs(args, &in); err != nil {
		return domain.TranscriptPage{}, err
	}
	if err := requireSession(in.SessionID); err != nil {
		return domain.TranscriptPage{}, err
	}
	if in.Page < 0 || in.Limit < 0 || in.Limit > orchestrator.MaxLimit {
		return domain.TranscriptPage{}, fmt.Errorf("%w: page and limit must not be negative and limit at most %d", domain.ErrInvalidArgument, orchestrator.MaxLimit)
	}
	return s.svc.Transcript(ctx, in.SessionID, in.Page, in.Limit)
}

func (s *Server) handleTerminate(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (TerminateResult, error) {
	var in SessionInput
	if err := decodeArgs(args, &in); err != nil {
		return TerminateResult{}, err
	}
	if err := requireSession(in.SessionID); err != nil {
		return TerminateResult{}, err
	}
	if err := s.svc.TerminateSession(ctx, in.SessionID); err != nil {
		return TerminateResult{}, err
	}
	return TerminateResult{SessionID: in.SessionID, Terminated: true}, nil
}

func (s *Server) handleListGames(_ context.Context, _ mcp.CallToolRequest, _ map[string]any) (GameList, error) {
	games, err := s.svc.Games()
	if err != nil {
		return GameList{}, err
	}
	if games == nil {
		games = []ports.Game{}
	}
	return GameList{Games: games}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(gamesURI, "Game catalog",
		mcp.WithResourceDescription("Games available to create_session"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		games, err := s.svc.Games()
		if err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}
		jsonBytes, err := json.Marshal(games)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      gamesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
