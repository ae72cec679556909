package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/orchestrator"
	"github.com/aretw0/ifgate/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	sendErr error

	lastGame    string
	lastSession string
	lastCommand string
	lastPage    int
	lastLimit   int
	terminated  []string
}

func (s *stubService) CreateSession(_ context.Context, gameID string) (orchestrator.CreateResult, error) {
	s.lastGame = gameID
	if gameID == "missing" {
		return orchestrator.CreateResult{}, domain.ErrGameNotFound
	}
	return orchestrator.CreateResult{SessionID: "s-1", Output: "Welcome."}, nil
}

func (s *stubService) SendCommand(_ context.Context, sessionID, command string) (orchestrator.CommandResult, error) {
	s.lastSession, s.lastCommand = sessionID, command
	if s.sendErr != nil {
		return orchestrator.CommandResult{}, s.sendErr
	}
	return orchestrator.CommandResult{Output: "Ok.", Seq: 1}, nil
}

func (s *stubService) Transcript(_ context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error) {
	s.lastSession, s.lastPage, s.lastLimit = sessionID, page, limit
	return domain.TranscriptPage{Page: 1, Limit: 20, TotalPages: 1, TotalTurns: 1,
		Turns: []domain.Turn{{SessionID: sessionID, Seq: 0, Output: "Welcome."}}}, nil
}

func (s *stubService) TerminateSession(_ context.Context, sessionID string) error {
	s.terminated = append(s.terminated, sessionID)
	return nil
}

func (s *stubService) Games() ([]ports.Game, error) {
	return []ports.Game{{ID: "zork", Path: "/games/zork1.z3"}}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestCreateSessionTool(t *testing.T) {
	svc := &stubService{}
	s := NewServer(svc)

	res, err := s.handleCreateSession(context.Background(), callRequest("create_session", nil), map[string]any{"game": "zork"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", res.SessionID)
	assert.Equal(t, "Welcome.", res.Output)
	assert.Equal(t, "zork", svc.lastGame)

	_, err = s.handleCreateSession(context.Background(), callRequest("create_session", nil), map[string]any{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.handleCreateSession(context.Background(), callRequest("create_session", nil), map[string]any{"game": "missing"})
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}

func TestSendCommandTool(t *testing.T) {
	svc := &stubService{}
	s := NewServer(svc)
	ctx := context.Background()

	res, err := s.handleSendCommand(ctx, callRequest("send_command", nil), map[string]any{"session_id": "s-1", "command": "look"})
	require.NoError(t, err)
	assert.Equal(t, "Ok.", res.Output)
	assert.Equal(t, 1, res.Seq)
	assert.Equal(t, "look", svc.lastCommand)

	_, err = s.handleSendCommand(ctx, callRequest("send_command", nil), map[string]any{"session_id": "s-1", "command": ""})
	require.NoError(t, err, "empty commands are passed through")

	_, err = s.handleSendCommand(ctx, callRequest("send_command", nil), map[string]any{"session_id": "s-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.handleSendCommand(ctx, callRequest("send_command", nil), map[string]any{"command": "look"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.handleSendCommand(ctx, callRequest("send_command", nil), map[string]any{"session_id": 7, "command": "look"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSendCommandTool_ErrorResult(t *testing.T) {
	s := NewServer(&stubService{sendErr: domain.ErrSessionNotFound})
	handler := mcp.NewStructuredToolHandler(s.handleSendCommand)

	result, err := handler(context.Background(), callRequest("send_command", map[string]any{"session_id": "gone", "command": "look"}))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestTranscriptTool(t *testing.T) {
	svc := &stubService{}
	s := NewServer(svc)

	// JSON numbers arrive as float64.
	page, err := s.handleTranscript(context.Background(), callRequest("get_transcript", nil),
		map[string]any{"session_id": "s-1", "page": float64(2), "limit": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.lastPage)
	assert.Equal(t, 5, svc.lastLimit)
	require.Len(t, page.Turns, 1)

	_, err = s.handleTranscript(context.Background(), callRequest("get_transcript", nil), map[string]any{"session_id": "s-1"})
	require.NoError(t, err)
	assert.Zero(t, svc.lastPage)
	assert.Zero(t, svc.lastLimit)

	for _, args := range []map[string]any{
		{"session_id": "s-1", "limit": float64(orchestrator.MaxLimit + 1)},
		{"session_id": "s-1", "limit": float64(-1)},
		{"session_id": "s-1", "page": float64(-3)},
	} {
		svc.lastLimit = 0
		_, err = s.handleTranscript(context.Background(), callRequest("get_transcript", nil), args)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "%v", args)
		assert.Zero(t, svc.lastLimit, "invalid bounds never reach the service")
	}
}

func TestServerRecoversFromToolPanic(t *testing.T) {
	s := NewServer(&stubService{})
	s.MCPServer().AddTool(mcp.NewTool("explode"), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("boom")
	})

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"explode","arguments":{}}}`)
	var resp mcp.JSONRPCMessage
	require.NotPanics(t, func() {
		resp = s.MCPServer().HandleMessage(context.Background(), msg)
	})
	require.NotNil(t, resp)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "panic")
}

func TestTerminateTool(t *testing.T) {
	svc := &stubService{}
	s := NewServer(svc)

	res, err := s.handleTerminate(context.Background(), callRequest("terminate_session", nil), map[string]any{"session_id": "s-1"})
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Equal(t, []string{"s-1"}, svc.terminated)

	_, err = s.handleTerminate(context.Background(), callRequest("terminate_session", nil), map[string]any{"session_id": " "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestListGamesTool(t *testing.T) {
	s := NewServer(&stubService{})

	res, err := s.handleListGames(context.Background(), callRequest("list_games", nil), nil)
	require.NoError(t, err)
	require.Len(t, res.Games, 1)
	assert.Equal(t, "zork", res.Games[0].ID)
}

func TestToolsAreRegistered(t *testing.T) {
	s := NewServer(&stubService{})

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	resp := s.MCPServer().HandleMessage(context.Background(), msg)
	require.NotNil(t, resp)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"create_session", "send_command", "get_transcript", "terminate_session", "list_games"} {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
}
