package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runServer(t *testing.T, input string) []Response {
	t.Helper()

	svc := newTestService(t, nil)
	var out bytes.Buffer
	server := NewServer(svc, nil, WithIO(strings.NewReader(input), &out))

	require.NoError(t, server.Run(context.Background()))

	var responses []Response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "line: %s", line)
		responses = append(responses, resp)
	}
	return responses
}

func toolText(t *testing.T, resp Response) (string, bool) {
	t.Helper()

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result CallToolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.NotEmpty(t, result.Content)
	return result.Content[0].Text, result.IsError
}

func TestServerInitialize(t *testing.T) {
	responses := runServer(t, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`+"\n")

	require.Len(t, responses, 1)
	assert.Equal(t, "2.0", responses[0].JSONRPC)
	assert.Nil(t, responses[0].Error)

	raw, _ := json.Marshal(responses[0].Result)
	var init InitializeResult
	require.NoError(t, json.Unmarshal(raw, &init))
	assert.Equal(t, "granola-mcp", init.ServerInfo.Name)
	assert.Equal(t, protocolVersion, init.ProtocolVersion)
	assert.NotNil(t, init.Capabilities.Tools)
}

func TestServerHandlesFinalRequestWithoutNewline(t *testing.T) {
	// No trailing newline: the request arrives together with EOF and
	// must still be answered.
	responses := runServer(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)

	require.Len(t, responses, 1)
	assert.Equal(t, "2.0", responses[0].JSONRPC)
	assert.Nil(t, responses[0].Error)
}

func TestServerListTools(t *testing.T) {
	responses := runServer(t, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`+"\n")

	require.Len(t, responses, 1)
	raw, _ := json.Marshal(responses[0].Result)
	var list ListToolsResult
	require.NoError(t, json.Unmarshal(raw, &list))

	names := make(map[string]bool)
	for _, tool := range list.Tools {
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description, "tool %s has no description", tool.Name)
	}
	for _, want := range []string{
		"search_meetings", "get_meeting_details", "get_meeting_transcript",
		"get_meeting_documents", "analyze_meeting_patterns", "search_by_category",
		"list_categories", "find_similar_companies", "refresh_cache",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestServerCallSearch(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"search_meetings","arguments":{"query":"acme pricing"}}}` + "\n"
	responses := runServer(t, input)

	require.Len(t, responses, 1)
	text, isErr := toolText(t, responses[0])
	require.False(t, isErr, "tool error: %s", text)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "m-today", resp.Meetings[0].ID)
}

func TestServerRejectsBadLimit(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"search_meetings","arguments":{"query":"x","limit":0}}}` + "\n"
	responses := runServer(t, input)

	require.Len(t, responses, 1)
	text, isErr := toolText(t, responses[0])
	assert.True(t, isErr)
	assert.Contains(t, text, "limit must be at least 1")
}

func TestServerUnknownTool(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"bogus","arguments":{}}}` + "\n"
	responses := runServer(t, input)

	require.Len(t, responses, 1)
	text, isErr := toolText(t, responses[0])
	assert.True(t, isErr)
	assert.Contains(t, text, "unknown tool")
}

func TestServerUnknownMethod(t *testing.T) {
	responses := runServer(t, `{"jsonrpc":"2.0","id":6,"method":"bogus/method"}`+"\n")

	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, -32601, responses[0].Error.Code)
}

func TestServerParseError(t *testing.T) {
	responses := runServer(t, "{not json}\n")

	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, -32700, responses[0].Error.Code)
}

func TestServerNotificationGetsNoResponse(t *testing.T) {
	responses := runServer(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`+"\n")
	assert.Empty(t, responses)
}

func TestServerNotFoundMapsToToolError(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"get_meeting_details","arguments":{"meeting_id":"nope"}}}` + "\n"
	responses := runServer(t, input)

	require.Len(t, responses, 1)
	text, isErr := toolText(t, responses[0])
	assert.True(t, isErr)
	assert.Contains(t, text, "not found")
}
