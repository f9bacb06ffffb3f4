package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/MeKo-Tech/trackscan/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWebSocketConn records written messages.
type mockWebSocketConn struct {
	sent []WebSocketExtractResponse
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	var resp WebSocketExtractResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	m.sent = append(m.sent, resp)
	return nil
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	s := newTestServer(t, testutil.NewScriptedEngine(), func(c *Config) { c.MaxBatchImages = 1 })

	tests := []struct {
		name      string
		message   string
		errorType string
	}{
		{name: "invalid json", message: "{", errorType: "invalid_request"},
		{name: "unknown type", message: `{"type":"ocr"}`, errorType: "invalid_request"},
		{name: "too many images", message: `{"images":[{"id":"a","bytes":""},{"id":"b","bytes":""}]}`, errorType: "batch_too_large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockWebSocketConn{}
			s.handleWebSocketMessage(context.Background(), conn, []byte(tt.message))
			require.Len(t, conn.sent, 1)
			assert.Equal(t, wsResponseError, conn.sent[0].Type)
			assert.Equal(t, wsStatusError, conn.sent[0].Status)
			assert.Equal(t, tt.errorType, conn.sent[0].ErrorType)
			assert.NotEmpty(t, conn.sent[0].Error)
		})
	}
}

func TestHandleWebSocketMessage_Progress(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	s := newTestServer(t, engine, nil)

	req := WebSocketExtractRequest{
		Type:     wsMessageExtract,
		Progress: true,
		Images: []extract.ImageInput{
			{ID: "a", Bytes: engine.AddText("Sendungsnummer: 12345678901234")},
			{ID: "b", Bytes: engine.AddText("nothing here")},
			{ID: "c", Bytes: []byte("broken")},
		},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	conn := &mockWebSocketConn{}
	s.handleWebSocketMessage(context.Background(), conn, data)

	require.Len(t, conn.sent, 5)
	assert.Equal(t, wsStatusProcessing, conn.sent[0].Status)
	assert.Equal(t, 3, conn.sent[0].Total)
	for i, msg := range conn.sent[1:4] {
		assert.Equal(t, wsStatusProgress, msg.Status)
		assert.Equal(t, i+1, msg.Done)
	}
	last := conn.sent[4]
	assert.Equal(t, wsStatusCompleted, last.Status)
	require.NotNil(t, last.Result)
	assert.Equal(t, 3, last.Result.Len())
	assert.ElementsMatch(t, []string{"b", "c"}, last.Result.Fail)

	for _, msg := range conn.sent {
		assert.Equal(t, conn.sent[0].RequestID, msg.RequestID)
	}
}

func TestExtractWebSocket_EndToEnd(t *testing.T) {
	engine := testutil.NewScriptedEngine()
	s := newTestServer(t, engine, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/extract"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	send := func(req WebSocketExtractRequest) {
		require.NoError(t, conn.WriteJSON(req))
	}
	read := func() WebSocketExtractResponse {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		var msg WebSocketExtractResponse
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// Two batches over one connection.
	for _, number := range []string{"11111111111111", "22222222222222"} {
		send(WebSocketExtractRequest{Images: []extract.ImageInput{
			{ID: number, Bytes: engine.AddText("Sendungsnummer: " + number)},
		}})

		ack := read()
		assert.Equal(t, wsResponseExtract, ack.Type)
		assert.Equal(t, wsStatusProcessing, ack.Status)
		assert.NotEmpty(t, ack.RequestID)

		done := read()
		assert.Equal(t, wsStatusCompleted, done.Status)
		assert.Equal(t, ack.RequestID, done.RequestID)
		require.NotNil(t, done.Result)
		require.Len(t, done.Result.Success, 1)
		assert.Equal(t, number, done.Result.Success[0].TrackNumber)
		assert.Empty(t, done.Result.Fail)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	errMsg := read()
	assert.Equal(t, wsResponseError, errMsg.Type)
}
