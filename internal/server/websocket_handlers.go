package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/trackscan/internal/extract"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsMessageExtract  = "extract"
	wsResponseExtract = "extract_response"
	wsResponseError   = "error"

	wsStatusProcessing = "processing"
	wsStatusProgress   = "progress"
	wsStatusCompleted  = "completed"
	wsStatusError      = "error"

	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketExtractRequest is a batch submitted over a WebSocket.
type WebSocketExtractRequest struct {
	Type     string               `json:"type"`
	Images   []extract.ImageInput `json:"images"`
	Progress bool                 `json:"progress,omitempty"`
}

// WebSocketExtractResponse is every message the server sends back.
type WebSocketExtractResponse struct {
	Type      string               `json:"type"`
	Status    string               `json:"status"`
	Total     int                  `json:"total,omitempty"`
	Done      int                  `json:"done,omitempty"`
	Result    *extract.BatchResult `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorType string               `json:"error_type,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
}

// extractWebSocketHandler accepts batches over a WebSocket. Each batch gets a
// processing acknowledgement and then exactly one completed result.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	var header http.Header
	if id := RequestID(r.Context()); id != "" {
		header = http.Header{RequestIDHeader: []string{id}}
	}
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	conn.SetReadLimit(s.maxBodyBytes())

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	extract.Logger(r.Context()).Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				extract.Logger(ctx).Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
			// A long batch must not eat into the idle read deadline.
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		}
	}
}

// handleWebSocketMessage runs one batch request.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Type != "" && req.Type != wsMessageExtract {
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
		return
	}
	if len(req.Images) > s.maxBatchImages {
		s.sendWebSocketError(conn, "batch_too_large",
			fmt.Sprintf("Batch size too large (%d images, maximum %d)", len(req.Images), s.maxBatchImages))
		return
	}

	requestID := uuid.NewString()
	ctx = extract.WithLogger(ctx, extract.Logger(ctx).With("ws_request_id", requestID))

	s.sendWebSocketResponse(conn, WebSocketExtractResponse{
		Type:      wsResponseExtract,
		Status:    wsStatusProcessing,
		Total:     len(req.Images),
		RequestID: requestID,
	})

	coordinator := s.coordinator
	if req.Progress {
		coordinator = coordinator.WithProgress(func(done, total int) {
			s.sendWebSocketResponse(conn, WebSocketExtractResponse{
				Type:      wsResponseExtract,
				Status:    wsStatusProgress,
				Total:     total,
				Done:      done,
				RequestID: requestID,
			})
		})
	}

	apiBatchImages.WithLabelValues("websocket").Observe(float64(len(req.Images)))
	result := coordinator.ExtractBatch(ctx, req.Images)
	apiRequestsTotal.WithLabelValues("websocket", statusOK).Inc()
	apiExtractedTotal.WithLabelValues("success").Add(float64(len(result.Success)))
	apiExtractedTotal.WithLabelValues("fail").Add(float64(len(result.Fail)))

	s.sendWebSocketResponse(conn, WebSocketExtractResponse{
		Type:      wsResponseExtract,
		Status:    wsStatusCompleted,
		Total:     len(req.Images),
		Result:    &result,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketExtractResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	apiRequestsTotal.WithLabelValues("websocket", statusBadRequest).Inc()
	s.sendWebSocketResponse(conn, WebSocketExtractResponse{
		Type:      wsResponseError,
		Status:    wsStatusError,
		Error:     message,
		ErrorType: errorType,
	})
}
