package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/teavision/internal/pipeline"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocket message types.
const (
	MessageExtract   = "extract"
	MessageProgress  = "progress"
	MessageCompleted = "completed"
	MessageError     = "error"
)

// WebSocketImage is one base64 encoded image of an extract request. Data
// may carry a data URI prefix.
type WebSocketImage struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// WebSocketExtractRequest asks for batch feature extraction.
type WebSocketExtractRequest struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Images    []WebSocketImage `json:"images"`
}

// WebSocketSkipped reports an image left out of the batch.
type WebSocketSkipped struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// WebSocketResponse is every message the server sends.
type WebSocketResponse struct {
	Type      string             `json:"type"`
	RequestID string             `json:"request_id,omitempty"`
	Current   int                `json:"current,omitempty"`
	Total     int                `json:"total,omitempty"`
	Progress  float64            `json:"progress"`
	Rows      []map[string]any   `json:"rows,omitempty"`
	Skipped   []WebSocketSkipped `json:"skipped,omitempty"`
	Error     string             `json:"error,omitempty"`
	ErrorType string             `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// extractWebSocketHandler streams batch extraction progress over a
// WebSocket.
func (s *Server) extractWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	// base64 inflates uploads by a third
	conn.SetReadLimit(s.uploadLimit() * 4 / 3)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
			// extraction may outlast the read deadline
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		}
	}
}

// handleWebSocketMessage runs one extract request.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketExtractRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Type != MessageExtract {
		s.sendWebSocketError(conn, req.RequestID, "invalid_request", "Unsupported request type: "+req.Type)
		return
	}
	if req.RequestID == "" {
		req.RequestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	if len(req.Images) == 0 {
		s.sendWebSocketError(conn, req.RequestID, "invalid_request", msgNoImages)
		return
	}

	sources := make([]pipeline.Source, 0, len(req.Images))
	for i, img := range req.Images {
		raw, err := decodeImageData(img.Data)
		if err != nil {
			s.sendWebSocketError(conn, req.RequestID, "invalid_request",
				fmt.Sprintf("Image %d (%s) is not valid base64", i, img.Filename))
			return
		}
		sources = append(sources, pipeline.Source{Name: filepath.Base(img.Filename), Data: raw})
	}

	res, err := s.extractor.Run(ctx, sources, pipeline.BatchConfig{
		Workers:  s.batchWorkers,
		Progress: &wsProgress{server: s, conn: conn, requestID: req.RequestID},
	})
	if res != nil {
		imagesExtractedTotal.WithLabelValues("websocket", "ok").Add(float64(len(res.Samples)))
		imagesExtractedTotal.WithLabelValues("websocket", "skipped").Add(float64(len(res.Skipped)))
		extractionDuration.WithLabelValues("websocket").Observe(res.Duration.Seconds())
	}
	switch {
	case errors.Is(err, pipeline.ErrNoValidImages):
		s.sendWebSocketError(conn, req.RequestID, "processing_error", msgNoValidImages)
		return
	case err != nil:
		s.sendWebSocketError(conn, req.RequestID, "processing_error", "Extraction failed: "+err.Error())
		return
	}

	out := WebSocketResponse{
		Type:      MessageCompleted,
		RequestID: req.RequestID,
		Current:   len(sources),
		Total:     len(sources),
		Progress:  1,
		Rows:      make([]map[string]any, 0, len(res.Samples)),
	}
	for _, sm := range res.Samples {
		out.Rows = append(out.Rows, pipeline.SampleRow(sm))
	}
	for _, sk := range res.Skipped {
		out.Skipped = append(out.Skipped, WebSocketSkipped{Index: sk.Index, Filename: sk.Source, Error: sk.Err.Error()})
	}
	s.sendWebSocketResponse(conn, out)
}

func decodeImageData(data string) ([]byte, error) {
	if _, payload, ok := strings.Cut(data, ";base64,"); ok && strings.HasPrefix(data, "data:") {
		data = payload
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(data))
}

// wsProgress forwards batch progress to the client.
type wsProgress struct {
	server    *Server
	conn      WebSocketConnWriter
	requestID string
}

func (p *wsProgress) OnStart(total int) { p.send(0, total) }

func (p *wsProgress) OnProgress(current, total int) { p.send(current, total) }

func (p *wsProgress) OnComplete() {}

func (p *wsProgress) OnError(index int, source string, err error) {
	slog.Debug("websocket batch skipped image", "request_id", p.requestID, "index", index, "source", source, "error", err)
}

func (p *wsProgress) send(current, total int) {
	var frac float64
	if total > 0 {
		frac = float64(current) / float64(total)
	}
	p.server.sendWebSocketResponse(p.conn, WebSocketResponse{
		Type:      MessageProgress,
		RequestID: p.requestID,
		Current:   current,
		Total:     total,
		Progress:  frac,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
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
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      MessageError,
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	})
}
