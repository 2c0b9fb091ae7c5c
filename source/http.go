package source

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BeatGlow/drawbridge/command"
	"github.com/BeatGlow/drawbridge/pixel"
	"github.com/BeatGlow/drawbridge/scheduler"
)

const (
	// MaxPayload is the largest accepted request body or WebSocket message.
	MaxPayload = 64 << 10

	pingInterval = 25 * time.Second
	pongWait     = 2 * pingInterval
	writeWait    = 5 * time.Second
)

// Notice is sent to clients when an event was rejected.
type Notice struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Notice types.
const (
	NoticeError   = "error"
	NoticeDropped = "dropped"
)

func notice(err error) Notice {
	if errors.Is(err, ErrBackpressure) {
		return Notice{Type: NoticeDropped, Reason: err.Error()}
	}
	return Notice{Type: NoticeError, Reason: err.Error()}
}

func status(err error) int {
	if errors.Is(err, ErrBackpressure) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// Handler returns the HTTP interface:
//
//	GET  /ws         WebSocket, binary messages are record batches, text messages coordinate lists
//	POST /draw       record batch
//	GET  /data       JSON list of [row, col] cells drawn since the last clear
//	POST /data       JSON coordinate list
//	POST /clear      clear the display to black
//	GET  /frame.png  last flushed frame, ?scale=N
//	GET  /stats      counters
func (s *Source) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWebSocket)
	mux.HandleFunc("POST /draw", s.serveDraw)
	mux.HandleFunc("GET /data", s.serveCells)
	mux.HandleFunc("POST /data", s.serveData)
	mux.HandleFunc("POST /clear", s.serveClear)
	mux.HandleFunc("GET /frame.png", s.serveFrame)
	mux.HandleFunc("GET /stats", s.serveStats)
	return cors(mux)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Source) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayload))
	if err != nil {
		s.decodeErrors.Add(1)
		writeJSON(w, http.StatusRequestEntityTooLarge, Notice{Type: NoticeError, Reason: err.Error()})
		return nil, false
	}
	return body, true
}

func (s *Source) reply(w http.ResponseWriter, n int, err error) {
	if err != nil {
		s.log.Debug().Err(err).Int("enqueued", n).Msg("draw event rejected")
		writeJSON(w, status(err), notice(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Source) serveDraw(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	n, err := s.HandleBatch(body)
	s.reply(w, n, err)
}

func (s *Source) serveData(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	n, err := s.Coordinates(body)
	s.reply(w, n, err)
}

func (s *Source) serveCells(w http.ResponseWriter, _ *http.Request) {
	cells := s.Cells()
	list := make([][2]int, len(cells))
	for i, cell := range cells {
		list[i] = [2]int{cell.Y, cell.X}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Source) serveClear(w http.ResponseWriter, _ *http.Request) {
	n, err := s.Enqueue(command.Clear(pixel.Black))
	s.reply(w, n, err)
}

func (s *Source) serveFrame(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		http.NotFound(w, r)
		return
	}

	scale := 1
	if v := r.URL.Query().Get("scale"); v != "" {
		var err error
		if scale, err = strconv.Atoi(v); err != nil || scale < 1 {
			http.Error(w, "invalid scale", http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, s.mirror.Snapshot(scale)); err != nil {
		s.log.Debug().Err(err).Msg("frame snapshot not sent")
	}
}

func (s *Source) serveStats(w http.ResponseWriter, _ *http.Request) {
	var stats struct {
		Source    Stats            `json:"source"`
		Scheduler *scheduler.Stats `json:"scheduler,omitempty"`
	}
	stats.Source = s.Stats()
	if s.render != nil {
		render := s.render()
		stats.Scheduler = &render
	}
	writeJSON(w, http.StatusOK, stats)
}

// wsConn serializes writes to a WebSocket connection.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(messageType, data)
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}

func (s *Source) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsConn{Conn: ws}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	s.conns[ws] = struct{}{}
	s.readers.Add(1)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, ws)
		s.mu.Unlock()
		_ = ws.Close()
		s.readers.Done()
	}()

	log := s.log.With().Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("client connected")

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(c, done)

	ws.SetReadLimit(MaxPayload)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("client read error")
			} else {
				log.Info().Msg("client disconnected")
			}
			return
		}

		var n int
		switch messageType {
		case websocket.BinaryMessage:
			n, err = s.HandleBatch(data)
		case websocket.TextMessage:
			n, err = s.Coordinates(data)
		}
		if err != nil {
			log.Debug().Err(err).Int("enqueued", n).Msg("draw event rejected")
			if err = c.writeJSON(notice(err)); err != nil {
				log.Warn().Err(err).Msg("client write error")
				return
			}
		}
	}
}

func (s *Source) pingLoop(c *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects all WebSocket clients, refuses new ones and waits until every reader
// has returned, so nothing is enqueued by a WebSocket after Close. The HTTP server does
// not track hijacked connections, so this is called on shutdown. Close may be called more
// than once.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	for ws := range s.conns {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
	}
	s.mu.Unlock()

	s.readers.Wait()
	return nil
}
