package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"signal-feed/internal/broadcast"
	"signal-feed/internal/config"
)

// wsConn adapts a websocket connection to broadcast.Conn. Writes are serialised
// because the hub and the read loop both send on it.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

var _ broadcast.Conn = (*wsConn)(nil)

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (w *wsConn) Send(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *wsConn) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Send(payload)
}

func (w *wsConn) ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

// Close sends a close frame and releases the connection. Safe to call more than once.
func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeTimeout))
		err = w.conn.Close()
	})
	return err
}

type inboundMessage struct {
	Action string   `json:"action"`
	Asset  string   `json:"asset,omitempty"`
	Assets []string `json:"assets,omitempty"`
}

type ackMessage struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type wsHandler struct {
	deps     Deps
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func newWSHandler(deps Deps, cfg config.WebSocketConfig, logger zerolog.Logger) *wsHandler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}
	return &wsHandler{
		deps: deps,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *wsHandler) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug().Err(err).Msg("websocket upgrade")
		return nil
	}

	wc := newWSConn(conn, h.cfg.WriteTimeout)
	defer wc.Close()

	if h.deps.Snapshots != nil {
		payload, err := broadcast.EncodeSnapshot(h.deps.Snapshots.Snapshot())
		if err == nil {
			err = wc.Send(payload)
		}
		if err != nil {
			h.logger.Debug().Err(err).Msg("send initial snapshot")
			return nil
		}
	}

	h.deps.Subscribers.Register(wc)
	defer h.deps.Subscribers.Unregister(wc)

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(wc, done)

	h.readLoop(wc)
	return nil
}

func (h *wsHandler) keepAlive(wc *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				h.logger.Debug().Err(err).Msg("websocket ping")
				return
			}
		}
	}
}

func (h *wsHandler) readLoop(wc *wsConn) {
	pongWait := 2 * h.cfg.PingInterval
	conn := wc.conn
	conn.SetReadLimit(h.cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := wc.sendJSON(reply(data)); err != nil {
			h.logger.Debug().Err(err).Msg("websocket reply")
			return
		}
	}
}

// reply builds the response to one inbound message. Subscriptions are
// acknowledged only; every subscriber receives the full price stream.
func reply(data []byte) any {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorMessage{Type: "error", Message: "invalid message"}
	}

	assets := msg.Assets
	if msg.Asset != "" {
		assets = append([]string{msg.Asset}, assets...)
	}

	switch msg.Action {
	case "subscribe":
		if len(assets) == 0 {
			return errorMessage{Type: "error", Message: "subscribe requires asset or assets"}
		}
		return ackMessage{Type: "subscribed", Assets: assets}
	case "unsubscribe":
		if assets == nil {
			assets = []string{}
		}
		return ackMessage{Type: "unsubscribed", Assets: assets}
	default:
		return errorMessage{Type: "error", Message: fmt.Sprintf("unknown action %q", msg.Action)}
	}
}
