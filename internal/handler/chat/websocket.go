package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatService "github.com/zhouzirui/bloom/backend/internal/service/chat"
	"github.com/zhouzirui/bloom/backend/internal/service/notice"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// NoticeWatcher streams notices shown in a scope.
type NoticeWatcher interface {
	Watch(ctx context.Context, scope string) <-chan notice.Notice
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	logger    *zap.Logger
}

func (c *wsConn) send(kind string, data any) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("websocket write failed", zap.String("type", kind), zap.Error(err))
	}
}

func (c *wsConn) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := h.chatSvc.Snapshot(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn, sessionID: sessionID, logger: h.logger}
	h.logger.Info("websocket connected", zap.String("session", sessionID))

	// 断开连接即离开页面，进行中的请求随之取消。
	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		h.logger.Info("websocket closed", zap.String("session", sessionID))
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, ws)
	}()

	if h.notices != nil {
		notices := h.notices.Watch(ctx, sessionID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range notices {
				ws.send("notice", n)
			}
		}()
	}

	ws.send("connected", state)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			ws.sendError("session mismatch")
			continue
		}

		switch msg.Type {
		case "text":
			var text TextMessage
			if err := json.Unmarshal(msg.Data, &text); err != nil {
				ws.sendError("invalid text message")
				continue
			}
			h.dispatchText(ctx, &wg, ws, text.Text)
		case "ping":
			ws.send("pong", nil)
		default:
			ws.sendError("unsupported message type: " + msg.Type)
		}
	}
}

// dispatchText accepts the turn on the read loop, so frames claim the pending
// slot in arrival order, and waits for the reply in the background.
func (h *Handler) dispatchText(ctx context.Context, wg *sync.WaitGroup, ws *wsConn, text string) {
	attempt, err := h.chatSvc.Accept(ctx, ws.sessionID, text)
	if err != nil {
		if errors.Is(err, chatService.ErrSessionNotFound) {
			ws.sendError("session closed")
			return
		}
		ws.sendError(err.Error())
		return
	}
	ws.send("turn", attempt.UserTurn)
	ws.send("pending", map[string]bool{"pending": true})

	wg.Add(1)
	go func() {
		defer wg.Done()

		exchange, err := attempt.Finish(ctx)
		if err != nil {
			ws.sendError("session closed")
			return
		}
		if ctx.Err() != nil {
			return
		}

		if exchange.Reply != nil {
			ws.send("turn", exchange.Reply)
		}
		ws.send("outcome", exchange.Outcome)
		ws.send("pending", map[string]bool{"pending": false})
	}()
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
