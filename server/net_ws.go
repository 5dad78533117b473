package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"paperarena/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	id    string
	ws    *websocket.Conn
	codec protocol.Codec
	send  chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClientConn(ws *websocket.Conn, codec protocol.Codec) *ClientConn {
	return &ClientConn{
		id:    uuid.NewString(),
		ws:    ws,
		codec: codec,
		send:  make(chan []byte, 64),
	}
}

func (c *ClientConn) ID() string { return c.id }

func (c *ClientConn) Codec() protocol.Codec { return c.codec }

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
		return false
	}
}

// Close 关闭发送队列；写协程发完剩余消息后关闭底层连接
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定时 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	msgType := websocket.TextMessage
	if c.codec.Binary() {
		msgType = websocket.BinaryMessage
	}
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(msgType, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端事件，转换为 Input 注入房间
func (c *ClientConn) readPump(room *Room, limiter *rate.Limiter) {
	defer c.ws.Close()
	// 读泵退出时，通知房间在 Tick 线程中移除该连接；未加入房间的连接在这里关闭
	defer func() {
		room.RequestLeave(c)
		c.Close()
	}()
	c.ws.SetReadLimit(1 << 16)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	joined := false
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Log.Debugw("read error", "conn", c.id, "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		env, err := c.codec.Decode(data)
		if err != nil {
			sendTo(c, protocol.EventError, protocol.Error{Msg: err.Error()})
			continue
		}
		switch env.T {
		case protocol.EventHello:
			if joined {
				continue
			}
			hello, err := protocol.DecodePayload[protocol.Hello](env)
			if err != nil {
				sendTo(c, protocol.EventError, protocol.Error{Msg: err.Error()})
				continue
			}
			joined = true
			room.RequestJoin(c, hello)
		case protocol.EventFrame:
			if !limiter.Allow() {
				room.metrics.IncRateLimited()
				sendTo(c, protocol.EventAck, protocol.Ack{Msg: "rate limited"})
				continue
			}
			req, err := protocol.DecodePayload[protocol.HeadingRequest](env)
			if err != nil {
				room.metrics.IncRejected()
				sendTo(c, protocol.EventAck, protocol.Ack{Msg: err.Error()})
				continue
			}
			room.OnInput(Input{Kind: InputHeading, Conn: c, Heading: req})
		case protocol.EventRequestFrame:
			room.OnInput(Input{Kind: InputResync, Conn: c})
		case protocol.EventVerify:
			v, err := protocol.DecodePayload[protocol.Verify](env)
			if err != nil {
				sendTo(c, protocol.EventVerified, protocol.Verified{Msg: err.Error()})
				continue
			}
			room.OnInput(Input{Kind: InputVerify, Conn: c, Verify: v})
		default:
			Log.Debugw("unknown event", "conn", c.id, "event", env.T)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?room=room-1&codec=msgpack
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = DefaultRoom
	}
	room := s.rooms.GetOrCreateRoom(roomID)
	if room == nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	codec := protocol.CodecByName(r.URL.Query().Get("codec"))

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "err", err)
		return
	}

	client := NewClientConn(ws, codec)
	limiter := rate.NewLimiter(rate.Limit(s.cfg.InputRate), s.cfg.InputBurst)
	Log.Debugw("connection opened", "room", roomID, "conn", client.ID(), "codec", codec.Name(), "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump(room, limiter)
}
