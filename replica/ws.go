package replica

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"paperarena/protocol"
)

const writeWait = 5 * time.Second

// WSTransport 基于 gorilla/websocket 的 Transport。
// gorilla 的连接只允许一个并发写者，写操作由 mu 串行化。
type WSTransport struct {
	conn  *websocket.Conn
	codec protocol.Codec

	mu        sync.Mutex
	closeOnce sync.Once
}

// Dial 连接服务端；roomID 为空时由服务端选择默认房间
func Dial(ctx context.Context, rawURL, roomID string, codec protocol.Codec) (*WSTransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse url %q", rawURL)
	}
	q := u.Query()
	q.Set("codec", codec.Name())
	if roomID != "" {
		q.Set("room", roomID)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", u.Redacted())
	}
	return &WSTransport{conn: conn, codec: codec}, nil
}

func (t *WSTransport) Send(event string, payload any) error {
	data, err := t.codec.Encode(event, payload)
	if err != nil {
		return err
	}
	msgType := websocket.TextMessage
	if t.codec.Binary() {
		msgType = websocket.BinaryMessage
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(msgType, data)
}

// Close 先尽量发送关闭帧，再关闭底层连接；可重复调用
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		t.mu.Unlock()
		err = t.conn.Close()
	})
	return err
}

// Run 读循环：解码每条消息交给 r 处理，直到连接关闭或 ctx 结束。
// 帧不连续只记录日志，重同步已由 Replica 发起。
func (t *WSTransport) Run(ctx context.Context, r *Replica) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read message")
		}
		env, err := t.codec.Decode(data)
		if err != nil {
			r.log.Warnw("bad message from server", "err", err)
			continue
		}
		if err := r.HandleEvent(env); err != nil {
			if errors.Is(err, ErrDesync) {
				r.log.Infow("frame gap", "err", err)
				continue
			}
			return err
		}
	}
}
