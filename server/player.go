package server

import (
	"paperarena/game"
	"paperarena/protocol"
)

// Conn 房间眼中的一条连接（写端），由 ClientConn 或测试桩实现
type Conn interface {
	ID() string
	Codec() protocol.Codec
	// Enqueue 非阻塞投递，队列满或已关闭时返回 false
	Enqueue(b []byte) bool
	// Close 发送队列排空后关闭连接，可重复调用
	Close()
}

// Client 已加入房间的连接；Num 为空表示观战者
type Client struct {
	Conn Conn
	Name string
	Num  *game.PlayerID

	lastResync int // 最近一次提供快照时的帧号
}

// Playing 是否控制着一个玩家
func (c *Client) Playing() bool { return c.Num != nil }

// sendTo 用连接自己的编码发送一个事件，返回是否进入了发送队列
func sendTo(c Conn, event string, payload any) bool {
	b, err := c.Codec().Encode(event, payload)
	if err != nil {
		Log.Errorw("encode event", "event", event, "conn", c.ID(), "err", err)
		return false
	}
	if !c.Enqueue(b) {
		Log.Debugw("send queue full, message dropped", "event", event, "conn", c.ID())
		return false
	}
	return true
}
