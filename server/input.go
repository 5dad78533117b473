package server

import "paperarena/protocol"

// InputKind 入站请求类型
type InputKind int

const (
	InputJoin InputKind = iota
	InputHeading
	InputResync
	InputVerify
)

// Input 客户端请求（意图），由服务端在 Tick 中解释并驱动世界状态
type Input struct {
	Kind    InputKind
	Conn    Conn
	Hello   protocol.Hello
	Heading protocol.HeadingRequest
	Verify  protocol.Verify
}
