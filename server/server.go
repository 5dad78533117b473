package server

import (
	"net/http"

	"paperarena/config"
)

// Server HTTP + WebSocket 入口，持有房间管理器
type Server struct {
	cfg   config.Config
	rooms *RoomManager
}

func New(cfg config.Config) *Server {
	return &Server{cfg: cfg, rooms: NewRoomManager(cfg)}
}

// Rooms 房间管理器
func (s *Server) Rooms() *RoomManager { return s.rooms }

// Handler 路由：/ws 接入，其余为管理与监控接口
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/admin/rooms", s.HandleRooms)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Shutdown 停止所有房间并断开连接
func (s *Server) Shutdown() {
	s.rooms.Shutdown()
}
