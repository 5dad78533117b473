package server

import (
	"encoding/json"
	"net/http"
)

// configPatch 管理接口可写字段；物理参数只读
type configPatch struct {
	MaxPlayers   *int `json:"maxPlayers,omitempty"`
	GridSize     *int `json:"gridSize,omitempty"`
	CellWidth    *int `json:"cellWidth,omitempty"`
	Speed        *int `json:"speed,omitempty"`
	NewPlayerLag *int `json:"newPlayerLag,omitempty"`
}

func (p configPatch) touchesPhysics() bool {
	return p.GridSize != nil || p.CellWidth != nil || p.Speed != nil || p.NewPlayerLag != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func roomParam(r *http.Request) string {
	if id := r.URL.Query().Get("room"); id != "" {
		return id
	}
	return DefaultRoom
}

// HandleAdminConfig 房间配置的读取与更新
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 只允许修改 maxPlayers
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	room, ok := s.rooms.Get(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, room.GameConfig())
	case http.MethodPost:
		var body configPatch
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.touchesPhysics() {
			http.Error(w, "physics parameters are fixed for the lifetime of a room", http.StatusBadRequest)
			return
		}
		if body.MaxPlayers != nil {
			if err := room.SetMaxPlayers(*body.MaxPlayers); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "config": room.GameConfig()})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	room, ok := s.rooms.Get(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	info := room.Info()
	writeJSON(w, http.StatusOK, map[string]any{
		"room":    roomID,
		"frame":   info.Frame,
		"filled":  info.Filled,
		"metrics": room.Metrics().Snapshot(),
	})
}

// HandleRooms 列出全部房间
// GET /admin/rooms
func (s *Server) HandleRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.rooms.Rooms()
	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.Info())
	}
	writeJSON(w, http.StatusOK, out)
}
