package server

import (
	"sort"
	"sync"
	"time"

	"paperarena/config"
)

// DefaultRoom 未指定房间时使用
const DefaultRoom = "room-1"

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	cfg config.Config

	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool
}

func NewRoomManager(cfg config.Config) *RoomManager {
	return &RoomManager{cfg: cfg, rooms: make(map[string]*Room)}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick；关闭后返回 nil
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.cfg, time.Now().UnixNano())
		m.rooms[id] = r
		r.StartTicker()
		Log.Infow("room created", "room", id, "grid", m.cfg.Game.GridSize, "tickRate", m.cfg.TickRate)
	}
	return r
}

// Get 只查找，不创建
func (m *RoomManager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Rooms 按 ID 排序的全部房间
func (m *RoomManager) Rooms() []*Room {
	m.mu.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown 停止所有房间，之后不再创建新房间
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
}
