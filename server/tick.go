package server

import (
	"time"

	"paperarena/game"
)

// summaryEvery 每隔多少 Tick 输出一次运行概况
const summaryEvery = 1000

// StartTicker 启动房间的 Tick 循环（单线程推进世界），重复调用无效
func (r *Room) StartTicker() {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.run()
	})
}

func (r *Room) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			r.closeAll()
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick 推进一帧：处理输入 → 更新世界 → 广播结果
func (r *Room) Tick() {
	start := time.Now()
	r.BeginTick()
	r.ProcessInputs()
	r.UpdateWorld()
	r.BroadcastDelta()
	r.metrics.AddTick(time.Since(start).Nanoseconds())

	if frame := r.engine.Frame(); frame%summaryEvery == 0 {
		Log.Infow("tick summary", "room", r.ID, "frame", frame, "players", r.engine.Len(),
			"sessions", len(r.clients), "avgTickMs", r.metrics.AvgTickMs(), "filled", r.territory.Filled())
	}
}

// BeginTick 重置帧内状态
func (r *Room) BeginTick() {
	r.newPlayers = nil
	r.result = game.FrameResult{}
}

// Stop 停止 Tick 并断开所有连接；未启动的房间直接返回
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	if r.started.Load() {
		<-r.done
	}
}

func (r *Room) closeAll() {
	for id, client := range r.clients {
		client.Conn.Close()
		delete(r.clients, id)
	}
	r.sessions.Store(0)
}
