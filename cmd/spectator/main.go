// spectator 连接服务端并维护一份本地副本，定期打印副本状态。
// 可用于观察房间，也可用于验证确定性回放（-verify）。
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"paperarena/game"
	"paperarena/protocol"
	"paperarena/replica"
	"paperarena/server"
)

func main() {
	var (
		rawURL    string
		room      string
		codecName string
		name      string
		god       bool
		verify    bool
		every     time.Duration
	)
	flag.StringVar(&rawURL, "url", "ws://localhost:8080/ws", "server websocket url")
	flag.StringVar(&room, "room", server.DefaultRoom, "room id")
	flag.StringVar(&codecName, "codec", "json", "wire codec: json or msgpack")
	flag.StringVar(&name, "name", "", "player name")
	flag.BoolVar(&god, "god", true, "spectate without spawning a player")
	flag.BoolVar(&verify, "verify", false, "periodically verify positions with the server")
	flag.DurationVar(&every, "every", 2*time.Second, "status interval")
	flag.Parse()

	if err := server.InitLogger("", "info"); err != nil {
		panic(err)
	}
	defer server.SyncLogger()
	log := server.Log.With("room", room)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := replica.Dial(ctx, rawURL, room, protocol.CodecByName(codecName))
	if err != nil {
		log.Fatalw("dial", "err", err)
	}
	r := replica.New(t, nil, log)
	if err := r.Join(name, god); err != nil {
		log.Fatalw("join", "err", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer t.Close()
		return t.Run(ctx, r)
	})
	g.Go(func() error {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			state, kills := r.State(), r.Kills()
			r.View(func(e *game.Engine, user *game.Player) {
				if e == nil {
					log.Infow("waiting for snapshot", "state", state)
					return
				}
				fields := []any{"frame", e.Frame(), "players", e.Len(), "state", state, "kills", kills}
				if user != nil {
					fields = append(fields, "num", user.Num, "row", user.Row(), "col", user.Col())
				}
				log.Infow("replica", fields...)
			})
			if state == replica.Dead {
				killer, ok := r.Killer()
				log.Infow("player died", "killed", ok, "killer", killer)
				return nil
			}
			if verify {
				if err := r.SendVerify(); err != nil {
					log.Warnw("verify", "err", err)
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		log.Errorw("spectator stopped", "err", err)
	}
	_ = r.Disconnect()
}
