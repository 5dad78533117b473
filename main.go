package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"paperarena/config"
	"paperarena/server"
)

// PaperArena 入口：加载配置，启动 HTTP + WebSocket 服务
func main() {
	var addr, envFile string
	flag.StringVar(&addr, "addr", "", "server listen address, overrides PAPER_ADDR")
	flag.StringVar(&envFile, "env", ".env", "dotenv file to load, missing file is ignored")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		panic(err)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	srv := server.New(cfg)
	// 先预创建一个默认房间，便于快速试跑
	_ = srv.Rooms().GetOrCreateRoom(server.DefaultRoom)

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv.Handler()}

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Log.Infow("PaperArena listening", "addr", cfg.Addr, "grid", cfg.Game.GridSize, "tickRate", cfg.TickRate)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		server.Log.Info("Shutting down...")
		srv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		server.Log.Errorw("server stopped", "err", err)
	}
}
