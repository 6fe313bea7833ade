package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"pawvox/internal/api"
	"pawvox/internal/app"
	"pawvox/internal/bridge"
	"pawvox/internal/config"
	"pawvox/internal/ipc"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks Proxy Address (overrides PAWVOX_PROXY)")
	addr := cli.StringP("addr", "a", "", "HTTP listen address (overrides PAWVOX_HTTP_ADDR)")
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	a, err := app.Build(cfg)
	if err != nil {
		log.Error("Failed to build assistant", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := bridge.NewHub(a.Store)
	detach := hub.Attach(a.Bridge)
	defer detach()

	if cfg.SyncURL != "" {
		f, err := bridge.NewFollower(ctx, cfg.SyncURL, a.Store, a.Bridge, 0)
		if err != nil {
			log.Error("Failed to follow sync hub", "url", cfg.SyncURL, "err", err)
			os.Exit(1)
		}
		go f.Run(ctx)
		log.Info("Following sync hub", "url", cfg.SyncURL)
	}

	ctl, err := ipc.StartServer(*socket, func(msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case ipc.CmdSay:
			resp := a.Assistant.Turn(ctx, msg.Text)
			return ipc.Reply{OK: true, Text: resp.Text}
		case ipc.CmdOpen:
			a.Assistant.OpenSession()
			return ipc.Reply{OK: true}
		case ipc.CmdClose:
			a.Assistant.CloseSession()
			return ipc.Reply{OK: true}
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return ipc.Reply{Error: "unknown command " + msg.Cmd}
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer ctl.Close()

	srv := api.New(api.Config{
		Addr:   cfg.HTTPAddr,
		Voice:  a.Assistant,
		Audio:  a.Speech,
		Bridge: a.Bridge,
		Sync:   hub,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("HTTP server failed", "err", err)
			stop()
		}
	}()

	go a.Assistant.Run(ctx)
	log.Info("Boot up - successful", "addr", cfg.HTTPAddr, "socket", *socket)

	<-ctx.Done()
	log.Info("Shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdown); err != nil {
		log.Warn("HTTP shutdown", "err", err)
	}
}
