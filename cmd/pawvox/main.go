package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"pawvox/internal/app"
	"pawvox/internal/config"
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
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}

	a, err := app.Build(cfg)
	if err != nil {
		log.Error("Failed to build assistant", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go a.Assistant.Run(ctx)

	fmt.Println("pawvox ready. Type a request, :context, :open, :close or :quit.")
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case ":quit", ":q":
			return
		case ":open":
			a.Assistant.OpenSession()
			continue
		case ":close":
			a.Assistant.CloseSession()
			continue
		case ":context":
			out, _ := json.MarshalIndent(a.Assistant.Context(), "", "  ")
			fmt.Println(string(out))
			continue
		}

		resp := a.Assistant.Turn(ctx, line)
		fmt.Println(resp.Text)
		if resp.DisplayText != "" && resp.DisplayText != resp.Text {
			fmt.Println("  (screen)", resp.DisplayText)
		}
		if resp.AudioURL != "" {
			log.Debug("Reply audio", "url", resp.AudioURL)
		}
	}
}
