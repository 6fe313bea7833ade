// Package app assembles the assistant from configuration. Both the REPL and
// the daemon build through here.
package app

import (
	"fmt"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"pawvox/internal/assistant"
	"pawvox/internal/bridge"
	"pawvox/internal/compose"
	"pawvox/internal/config"
	"pawvox/internal/convo"
	"pawvox/internal/dashboard"
	"pawvox/internal/dispatch"
	"pawvox/internal/handlers"
	"pawvox/internal/kv"
	"pawvox/internal/nlu"
	"pawvox/internal/proxy"
	"pawvox/internal/tts"
)

type App struct {
	Assistant *assistant.Assistant
	Store     *convo.Store
	Bridge    *bridge.Manager
	Speech    *tts.Service
	Dashboard dashboard.API

	kv kv.Store
}

func Build(cfg *config.Config) (*App, error) {
	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, 0)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	store, err := kv.Open(cfg.KV)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.KV.Backend, err)
	}
	log.Debug("Opened key-value store", "backend", cfg.KV.Backend)

	var api dashboard.API
	if cfg.DashboardURL != "" {
		api = dashboard.NewClient(cfg.DashboardURL, cfg.DashboardToken, httpClient)
	} else {
		log.Warn("PAWVOX_DASHBOARD_URL not set, using an in-memory dashboard")
		api = dashboard.NewMemory()
	}

	var backend nlu.Backend
	var synth tts.Synthesizer
	if cfg.OpenAIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIKey), option.WithHTTPClient(httpClient)}
		if cfg.NLUBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.NLUBaseURL))
		}
		client := openai.NewClient(opts...)
		backend = nlu.NewOpenAIBackend(client, cfg.NLUModel)
		if cfg.SpeechEnabled {
			synth = tts.NewOpenAISynth(client, cfg.TTSModel, cfg.TTSVoice)
		}
	}

	cache, err := tts.NewCache(cfg.TTSCacheSize, store, nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("speech cache: %w", err)
	}
	usage := tts.NewUsageTracker(store, nil)
	speech := tts.NewService(synth, cache, usage)

	conv := convo.NewStore(store)
	mgr := bridge.NewManager(conv, nil)
	d := dispatch.New(conv)
	handlers.RegisterAll(d, api, mgr, nil)

	opts := []assistant.Option{
		assistant.WithBridge(mgr),
		assistant.WithUsage(usage),
		assistant.WithPets(api),
	}
	if synth != nil {
		opts = append(opts, assistant.WithSpeaker(speech))
	}
	a := assistant.New(
		nlu.NewExtractor(backend),
		conv,
		d,
		compose.New(usage, compose.WithBudget(cfg.TTSBudget, cfg.ConserveAt)),
		opts...,
	)

	return &App{
		Assistant: a,
		Store:     conv,
		Bridge:    mgr,
		Speech:    speech,
		Dashboard: api,
		kv:        store,
	}, nil
}

func (a *App) Close() error { return a.kv.Close() }
