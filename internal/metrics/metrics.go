// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawvox_turns_total",
		Help: "Voice turns processed, by action and outcome",
	}, []string{"action", "status"})

	TurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pawvox_turn_latency_seconds",
		Help:    "Time from utterance to composed response",
		Buckets: prometheus.DefBuckets,
	})

	NLUFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawvox_nlu_fallbacks_total",
		Help: "Utterances parsed by the local heuristics",
	})

	TTSCharacters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawvox_tts_characters_total",
		Help: "Characters sent to the speech engine",
	})

	TTSCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawvox_tts_cache_total",
		Help: "TTS cache lookups by result",
	}, []string{"result"})

	TTSErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pawvox_tts_errors_total",
		Help: "Failed synthesis calls",
	})

	ConservationMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pawvox_conservation_mode",
		Help: "1 while replies are shortened to save speech budget",
	})

	SyncClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pawvox_sync_clients",
		Help: "Connected sync websocket clients",
	})

	DashboardEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pawvox_dashboard_events_total",
		Help: "Manual dashboard events relayed into the conversation",
	}, []string{"kind"})
)

func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
