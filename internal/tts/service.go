package tts

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"unicode/utf8"

	"pawvox/internal/metrics"
	"pawvox/pkg/audioconv"
)

var ErrEmptyText = errors.New("tts: empty text")

// AudioPath is the URL prefix cached audio is served under.
const AudioPath = "/v1/tts/"

type Service struct {
	synth Synthesizer
	cache *Cache
	usage *UsageTracker
}

func NewService(synth Synthesizer, cache *Cache, usage *UsageTracker) *Service {
	return &Service{synth: synth, cache: cache, usage: usage}
}

func (s *Service) Usage() *UsageTracker { return s.usage }

// Speak returns cached audio for text, synthesizing it on a miss.
func (s *Service) Speak(ctx context.Context, text string) (CacheEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CacheEntry{}, ErrEmptyText
	}
	hash := Hash(text)

	if e, ok := s.cache.Get(ctx, hash); ok {
		s.usage.RecordHit()
		metrics.TTSCache.WithLabelValues("hit").Inc()
		return e, nil
	}
	s.usage.RecordMiss()
	metrics.TTSCache.WithLabelValues("miss").Inc()

	if s.synth == nil {
		return CacheEntry{}, ErrNoSynthesizer
	}

	chars := utf8.RuneCountInString(text)
	s.usage.RecordSynthesis(chars)
	metrics.TTSCharacters.Add(float64(chars))

	audio, format, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.usage.RecordError()
		metrics.TTSErrors.Inc()
		return CacheEntry{}, fmt.Errorf("synthesize: %w", err)
	}

	e := CacheEntry{
		Text:           text,
		TextHash:       hash,
		Audio:          audio,
		Format:         format,
		AudioURL:       AudioPath + hash,
		CreatedAt:      s.cache.now(),
		CharacterCount: chars,
	}
	e.LastAccessedAt = e.CreatedAt
	if info, err := audioconv.Probe(audio, format); err == nil {
		e.Format = info.Format
		e.Duration = info.Duration
	} else {
		log.Debug("Could not probe synthesized audio", "format", format, "err", err)
	}

	s.cache.Put(ctx, e)
	return e, nil
}

// Lookup serves a cached blob by hash.
func (s *Service) Lookup(ctx context.Context, hash string) (CacheEntry, bool) {
	return s.cache.Get(ctx, hash)
}
