package tts

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"pawvox/internal/kv"
)

const usageKey = "tts_usage"

// Usage is one calendar month of speech-engine traffic.
type Usage struct {
	Month       string `json:"month"`
	Characters  int    `json:"characters"`
	Calls       int    `json:"calls"`
	CacheHits   int    `json:"cacheHits"`
	CacheMisses int    `json:"cacheMisses"`
	Errors      int    `json:"errors"`
}

type UsageTracker struct {
	mu      sync.Mutex
	u       Usage
	persist kv.Store
	now     func() time.Time
}

func monthOf(t time.Time) string { return t.Format("2006-01") }

// NewUsageTracker restores the persisted counters, resetting them when they
// belong to an earlier month.
func NewUsageTracker(persist kv.Store, now func() time.Time) *UsageTracker {
	if now == nil {
		now = time.Now
	}
	t := &UsageTracker{persist: persist, now: now}
	if persist != nil {
		raw, err := persist.Get(context.Background(), usageKey)
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, &t.u); err != nil {
				log.Warn("Ignoring corrupt speech usage", "err", err)
				t.u = Usage{}
			}
		case !errors.Is(err, kv.ErrNotFound):
			log.Warn("Failed to restore speech usage", "err", err)
		}
	}
	if t.u.Month == "" {
		t.u.Month = monthOf(now())
	}
	t.CheckRollover()
	return t
}

// CheckRollover zeroes the counters when the wall-clock month changed and
// reports whether it did.
func (t *UsageTracker) CheckRollover() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rolloverLocked()
}

func (t *UsageTracker) rolloverLocked() bool {
	m := monthOf(t.now())
	if t.u.Month == m {
		return false
	}
	log.Info("Speech usage rolled over", "from", t.u.Month, "to", m, "characters", t.u.Characters)
	t.u = Usage{Month: m}
	t.saveLocked()
	return true
}

func (t *UsageTracker) update(f func(*Usage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	f(&t.u)
	t.saveLocked()
}

func (t *UsageTracker) RecordSynthesis(chars int) {
	t.update(func(u *Usage) {
		u.Characters += chars
		u.Calls++
	})
}

func (t *UsageTracker) RecordHit() { t.update(func(u *Usage) { u.CacheHits++ }) }
func (t *UsageTracker) RecordMiss() { t.update(func(u *Usage) { u.CacheMisses++ }) }
func (t *UsageTracker) RecordError() { t.update(func(u *Usage) { u.Errors++ }) }

func (t *UsageTracker) Usage(context.Context) Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.u
}

// CharactersUsed feeds the composer's conservation check.
func (t *UsageTracker) CharactersUsed(ctx context.Context) (int, error) {
	return t.Usage(ctx).Characters, nil
}

func (t *UsageTracker) saveLocked() {
	if t.persist == nil {
		return
	}
	raw, err := json.Marshal(t.u)
	if err != nil {
		return
	}
	if err := t.persist.Set(context.Background(), usageKey, raw); err != nil {
		log.Warn("Failed to persist speech usage", "err", err)
	}
}
