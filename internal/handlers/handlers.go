// Package handlers implements the per-action command handlers the
// dispatcher routes to. Handlers never return raw errors: downstream
// failures become polite unsuccessful results.
package handlers

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"pawvox/internal/dashboard"
	"pawvox/pkg/voice"
)

// Notifier receives data changes made by voice commands.
type Notifier interface {
	NotifyDataChange(change voice.DataChange)
}

type NopNotifier struct{}

func (NopNotifier) NotifyDataChange(voice.DataChange) {}

// petName resolves the subject of intent: an explicit parameter, then the
// last pet_name entity, then the context's active pet.
func petName(in voice.Intent, c voice.Context) string {
	if p := in.Param("pet"); p != "" {
		return p
	}
	if e, ok := in.Last(voice.EntityPetName); ok {
		return e.Value
	}
	return c.ActivePet
}

func petType(in voice.Intent) string {
	if e, ok := in.First(voice.EntityPetType); ok {
		if s, _ := e.Resolved.(string); s != "" {
			return s
		}
		return e.Value
	}
	return ""
}

// failure converts a dashboard error into a result the user can hear.
func failure(err error, pet, doing string) voice.CommandResult {
	var apiErr *dashboard.APIError
	switch {
	case errors.Is(err, dashboard.ErrNoPet):
		return voice.Failed(voice.KeyNeedPet, fmt.Sprintf("I couldn't find a pet named %s.", pet))
	case errors.As(err, &apiErr):
		log.Warn("Dashboard rejected request", "doing", doing, "status", apiErr.Status, "body", apiErr.Body)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("Dashboard request cancelled", "doing", doing, "err", err)
	default:
		log.Error("Dashboard request failed", "doing", doing, "err", err)
	}
	return voice.Failed(voice.KeyError, fmt.Sprintf("Sorry, I couldn't %s right now.", doing))
}

// when combines the date and time parameters. Missing parts fall back to
// now's date and fallbackClock ("15:04").
func when(in voice.Intent, now time.Time, fallbackClock string) time.Time {
	day := now
	if d := in.Param("date"); d != "" {
		if t, err := time.ParseInLocation("2006-01-02", d, now.Location()); err == nil {
			day = t
		}
	}
	clock := in.Param("time")
	if clock == "" {
		clock = fallbackClock
	}
	if clock == "" {
		if in.Param("date") == "" {
			return now
		}
		clock = "09:00"
	}
	t, err := time.ParseInLocation("15:04", clock, now.Location())
	if err != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
