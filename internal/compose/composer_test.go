package compose

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"pawvox/pkg/voice"
)

type fixedUsage struct {
	chars int
	err   error
}

func (f fixedUsage) CharactersUsed(context.Context) (int, error) { return f.chars, f.err }

func records(n int) []voice.Record {
	out := make([]voice.Record, n)
	for i := range out {
		out[i] = voice.Record{Title: "Checkup", When: time.Date(2026, 10, 15+i, 15, 0, 0, 0, time.UTC)}
	}
	return out
}

func query(queryType string, key voice.TemplateKey, n int) voice.CommandResult {
	return voice.CommandResult{
		Success: true,
		Key:     key,
		Data:    voice.QueryData{QueryType: queryType, Pet: "Max", Records: records(n)},
	}
}

func TestComposeLogFeeding(t *testing.T) {
	res := voice.CommandResult{
		Success: true,
		Key:     voice.KeyLogFeeding,
		Data:    voice.LogData{Kind: "feeding", Pet: "Max", Amount: 2, Unit: "cups", FoodType: "dry food"},
	}
	got := New(nil).Compose(res, voice.Context{})
	for _, want := range []string{"Max", "2", "dry food"} {
		if !strings.Contains(got.Text, want) {
			t.Errorf("Text = %q, want it to contain %q", got.Text, want)
		}
	}
	if got.Priority != voice.PriorityNormal {
		t.Errorf("Priority = %s, want normal", got.Priority)
	}
}

func TestComposeEmptyAppointments(t *testing.T) {
	got := New(nil).Compose(query(voice.QueryAppointments, voice.KeyQueryAppointments, 0), voice.Context{})
	if !regexp.MustCompile(`(?i)no|doesn't have`).MatchString(got.Text) {
		t.Errorf("Text = %q, want a no-appointments reply", got.Text)
	}
	if !strings.Contains(got.Text, "schedule") {
		t.Errorf("Text = %q, want an offer to schedule", got.Text)
	}
}

func TestComposeSummaryThresholds(t *testing.T) {
	tests := []struct {
		queryType string
		key       voice.TemplateKey
		limit     int
	}{
		{voice.QueryAppointments, voice.KeyQueryAppointments, 3},
		{voice.QueryMedications, voice.KeyQueryMedications, 3},
		{voice.QueryFeeding, voice.KeyQueryFeeding, 5},
		{voice.QueryHealthRecords, voice.KeyQueryHealthRecords, 4},
	}
	c := New(nil)
	for _, tt := range tests {
		at := c.Compose(query(tt.queryType, tt.key, tt.limit), voice.Context{})
		if strings.Contains(at.Text, "show more details") {
			t.Errorf("%s with %d records was summarised: %q", tt.queryType, tt.limit, at.Text)
		}
		over := c.Compose(query(tt.queryType, tt.key, tt.limit+1), voice.Context{})
		if !strings.Contains(over.Text, "show more details") {
			t.Errorf("%s with %d records not summarised: %q", tt.queryType, tt.limit+1, over.Text)
		}
	}
}

func TestComposeKeySelection(t *testing.T) {
	c := New(nil)
	tests := []struct {
		name string
		res  voice.CommandResult
		want string
	}{
		{"message as key", voice.CommandResult{Success: true, Message: "log_feeding", Data: voice.LogData{Pet: "Max", Amount: 1, Unit: "cup"}}, "1 cup"},
		{"visual component", voice.CommandResult{Success: true, VisualComponent: "navigation", Data: voice.NavigationData{Target: "settings"}}, "opening settings"},
		{"substring", voice.CommandResult{Message: "no handler registered for cancel"}, "can't handle"},
		{"default failure", voice.CommandResult{Message: "The dashboard is asleep."}, "Sorry"},
		{"default success", voice.CommandResult{Success: true}, "done"},
	}
	for _, tt := range tests {
		got := c.Compose(tt.res, voice.Context{})
		if !strings.Contains(got.Text, tt.want) {
			t.Errorf("%s: Text = %q, want it to contain %q", tt.name, got.Text, tt.want)
		}
	}
}

func TestComposeUrgent(t *testing.T) {
	res := voice.CommandResult{Key: voice.KeyNeedPet, Message: "Which pet do you mean?", Priority: voice.PriorityUrgent}
	got := New(nil).Compose(res, voice.Context{})
	if got.Priority != voice.PriorityUrgent || !strings.Contains(got.Text, "vet") {
		t.Errorf("Compose() = %+v, want an urgent vet warning", got)
	}
}

func TestConservationMode(t *testing.T) {
	c := New(fixedUsage{chars: 7999})
	if err := c.UpdateConservationMode(context.Background()); err != nil || c.Conserving() {
		t.Fatalf("conserving at 7999 chars (err %v)", err)
	}
	c = New(fixedUsage{chars: 8000})
	if err := c.UpdateConservationMode(context.Background()); err != nil || !c.Conserving() {
		t.Fatalf("not conserving at 8000 chars (err %v)", err)
	}
	if err := New(fixedUsage{err: errors.New("offline")}).UpdateConservationMode(context.Background()); err == nil {
		t.Error("usage error was swallowed")
	}
}

func TestConservationShortensEveryReply(t *testing.T) {
	results := []voice.CommandResult{
		{Success: true, Key: voice.KeyLogFeeding, Data: voice.LogData{Pet: "Max", Amount: 2, Unit: "cups", FoodType: "dry food"}},
		{Success: true, Key: voice.KeyNavigate, Data: voice.NavigationData{Target: "appointments", Pet: "Bella"}},
		query(voice.QueryAppointments, voice.KeyQueryAppointments, 0),
		query(voice.QueryAppointments, voice.KeyQueryAppointments, 2),
		query(voice.QueryMedications, voice.KeyQueryMedications, 7),
		{Success: true, Key: voice.KeyHelp, Data: voice.HelpData{Commands: []string{"Go to appointments", "Help"}}},
		{Key: voice.KeyNeedMoreInfo, FollowUpPrompt: "How much did Max eat?"},
		{Key: voice.KeyError, Message: "Sorry, I couldn't save that right now."},
		{Key: voice.KeyNoHandler, Message: "no handler registered for bulk_action"},
		{Key: voice.KeyActivityNotAllowed, Data: voice.ActivityRejection{Pet: "Bella", PetType: "cat", Activity: "walk", Allowed: []string{"play", "grooming"}}},
	}

	normal := New(nil)
	short := New(nil)
	short.SetConservation(true)

	for _, r := range results {
		long := normal.Compose(r, voice.Context{}).Text
		got := short.Compose(r, voice.Context{})
		if len(got.Text) >= len(long) {
			t.Errorf("conserved %q is not shorter than %q", got.Text, long)
		}
		if len(got.Text) > MaxShortLen {
			t.Errorf("conserved %q is %d chars, want <= %d", got.Text, len(got.Text), MaxShortLen)
		}
		for _, p := range Pleasantries() {
			if strings.Contains(got.Text, p) {
				t.Errorf("conserved %q still contains %q", got.Text, p)
			}
		}
		if got.DisplayText != long {
			t.Errorf("DisplayText = %q, want the full reply", got.DisplayText)
		}
	}
}

func TestShorten(t *testing.T) {
	in := "Got it! I logged 2 cups of dry food for Max."
	if got := Shorten(in); got != "I logged 2 cups of dry food for Max." {
		t.Errorf("Shorten() = %q", got)
	}
	long := "Here's what I found. Max has 7 medications. The latest is Heartgard on Thu, Oct 15 at 3:00 PM. Say \"show more details\" to hear them all."
	got := Shorten(long)
	if len(got) > MaxShortLen || !strings.HasSuffix(got, "...") || strings.HasPrefix(got, "Here's") {
		t.Errorf("Shorten() = %q (%d chars)", got, len(got))
	}
}

func TestComposeConfirmationAndClarification(t *testing.T) {
	c := New(nil)
	in := voice.Intent{Action: voice.ActionCancel, Target: "appointments", Parameters: map[string]string{"pet": "Max"}}
	got := c.ComposeConfirmation(in, voice.Context{})
	if !strings.Contains(got.Text, "cancel Max's appointments") || !strings.Contains(got.Text, "yes or no") {
		t.Errorf("ComposeConfirmation() = %q", got.Text)
	}

	clar := c.ComposeClarification(voice.Intent{Action: voice.ActionQuery, Target: "general"}, voice.Context{ActivePet: "Bella"})
	if !strings.Contains(clar.Text, "not sure") || !strings.Contains(clar.Text, "Bella") {
		t.Errorf("ComposeClarification() = %q", clar.Text)
	}

	c.SetConservation(true)
	if short := c.ComposeError(ErrNetwork, voice.Context{}); strings.HasPrefix(short.Text, "Sorry") {
		t.Errorf("ComposeError() in conservation = %q", short.Text)
	}
}
