package nlu

import (
	"context"
	"errors"
	"testing"
	"time"

	"pawvox/pkg/voice"
)

// fakeBackend replays a canned reply or error and counts calls.
type fakeBackend struct {
	reply string
	err   error
	calls int
}

func (f *fakeBackend) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

var fixedNow = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)

func newTestExtractor(b Backend) *Extractor {
	return NewExtractor(b, WithClock(func() time.Time { return fixedNow }), WithKnownPets("Max", "Bella"))
}

func entity(ents []voice.Entity, t voice.EntityType) (voice.Entity, bool) {
	for _, e := range ents {
		if e.Type == t {
			return e, true
		}
	}
	return voice.Entity{}, false
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text       string
		wantAction voice.Action
		wantTarget string
	}{
		{"Log feeding for Max, 2 cups of dry food", voice.ActionLogData, "feeding"},
		{"Record Bella's weight, 12 kg", voice.ActionLogData, "weight"},
		{"I gave Max his heartgard", voice.ActionLogData, "medication"},
		{"Spent $45 at the vet today", voice.ActionLogData, "expense"},
		{"We walked for 30 minutes", voice.ActionLogData, "activity"},
		{"When is Max's next appointment?", voice.ActionQuery, voice.QueryAppointments},
		{"What medications is Bella on", voice.ActionQuery, voice.QueryMedications},
		{"Any tips for a new puppy?", voice.ActionQuery, voice.QueryTips},
		{"How much did Max eat today", voice.ActionQuery, voice.QueryFeeding},
		{"Show more details", voice.ActionQuery, voice.QueryShowMore},
		{"Go to the appointments page", voice.ActionNavigate, "appointments"},
		{"Show me Max's health records", voice.ActionNavigate, "max health records"},
		{"What can you do?", voice.ActionHelp, "general"},
		{"Schedule a vet visit for Bella tomorrow", voice.ActionSchedule, "appointment"},
		{"Cancel the appointment", voice.ActionCancel, voice.QueryAppointments},
		{"Emergency! My dog is bleeding", voice.ActionQuery, voice.QueryHealth},
		{"blah blah", voice.ActionQuery, "general"},
		{"What's in Bella's health record?", voice.ActionQuery, voice.QueryHealthRecords},
		{"Record a note about Bella", voice.ActionLogData, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			a, target, _ := Classify(tt.text)
			if a != tt.wantAction || target != tt.wantTarget {
				t.Errorf("Classify(%q) = %s/%q, want %s/%q", tt.text, a, target, tt.wantAction, tt.wantTarget)
			}
		})
	}
}

func TestExtractEntities_Feeding(t *testing.T) {
	ents := ExtractEntities("Log feeding for Max, 2 cups of dry food", nil, fixedNow)

	amt, ok := entity(ents, voice.EntityAmount)
	if !ok || amt.Value != "2" || amt.Resolved.(float64) != 2 {
		t.Errorf("amount = %+v, want 2", amt)
	}
	unit, ok := entity(ents, voice.EntityUnit)
	if !ok || unit.Value != "cups" {
		t.Errorf("unit = %+v, want cups", unit)
	}
	act, ok := entity(ents, voice.EntityActivity)
	if !ok || act.Value != "feeding" {
		t.Errorf("activity = %+v, want feeding", act)
	}
	pet, ok := entity(ents, voice.EntityPetName)
	if !ok || pet.Value != "Max" {
		t.Errorf("pet_name = %+v, want Max", pet)
	}
	if got := FoodType("Log feeding for Max, 2 cups of dry food"); got != "dry food" {
		t.Errorf("FoodType() = %q, want %q", got, "dry food")
	}
}

func TestExtractEntities_DatesAndTimes(t *testing.T) {
	tests := []struct {
		text     string
		wantDate time.Time
		wantTime string
	}{
		{"tomorrow at 3:30 pm", fixedNow.AddDate(0, 0, 1), "15:30"},
		{"today at 9am", fixedNow, "09:00"},
		{"on 11/2 at 12:15 am", time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), "00:15"},
		{"December 3rd at 10:05 am", time.Date(2026, 12, 3, 0, 0, 0, 0, time.UTC), "10:05"},
		{"on friday at 7 pm", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), "19:00"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ents := ExtractEntities(tt.text, nil, fixedNow)
			d, ok := entity(ents, voice.EntityDate)
			if !ok {
				t.Fatalf("no date in %+v", ents)
			}
			want := time.Date(tt.wantDate.Year(), tt.wantDate.Month(), tt.wantDate.Day(), 0, 0, 0, 0, time.UTC)
			if got := d.Resolved.(time.Time); !got.Equal(want) {
				t.Errorf("date = %v, want %v", got, want)
			}
			var times []string
			for _, e := range ents {
				if e.Type == voice.EntityTime {
					times = append(times, e.Resolved.(string))
				}
			}
			if len(times) != 1 || times[0] != tt.wantTime {
				t.Errorf("times = %v, want [%s]", times, tt.wantTime)
			}
		})
	}
}

func TestExtractEntities_Vocabulary(t *testing.T) {
	ents := ExtractEntities("Gave my kitten apoquel at the park", []string{"Luna"}, fixedNow)
	if m, ok := entity(ents, voice.EntityMedication); !ok || m.Value != "apoquel" {
		t.Errorf("medication = %+v", m)
	}
	if p, ok := entity(ents, voice.EntityPetType); !ok || p.Resolved != "cat" {
		t.Errorf("pet_type = %+v, want resolved cat", p)
	}
	if l, ok := entity(ents, voice.EntityLocation); !ok || l.Value != "park" {
		t.Errorf("location = %+v", l)
	}
	if _, ok := entity(ents, voice.EntityPetName); ok {
		t.Error("unexpected pet name for utterance without one")
	}
}

func TestExtractEntities_Contractions(t *testing.T) {
	known := []string{"Max", "Bella"}
	tests := []struct {
		text  string
		known []string
		want  []string
	}{
		{"Where's Max's next appointment?", known, []string{"Max"}},
		{"That's all, what medications is Bella on?", known, []string{"Bella"}},
		{"Let's go to the medications page", known, nil},
		{"There's a new vet visit for Rocky", known, []string{"Rocky"}},
		{"Here's Luna's weight", nil, []string{"Luna"}},
		{"Who's due for Heartgard?", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var got []string
			for _, e := range ExtractEntities(tt.text, tt.known, fixedNow) {
				if e.Type == voice.EntityPetName {
					got = append(got, e.Value)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("pet names = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("pet names = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestParse_ContractionKeepsKnownPet(t *testing.T) {
	in := newTestExtractor(nil).Parse(context.Background(), "Where's Max's next appointment?", voice.Context{})
	if in.Parameters["pet"] != "Max" {
		t.Errorf("pet param = %q, want Max", in.Parameters["pet"])
	}
}

func TestDetectPriority(t *testing.T) {
	tests := []struct {
		text string
		want voice.Priority
	}{
		{"Emergency! My dog is bleeding", voice.PriorityUrgent},
		{"Max is vomiting and bleeding", voice.PriorityUrgent},
		{"Bella has been vomiting since morning", voice.PriorityHigh},
		{"MAX ATE SOMETHING WEIRD", voice.PriorityHigh},
		{"Where is the leash!!", voice.PriorityHigh},
		{"Log feeding for Max", voice.PriorityNormal},
		{"Book a grooming whenever, no rush", voice.PriorityLow},
	}
	for _, tt := range tests {
		if got := DetectPriority(tt.text); got != tt.want {
			t.Errorf("DetectPriority(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestParse_UsesBackendReply(t *testing.T) {
	b := &fakeBackend{reply: "```json\n{\"action\":\"log_data\",\"target\":\"Feeding\",\"parameters\":{\"pet\":\"Max\",\"amount\":2},\"confidence\":0.95,\"entities\":[{\"type\":\"pet_name\",\"value\":\"Max\"}]}\n```"}
	in := newTestExtractor(b).Parse(context.Background(), "Log feeding for Max, 2 cups of dry food", voice.Context{})

	if b.calls != 1 {
		t.Fatalf("backend calls = %d, want 1", b.calls)
	}
	if in.Action != voice.ActionLogData || in.Target != "feeding" {
		t.Errorf("intent = %s/%s, want log_data/feeding", in.Action, in.Target)
	}
	if in.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", in.Confidence)
	}
	if in.Param("amount") != "2" || in.Param("foodType") != "dry food" {
		t.Errorf("parameters = %v", in.Parameters)
	}
	if in.ID == "" {
		t.Error("intent has no ID")
	}
	n := 0
	for _, e := range in.Entities {
		if e.Type == voice.EntityPetName {
			n++
		}
	}
	if n != 1 {
		t.Errorf("pet_name entities = %d, want duplicates merged to 1", n)
	}
}

func TestParse_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
	}{
		{"offline", nil},
		{"backend error", &fakeBackend{err: errors.New("connection refused")}},
		{"prose reply", &fakeBackend{reply: "Sure! I think they want to log food."}},
		{"malformed json", &fakeBackend{reply: "{\"action\": log_data"}},
		{"unknown action", &fakeBackend{reply: "{\"action\":\"dance\"}"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestExtractor(tt.backend).Parse(context.Background(), "Log feeding for Max, 2 cups of dry food", voice.Context{})
			if in.Action != voice.ActionLogData || in.Target != "feeding" {
				t.Errorf("intent = %s/%s, want log_data/feeding", in.Action, in.Target)
			}
			if in.Confidence != confidenceHeuristic {
				t.Errorf("Confidence = %v, want %v", in.Confidence, confidenceHeuristic)
			}
			if len(in.Ambiguities) != 0 {
				t.Errorf("Ambiguities = %v, want none for a classified utterance", in.Ambiguities)
			}
		})
	}
}

func TestParse_NothingUsable(t *testing.T) {
	in := newTestExtractor(&fakeBackend{reply: "no idea"}).Parse(context.Background(), "hmm banana", voice.Context{})
	if in.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", in.Confidence)
	}
	if len(in.Ambiguities) != 1 || in.Ambiguities[0] != voice.AmbiguityFallback {
		t.Errorf("Ambiguities = %v, want [%q]", in.Ambiguities, voice.AmbiguityFallback)
	}
}

func TestParse_EmergencyIsUrgent(t *testing.T) {
	b := &fakeBackend{reply: `{"action":"navigate","target":"dashboard","priority":"low"}`}
	for _, backend := range []Backend{nil, b} {
		in := newTestExtractor(backend).Parse(context.Background(), "Emergency! My dog is bleeding", voice.Context{})
		if in.Priority != voice.PriorityUrgent {
			t.Errorf("Priority = %s, want urgent (action %s)", in.Priority, in.Action)
		}
	}
}

func TestParse_PronounUsesActivePet(t *testing.T) {
	e := newTestExtractor(nil)
	in := e.Parse(context.Background(), "When is his next appointment?", voice.Context{ActivePet: "Bella"})
	if in.Param("pet") != "Bella" {
		t.Errorf("pet = %q, want active pet Bella", in.Param("pet"))
	}
	in = e.Parse(context.Background(), "When is the next appointment?", voice.Context{ActivePet: "Bella"})
	if in.Param("pet") != "" {
		t.Errorf("pet = %q, want empty without a pronoun", in.Param("pet"))
	}
}

func TestParse_Confirmation(t *testing.T) {
	e := newTestExtractor(nil)
	if in := e.Parse(context.Background(), "Cancel Max's appointment", voice.Context{}); !in.RequiresConfirmation {
		t.Error("cancel did not require confirmation")
	}
	if in := e.Parse(context.Background(), "When is Max's appointment", voice.Context{}); in.RequiresConfirmation {
		t.Error("query required confirmation")
	}
}

func TestBreakerSkipsBackendWhenOpen(t *testing.T) {
	b := &fakeBackend{err: errors.New("down")}
	e := newTestExtractor(b)
	for i := 0; i < 5; i++ {
		e.Parse(context.Background(), "log feeding", voice.Context{})
	}
	if b.calls != 3 {
		t.Errorf("backend calls = %d, want 3 before the breaker opens", b.calls)
	}
}
