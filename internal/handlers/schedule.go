package handlers

import (
	"context"
	"time"

	"pawvox/internal/dashboard"
	"pawvox/pkg/voice"
)

type Schedule struct {
	api    dashboard.API
	notify Notifier
	now    func() time.Time
}

func NewSchedule(api dashboard.API, notify Notifier, now func() time.Time) *Schedule {
	if notify == nil {
		notify = NopNotifier{}
	}
	if now == nil {
		now = time.Now
	}
	return &Schedule{api: api, notify: notify, now: now}
}

func (*Schedule) CanExecute(in voice.Intent) bool { return in.Action == voice.ActionSchedule }

func (*Schedule) RequiredParameters() []string { return []string{"pet", "date"} }

func (*Schedule) Info() voice.CommandInfo {
	return voice.CommandInfo{
		Description: "Book an appointment",
		Examples:    []string{"Schedule a vet visit for Bella tomorrow at 3 pm", "Book grooming for Max on Friday"},
	}
}

func (s *Schedule) Execute(ctx context.Context, in voice.Intent, c voice.Context) voice.CommandResult {
	f := fields(in, c)
	var miss []string
	for _, k := range s.RequiredParameters() {
		if f[k] == "" {
			miss = append(miss, k)
		}
	}
	if len(miss) > 0 {
		prompt := "Which pet is the appointment for?"
		if miss[0] == "date" {
			prompt = "What day should I book it for?"
		}
		return voice.CommandResult{
			Key:              voice.KeyNeedMoreInfo,
			Message:          prompt,
			Data:             voice.MissingInfo{Kind: "appointment", Pet: f["pet"], Missing: miss},
			RequiresFollowUp: true,
			FollowUpPrompt:   prompt,
		}
	}

	pet, err := s.api.FindPet(ctx, f["pet"])
	if err != nil {
		return failure(err, f["pet"], "find "+f["pet"])
	}

	loc := ""
	if e, ok := in.First(voice.EntityLocation); ok {
		loc = e.Value
	}
	a := dashboard.Appointment{
		PetID:    pet.ID,
		Title:    appointmentTitle(in, loc),
		Location: loc,
		Date:     when(in, s.now(), "09:00"),
		Notes:    in.Utterance,
	}
	saved, err := s.api.CreateAppointment(ctx, a)
	if err != nil {
		return failure(err, pet.Name, "book that appointment")
	}

	s.notify.NotifyDataChange(voice.DataChange{Type: "appointment", Action: "create", ID: saved.ID, Pet: pet.Name, At: s.now()})

	return voice.CommandResult{
		Success:         true,
		Key:             voice.KeyScheduleAppointment,
		Data:            voice.AppointmentData{Pet: pet.Name, Title: a.Title, When: a.Date, Location: loc},
		VisualComponent: "appointment_card",
	}
}

func appointmentTitle(in voice.Intent, location string) string {
	if e, ok := in.First(voice.EntityActivity); ok {
		if r, _ := e.Resolved.(string); r == "grooming" {
			return "Grooming"
		}
	}
	switch location {
	case "groomer":
		return "Grooming"
	case "daycare", "kennel":
		return titleCase(location)
	}
	return "Vet visit"
}
