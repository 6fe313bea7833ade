package handlers

import (
	"context"
	"strings"

	"pawvox/internal/dashboard"
	"pawvox/internal/dispatch"
	"pawvox/pkg/voice"
)

var allowedActivities = map[string][]string{
	"dog":        {"walk", "running", "fetch", "play", "swimming", "hiking", "training", "grooming", "bath", "feeding"},
	"cat":        {"play", "grooming", "climbing", "training", "litter training", "feeding"},
	"bird":       {"flying", "play", "training", "bath", "feeding"},
	"rabbit":     {"play", "grooming", "litter training", "feeding"},
	"hamster":    {"play", "running", "feeding"},
	"guinea pig": {"play", "grooming", "feeding"},
	"fish":       {"feeding"},
	"reptile":    {"climbing", "bath", "feeding"},
	"horse":      {"walk", "running", "grooming", "training", "bath", "feeding"},
	"ferret":     {"play", "running", "climbing", "bath", "feeding"},
}

// PetTypeGuard rejects activity logs the pet's type cannot do before they
// reach the wrapped handler.
type PetTypeGuard struct {
	next dispatch.Handler
	api  dashboard.API
}

func NewPetTypeGuard(next dispatch.Handler, api dashboard.API) *PetTypeGuard {
	return &PetTypeGuard{next: next, api: api}
}

func (g *PetTypeGuard) CanExecute(in voice.Intent) bool { return g.next.CanExecute(in) }
func (g *PetTypeGuard) RequiredParameters() []string { return g.next.RequiredParameters() }
func (g *PetTypeGuard) Info() voice.CommandInfo { return g.next.Info() }

func (g *PetTypeGuard) Execute(ctx context.Context, in voice.Intent, c voice.Context) voice.CommandResult {
	activity := in.Param("activity")
	if in.Target != "activity" || activity == "" {
		return g.next.Execute(ctx, in, c)
	}

	name := petName(in, c)
	kind := petType(in)
	if name != "" {
		if pet, err := g.api.FindPet(ctx, name); err == nil {
			kind = strings.ToLower(pet.Type)
			name = pet.Name
		}
	}

	allowed, known := allowedActivities[kind]
	if !known || AllowedActivity(kind, activity) {
		return g.next.Execute(ctx, in, c)
	}

	subject := name
	if subject == "" {
		subject = "your " + kind
	}
	return voice.CommandResult{
		Key:     voice.KeyActivityNotAllowed,
		Message: "That activity isn't something " + subject + " can do.",
		Data: voice.ActivityRejection{
			Pet:      subject,
			PetType:  kind,
			Activity: activity,
			Allowed:  append([]string(nil), allowed...),
		},
	}
}

// AllowedActivity reports whether petType may log activity. Unknown pet
// types allow everything.
func AllowedActivity(petType, activity string) bool {
	list, ok := allowedActivities[petType]
	if !ok {
		return true
	}
	for _, a := range list {
		if a == activity {
			return true
		}
	}
	return false
}
