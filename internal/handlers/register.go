package handlers

import (
	"time"

	"pawvox/internal/dashboard"
	"pawvox/internal/dispatch"
	"pawvox/pkg/voice"
)

// RegisterAll wires the dashboard handlers into d. Activity logging goes
// through the pet-type guard.
func RegisterAll(d *dispatch.Dispatcher, api dashboard.API, notify Notifier, now func() time.Time) {
	if notify == nil {
		notify = NopNotifier{}
	}
	d.Register(voice.ActionNavigate, NewNavigation())
	d.Register(voice.ActionLogData, NewPetTypeGuard(NewDataEntry(api, notify, now), api))
	d.Register(voice.ActionQuery, NewQuery(api, now))
	d.Register(voice.ActionSchedule, NewSchedule(api, notify, now))
	d.Register(voice.ActionHelp, NewHelp())
}
