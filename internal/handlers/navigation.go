package handlers

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"pawvox/pkg/voice"
)

type route struct {
	path      string
	petScoped bool
}

var routes = map[string]route{
	"home":           {"/", false},
	"dashboard":      {"/", false},
	"main":           {"/", false},
	"overview":       {"/", false},
	"pets":           {"/pets", false},
	"my pets":        {"/pets", false},
	"pet list":       {"/pets", false},
	"profile":        {"/pets/profile", true},
	"pet profile":    {"/pets/profile", true},
	"add pet":        {"/pets/new", false},
	"new pet":        {"/pets/new", false},
	"appointments":   {"/appointments", true},
	"appointment":    {"/appointments", true},
	"vet visits":     {"/appointments", true},
	"calendar":       {"/calendar", false},
	"schedule":       {"/calendar", false},
	"medications":    {"/medications", true},
	"medication":     {"/medications", true},
	"meds":           {"/medications", true},
	"prescriptions":  {"/medications", true},
	"health":         {"/health", true},
	"health logs":    {"/health", true},
	"health records": {"/health-records", true},
	"records":        {"/health-records", true},
	"vaccinations":   {"/health-records", true},
	"vaccines":       {"/health-records", true},
	"feeding":        {"/feeding", true},
	"feeding log":    {"/feeding", true},
	"meals":          {"/feeding", true},
	"food":           {"/feeding", true},
	"weight":         {"/health/weight", true},
	"weight chart":   {"/health/weight", true},
	"activity":       {"/activity", true},
	"activities":     {"/activity", true},
	"walks":          {"/activity", true},
	"exercise":       {"/activity", true},
	"expenses":       {"/expenses", false},
	"spending":       {"/expenses", false},
	"budget":         {"/expenses", false},
	"milestones":     {"/milestones", true},
	"timeline":       {"/milestones", true},
	"tips":           {"/tips", false},
	"care tips":      {"/tips", false},
	"settings":       {"/settings", false},
	"preferences":    {"/settings", false},
	"voice settings": {"/settings/voice", false},
	"help":           {"/help", false},
	"emergency":      {"/emergency", false},
	"emergency vet":  {"/emergency", false},
}

// aliasesByLength is the route table sorted longest alias first so that
// "health records" wins over "health" inside a longer phrase.
var aliasesByLength = func() []string {
	out := make([]string, 0, len(routes))
	for a := range routes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

type Navigation struct{}

func NewNavigation() *Navigation { return &Navigation{} }

func (*Navigation) CanExecute(in voice.Intent) bool { return in.Action == voice.ActionNavigate }

func (*Navigation) RequiredParameters() []string { return []string{"target"} }

func (*Navigation) Info() voice.CommandInfo {
	return voice.CommandInfo{
		Description: "Open a dashboard page",
		Examples:    []string{"Go to appointments", "Show me Max's health records", "Open settings"},
	}
}

func resolveRoute(target string) (string, route, bool) {
	t := strings.ToLower(strings.TrimSpace(target))
	t = strings.TrimSuffix(strings.TrimSuffix(t, " page"), " screen")
	if r, ok := routes[t]; ok {
		return t, r, true
	}
	padded := " " + t + " "
	for _, alias := range aliasesByLength {
		if strings.Contains(padded, " "+alias+" ") {
			return alias, routes[alias], true
		}
	}
	return "", route{}, false
}

func (n *Navigation) Execute(_ context.Context, in voice.Intent, _ voice.Context) voice.CommandResult {
	if t := strings.TrimSpace(in.Target); t == "" || t == "general" {
		return voice.CommandResult{
			Key:              voice.KeyNavigateUnknown,
			Message:          "Which page would you like to open? Try appointments, medications or health records.",
			RequiresFollowUp: true,
			FollowUpPrompt:   "Which page would you like to open?",
		}
	}
	alias, r, ok := resolveRoute(in.Target)
	if !ok {
		return voice.CommandResult{
			Key:     voice.KeyNavigateUnknown,
			Message: fmt.Sprintf("I don't know a page called %q. Try appointments, medications or health records.", in.Target),
			Data:    voice.NavigationData{Target: in.Target},
		}
	}

	path := r.path
	pet := ""
	if r.petScoped {
		// Only an explicit mention scopes the page.
		if p := in.Param("pet"); p != "" {
			pet = p
		} else if e, ok := in.Last(voice.EntityPetName); ok {
			pet = e.Value
		}
		if pet != "" {
			path += "?pet=" + url.QueryEscape(pet)
		}
	}

	return voice.CommandResult{
		Success:         true,
		Key:             voice.KeyNavigate,
		Data:            voice.NavigationData{Target: alias, Path: path, Pet: pet},
		VisualComponent: "navigation",
	}
}
