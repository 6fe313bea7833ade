package handlers

import (
	"context"
	"strings"

	"pawvox/pkg/voice"
)

var pageHelp = map[string][]string{
	"/appointments": {
		"When is the next appointment?",
		"Schedule a vet visit for tomorrow at 3 pm",
		"Show more details",
	},
	"/medications": {
		"What medications is Bella on?",
		"I gave Max his heartgard",
	},
	"/feeding": {
		"Log feeding for Max, 2 cups of dry food",
		"How much did Max eat today?",
	},
	"/health": {
		"Max weighs 32 pounds",
		"How is Bella's health?",
		"Show me the health records",
	},
	"/expenses": {
		"Spent $45 at the vet today",
		"Go to expenses",
	},
}

var defaultHelp = []string{
	"Log feeding for Max, 2 cups of dry food",
	"When is Max's next appointment?",
	"Go to medications",
	"Any tips for a new puppy?",
}

type Help struct{}

func NewHelp() *Help { return &Help{} }

func (*Help) CanExecute(voice.Intent) bool { return true }

func (*Help) RequiredParameters() []string { return nil }

func (*Help) Info() voice.CommandInfo {
	return voice.CommandInfo{
		Description: "Hear what you can say on this page",
		Examples:    []string{"What can you do?", "Help"},
	}
}

// Execute picks the list for the current page. Sub-pages and query strings
// match their section.
func (*Help) Execute(_ context.Context, _ voice.Intent, c voice.Context) voice.CommandResult {
	page := c.CurrentPage
	if i := strings.IndexAny(page, "?#"); i >= 0 {
		page = page[:i]
	}
	cmds := defaultHelp
	best := ""
	for prefix, list := range pageHelp {
		if strings.HasPrefix(page, prefix) && len(prefix) > len(best) {
			best, cmds = prefix, list
		}
	}
	return voice.CommandResult{
		Success:         true,
		Key:             voice.KeyHelp,
		Data:            voice.HelpData{Page: best, Commands: append([]string(nil), cmds...)},
		VisualComponent: "help_list",
	}
}
