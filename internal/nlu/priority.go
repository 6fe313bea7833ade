package nlu

import (
	"strings"
	"unicode"

	"pawvox/pkg/voice"
)

var urgentKeywords = []string{
	"emergency", "bleeding", "choking", "choke*", "seizure*", "seizing", "convuls*",
	"poison*", "toxic", "unconscious", "not breathing", "cant breathe", "stopped breathing",
	"hit by a car", "collapsed", "swallowed", "ate chocolate", "bloat*",
}

var highKeywords = []string{
	"vomit*", "throwing up", "diarrhea", "limping", "letharg*", "not eating", "wont eat",
	"fever", "swollen", "swelling", "pain", "injur*", "sick", "blood", "asap", "right away",
	"hurt*", "coughing", "wheezing", "urgent",
}

var lowKeywords = []string{"no rush", "whenever", "sometime", "when you get a chance", "not urgent", "low priority"}

// DetectPriority ranks an utterance. Urgent keywords beat high-priority
// symptoms; shouting or repeated exclamation marks lift a calm utterance to
// high.
func DetectPriority(text string) voice.Priority {
	norm := normalize(text)
	switch {
	case hasAny(norm, urgentKeywords):
		return voice.PriorityUrgent
	case hasAny(norm, lowKeywords):
		return voice.PriorityLow
	case hasAny(norm, highKeywords):
		return voice.PriorityHigh
	case shouting(text) || strings.Count(text, "!") >= 2:
		return voice.PriorityHigh
	}
	return voice.PriorityNormal
}

// shouting reports text that is mostly capital letters.
func shouting(text string) bool {
	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 6 && float64(upper)/float64(letters) >= 0.7
}

func maxPriority(a, b voice.Priority) voice.Priority {
	if !b.Valid() {
		return a
	}
	rank := map[voice.Priority]int{voice.PriorityLow: 0, voice.PriorityNormal: 1, voice.PriorityHigh: 2, voice.PriorityUrgent: 3}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
