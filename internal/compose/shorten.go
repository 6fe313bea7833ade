package compose

import (
	"strings"
	"unicode"
)

// MaxShortLen is the length Shorten truncates to.
const MaxShortLen = 80

// Longer phrases come first so their parts are not stripped separately.
var pleasantries = []string{
	" Please try again in a moment.",
	" Please try again.",
	"Here's what I found. ",
	"Here's everything. ",
	"Happy to help! ",
	"Just to confirm, ",
	"Got it! ",
	"Great! ",
	"Sure, ",
	"Okay, ",
	"Sorry, ",
	"Hmm, ",
	"Please ",
	" please",
}

// Pleasantries returns the phrases Shorten removes.
func Pleasantries() []string { return append([]string(nil), pleasantries...) }

// Shorten strips pleasantries and truncates text to about MaxShortLen
// characters at a word boundary.
func Shorten(text string) string {
	s := text
	for _, p := range pleasantries {
		s = strings.ReplaceAll(s, p, " ")
	}
	s = strings.Join(strings.Fields(s), " ")
	s = upperFirst(s)

	if len(s) <= MaxShortLen {
		return s
	}
	cut := strings.LastIndexByte(s[:MaxShortLen-3], ' ')
	if cut <= 0 {
		cut = MaxShortLen - 3
	}
	return strings.TrimRight(s[:cut], " ,;:.") + "..."
}

func upperFirst(s string) string {
	for i, r := range s {
		if i > 0 {
			break
		}
		if unicode.IsLower(r) {
			return string(unicode.ToUpper(r)) + s[len(string(r)):]
		}
	}
	return s
}
