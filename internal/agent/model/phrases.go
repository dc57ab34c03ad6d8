package model

import (
	"regexp"
	"strings"
)

var (
	// Reset only fires when the command is the whole message, so criteria or
	// negations around it go to the classifier instead.
	resetPhrases     = regexp.MustCompile(`(?i)^\s*(ok(ay)?[\s,]+)?(let'?s\s+|please\s+|can you\s+|i want to\s+|i'?d like to\s+)?(start over|start again|reset( everything| my search)?|clear (my )?(search|memory|everything)|forget (everything|it all)|(a )?new search)(\s+please)?\s*[.!]*\s*$`)
	newSearchPhrases = regexp.MustCompile(`(?i)\b(new|another|fresh|different) search\b`)
	negatedSearch    = regexp.MustCompile(`(?i)\b(don'?t|do not|not|no|never)\b\W+(\w+\W+){0,3}?(a\s+)?(new|another|fresh|different) search\b`)
	morePhrases      = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|sure|ok|okay)?[\s,!.]*(please\s+)?(show|see|view|give)( me)? (more|the rest|others|other options|next)\b|^\s*(more|next|more please|next page)\s*[.!]?\s*$`)
	bookingPhrases   = regexp.MustCompile(`(?i)\b(book|arrange|schedule|set up)\b.*\b(viewing|visit|appointment|tour)\b|\b(contact|speak to|talk to|call) (the )?agent\b|\binterested in (the |this |that )?(first|second|third|\d)`)
	cancelPhrases    = regexp.MustCompile(`(?i)^\s*(cancel|stop|never ?mind|forget it|no thanks|not interested)\b`)
)

// IsResetRequest reports whether the whole message is a request to clear the search.
func IsResetRequest(msg string) bool { return resetPhrases.MatchString(msg) }

// IsNewSearchRequest reports whether the message starts a fresh search that
// carries its own criteria, e.g. "new search for a studio in Tampines".
func IsNewSearchRequest(msg string) bool {
	return newSearchPhrases.MatchString(msg) && !negatedSearch.MatchString(msg) && !IsResetRequest(msg)
}

// IsMoreRequest reports whether the message asks for the next page of results.
func IsMoreRequest(msg string) bool { return morePhrases.MatchString(strings.TrimSpace(msg)) }

// IsBookingRequest reports whether the message asks for a viewing or the agent.
func IsBookingRequest(msg string) bool { return bookingPhrases.MatchString(msg) }

// IsCancelRequest reports whether the message abandons the current flow.
func IsCancelRequest(msg string) bool { return cancelPhrases.MatchString(msg) }
