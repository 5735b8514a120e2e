// Package intent classifies a user utterance against a fixed, ordered set
// of trigger rules. The rule order is a contract: identity questions win
// over suggestion requests, which win over name assertions; anything else
// falls through to generation. Rules never consult the model or the store.
package intent

import (
	"regexp"
	"strings"
)

// Kind tags the classification outcome.
type Kind int

const (
	// Generate is the fallthrough: no canned trigger matched and the
	// utterance should be handed to the generation backend.
	Generate Kind = iota
	// IdentityQuestion asks who the assistant is or what it can do.
	IdentityQuestion
	// SuggestionRequest asks for activity suggestions.
	SuggestionRequest
	// NameAssertion tells the assistant the user's name.
	NameAssertion
)

func (k Kind) String() string {
	switch k {
	case IdentityQuestion:
		return "identity_question"
	case SuggestionRequest:
		return "suggestion_request"
	case NameAssertion:
		return "name_assertion"
	default:
		return "generate"
	}
}

// Result is the classification of one utterance. Name is set only for
// NameAssertion, preserving the casing the user typed.
type Result struct {
	Kind Kind
	Name string
}

// identityPhrases trigger the identity/capability canned reply. Matching
// is substring, case-insensitive.
var identityPhrases = []string{
	"what is your name",
	"what's your name",
	"who are you",
	"what can you do",
	"what are your capabilities",
}

var namePattern = regexp.MustCompile(`(?i)\bmy name is\s+(.+)`)

// Classify runs the rules in priority order and returns the first match.
// Later rules are not evaluated once an earlier one matches, so an
// utterance like "suggest a name" is a suggestion request, never a name
// assertion.
func Classify(utterance string) Result {
	lowered := strings.ToLower(utterance)

	for _, phrase := range identityPhrases {
		if strings.Contains(lowered, phrase) {
			return Result{Kind: IdentityQuestion}
		}
	}

	if strings.Contains(lowered, "suggest") {
		return Result{Kind: SuggestionRequest}
	}

	if m := namePattern.FindStringSubmatch(utterance); m != nil {
		if name := cleanName(m[1]); name != "" {
			return Result{Kind: NameAssertion, Name: name}
		}
	}

	return Result{Kind: Generate}
}

// cleanName strips trailing punctuation and whitespace from a captured
// name so "my name is Ada." yields "Ada".
func cleanName(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), ".!?,;: \t")
}
