// Package composer turns one user utterance plus the aggregated context
// into a dispatch decision: a canned reply, a name update with its
// acknowledgement, or the final conditioning prompt for generation. It is
// a pure function of its inputs and the injected sampling source; no
// store or model call happens here.
package composer

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ncacord/qraphael/internal/aggregator"
	"github.com/ncacord/qraphael/internal/intent"
)

const (
	assistantName = "Raphael"
	assistantRole = "your personal assistant"

	suggestionCount = 3
)

var assistantCapabilities = []string{
	"Answer questions using what I know about you",
	"Remember our conversations across sessions",
	"Keep track of your profile, preferences, and records",
	"Suggest activities based on your interests",
}

// suggestionPool is the fixed base pool every suggestion request samples
// from. Preference-matched entries are appended before sampling.
var suggestionPool = []string{
	"Take a short walk and stretch your legs.",
	"Read a chapter of a book you've been meaning to finish.",
	"Write down three things you're grateful for.",
	"Call a friend or family member you haven't spoken to in a while.",
	"Tidy one small corner of your workspace.",
	"Make yourself a cup of tea and take a real break.",
}

// preferenceSuggestions maps a substring of the "hobbies" preference to an
// extra pool entry. At most two matches extend the pool per request.
var preferenceSuggestions = []struct {
	match      string
	suggestion string
}{
	{"outdoors", "Go for a hike on a nearby trail."},
	{"music", "Put on an album you haven't listened to in years."},
	{"cooking", "Try cooking a dish you've never made before."},
	{"reading", "Visit your local library and pick something at random."},
}

// DecisionKind tags the dispatch outcome of one utterance.
type DecisionKind int

const (
	// CannedReply answers without invoking generation.
	CannedReply DecisionKind = iota
	// NameUpdate carries a new user name to persist, paired with an
	// acknowledgement reply.
	NameUpdate
	// GenerationPrompt hands the conditioning text to the backend.
	GenerationPrompt
)

// Decision is the tagged result of Assemble. Reply is set for CannedReply
// and NameUpdate; Name only for NameUpdate; Prompt only for
// GenerationPrompt.
type Decision struct {
	Kind   DecisionKind
	Reply  string
	Name   string
	Prompt string
}

// Assembler builds decisions. The sampling source is injectable so
// suggestion draws are reproducible in tests.
type Assembler struct {
	rand *rand.Rand
}

// New creates an Assembler. If src is nil, a time-seeded source is used.
func New(src rand.Source) *Assembler {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Assembler{rand: rand.New(src)}
}

// Assemble classifies the utterance and produces the decision. Trigger
// priority is fixed: identity question, then suggestion request, then
// name assertion, then the generation fallback.
func (a *Assembler) Assemble(utterance string, ctx aggregator.Context) Decision {
	switch res := intent.Classify(utterance); res.Kind {
	case intent.IdentityQuestion:
		return Decision{Kind: CannedReply, Reply: identityReply()}
	case intent.SuggestionRequest:
		return Decision{Kind: CannedReply, Reply: a.suggestionReply(ctx.Preferences)}
	case intent.NameAssertion:
		return Decision{
			Kind:  NameUpdate,
			Name:  res.Name,
			Reply: fmt.Sprintf("Nice to meet you, %s! I'll remember that.", res.Name),
		}
	default:
		return Decision{Kind: GenerationPrompt, Prompt: generationPrompt(utterance, ctx)}
	}
}

// identityReply is the fixed identity and capability text.
func identityReply() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "My name is %s, and I am %s. Here are some things I can do:\n", assistantName, assistantRole)
	for _, capability := range assistantCapabilities {
		sb.WriteString("- ")
		sb.WriteString(capability)
		sb.WriteString("\n")
	}
	return sb.String()
}

// suggestionReply samples exactly suggestionCount distinct entries,
// without replacement, from the base pool extended by up to two
// preference matches.
func (a *Assembler) suggestionReply(prefs map[string]string) string {
	pool := append([]string(nil), suggestionPool...)

	hobbies := strings.ToLower(prefs["hobbies"])
	matched := 0
	for _, ps := range preferenceSuggestions {
		if matched == 2 {
			break
		}
		if strings.Contains(hobbies, ps.match) {
			pool = append(pool, ps.suggestion)
			matched++
		}
	}

	picks := a.rand.Perm(len(pool))[:suggestionCount]

	var sb strings.Builder
	sb.WriteString("Here are some suggestions for you:\n")
	for _, i := range picks {
		sb.WriteString("- ")
		sb.WriteString(pool[i])
		sb.WriteString("\n")
	}
	return sb.String()
}

// generationPrompt concatenates the full serialized context and the
// utterance, prefixing the user's name when it is known.
func generationPrompt(utterance string, ctx aggregator.Context) string {
	line := utterance
	if name := ctx.UserName(); name != "" {
		line = name + ": " + utterance
	}
	return ctx.Render() + "\n" + line
}
