// Package turn drives the request/response cycle: aggregate the user's
// context, dispatch the utterance through the assembler, call generation
// when needed, and persist the completed turn. It supports a single-shot
// mode and an interactive loop over a line reader.
package turn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ncacord/qraphael/internal/aggregator"
	"github.com/ncacord/qraphael/internal/composer"
	"github.com/ncacord/qraphael/internal/engine"
	"github.com/ncacord/qraphael/internal/storage"
)

// Aggregator assembles the conditioning context for a user.
type Aggregator interface {
	Aggregate(ctx context.Context, userID string) (aggregator.Context, error)
}

// Assembler dispatches one utterance against the aggregated context.
type Assembler interface {
	Assemble(utterance string, ctx aggregator.Context) composer.Decision
}

// Recorder is the persistence surface the loop writes through.
// Implemented by storage.Store.
type Recorder interface {
	AppendMemory(userID, text string) error
	SaveInteraction(i storage.Interaction) error
	ConsentPending(userID, category string) (bool, error)
	SetConsent(userID, category string, ask bool) error
	PendingConsentQuestion(userID string) (string, error)
	MarkConsentQuestion(userID, category string, pending bool) error
}

// NameWriter persists a user's asserted name. Implemented by
// profile.Accessor.
type NameWriter interface {
	SetName(userID, name string) error
}

// Options control the generation call made for non-canned turns.
type Options struct {
	Model          string
	Gen            engine.GenerateOptions
	GenerateWithin time.Duration
}

// sensitiveKeywords maps a consent category to utterance substrings that
// touch it. Matching is lowercase substring, first category wins in this
// order.
var sensitiveCategories = []struct {
	category string
	keywords []string
}{
	{"medical", []string{"medical", "doctor", "medication", "diagnosis", "prescription", "symptom", "immunization"}},
	{"financial", []string{"financial", "money", "loan", "salary", "invest", "bank", "debt", "tax", "expense"}},
	{"security", []string{"password", "passcode", "pin code", "security question", "two-factor"}},
}

// Loop runs turns for any number of users. Safe for concurrent use; the
// consent hand-shake state lives in the store, keyed per user, so a
// question asked in one invocation can be answered in the next.
type Loop struct {
	agg    Aggregator
	asm    Assembler
	eng    engine.Engine
	store  Recorder
	names  NameWriter
	opts   Options
	logger *slog.Logger
}

// New creates a Loop over the given collaborators.
func New(agg Aggregator, asm Assembler, eng engine.Engine, store Recorder, names NameWriter, opts Options) *Loop {
	return &Loop{
		agg:    agg,
		asm:    asm,
		eng:    eng,
		store:  store,
		names:  names,
		opts:   opts,
		logger: slog.Default(),
	}
}

// RunOnce executes a single turn and returns the reply. The memory append
// and interaction record happen only after a full reply is produced; a
// generation failure leaves memory untouched and returns the error so the
// caller can decide whether to continue.
func (l *Loop) RunOnce(ctx context.Context, userID, utterance string) (string, error) {
	if reply, resolved := l.resolveConsent(userID, utterance); resolved {
		l.persistTurn(userID, utterance, "", reply, "canned")
		return reply, nil
	}

	if category := touchedCategory(utterance); category != "" {
		pending, err := l.store.ConsentPending(userID, category)
		if err != nil {
			l.logger.Warn("consent lookup failed, proceeding without gate",
				"user_id", userID, "category", category, "error", err)
		} else if pending {
			if err := l.store.MarkConsentQuestion(userID, category, true); err != nil {
				l.logger.Warn("recording consent question failed",
					"user_id", userID, "category", category, "error", err)
			}
			reply := consentQuestion(category)
			l.persistTurn(userID, utterance, "", reply, "canned")
			return reply, nil
		}
	}

	aggCtx, err := l.agg.Aggregate(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("aggregating context for %s: %w", userID, err)
	}

	decision := l.asm.Assemble(utterance, aggCtx)

	var reply, prompt, kind string
	switch decision.Kind {
	case composer.CannedReply:
		reply, kind = decision.Reply, "canned"
	case composer.NameUpdate:
		if err := l.names.SetName(userID, decision.Name); err != nil {
			l.logger.Warn("persisting name update failed",
				"user_id", userID, "error", err)
		}
		reply, kind = decision.Reply, "canned"
	case composer.GenerationPrompt:
		genCtx := ctx
		if l.opts.GenerateWithin > 0 {
			var cancel context.CancelFunc
			genCtx, cancel = context.WithTimeout(ctx, l.opts.GenerateWithin)
			defer cancel()
		}
		raw, err := l.eng.Generate(genCtx, l.opts.Model, decision.Prompt, l.opts.Gen)
		if err != nil {
			return "", fmt.Errorf("generating response for %s: %w", userID, err)
		}
		reply, prompt, kind = trimToSentence(raw), decision.Prompt, "generated"
	}

	l.persistTurn(userID, utterance, prompt, reply, kind)
	return reply, nil
}

// Run drives the interactive loop until the reader is exhausted or the
// context is cancelled. Generation failures are logged and the turn is
// skipped; the loop itself keeps going.
func (l *Loop) Run(ctx context.Context, userID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Enter a prompt: ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		utterance := strings.TrimSpace(scanner.Text())
		if utterance == "" {
			continue
		}

		reply, err := l.RunOnce(ctx, userID, utterance)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("turn failed, skipping", "user_id", userID, "error", err)
			fmt.Fprintln(out, "Sorry, something went wrong with that one. Try again?")
			continue
		}
		fmt.Fprintln(out, reply)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Fprintln(out, "\nExiting loop mode.")
	return nil
}

// persistTurn appends the completed turn to memory and records the
// interaction. Store failures here degrade with a log line so a flaky
// store never loses the reply already produced.
func (l *Loop) persistTurn(userID, utterance, prompt, reply, kind string) {
	if err := l.store.AppendMemory(userID, utterance+"\n"+reply); err != nil {
		l.logger.Warn("memory append failed", "user_id", userID, "error", err)
	}

	interaction := storage.Interaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		UserQuery: utterance,
		Prompt:    prompt,
		Response:  reply,
		Kind:      kind,
	}
	if kind == "generated" {
		interaction.Model = l.opts.Model
	}
	if err := l.store.SaveInteraction(interaction); err != nil {
		l.logger.Warn("interaction save failed", "user_id", userID, "error", err)
	}
}

// resolveConsent handles the yes/no answer to an outstanding consent
// question. It reports whether the utterance was consumed as an answer.
func (l *Loop) resolveConsent(userID, utterance string) (string, bool) {
	category, err := l.store.PendingConsentQuestion(userID)
	if err != nil {
		l.logger.Warn("consent question lookup failed", "user_id", userID, "error", err)
		return "", false
	}
	if category == "" {
		return "", false
	}
	if err := l.store.MarkConsentQuestion(userID, category, false); err != nil {
		l.logger.Warn("clearing consent question failed",
			"user_id", userID, "category", category, "error", err)
	}

	switch strings.ToLower(strings.TrimSpace(utterance)) {
	case "yes", "y", "sure", "ok", "okay":
		if err := l.store.SetConsent(userID, category, false); err != nil {
			l.logger.Warn("clearing consent flag failed",
				"user_id", userID, "category", category, "error", err)
		}
		return fmt.Sprintf("Thanks! I'll use your %s information going forward. What would you like to know?", category), true
	case "no", "n", "nope":
		return fmt.Sprintf("Understood, I'll leave your %s information out.", category), true
	default:
		// Not an answer; treat the utterance as a fresh turn.
		return "", false
	}
}

// touchedCategory returns the first consent category whose keywords appear
// in the utterance, or "" when none match.
func touchedCategory(utterance string) string {
	lowered := strings.ToLower(utterance)
	for _, sc := range sensitiveCategories {
		for _, kw := range sc.keywords {
			if strings.Contains(lowered, kw) {
				return sc.category
			}
		}
	}
	return ""
}

func consentQuestion(category string) string {
	return fmt.Sprintf("That touches your %s information. Is it okay if I use it to answer? (yes/no)", category)
}

// trimToSentence cuts the text at the last terminal punctuation mark so
// replies never end mid-sentence. Text without any terminal punctuation
// is returned unchanged.
func trimToSentence(text string) string {
	for _, punct := range []string{".", "!", "?"} {
		if i := strings.LastIndex(text, punct); i >= 0 {
			return text[:i+1]
		}
	}
	return text
}
