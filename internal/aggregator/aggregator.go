package aggregator

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ncacord/qraphael/internal/memory"
	"github.com/ncacord/qraphael/internal/profile"
	"github.com/ncacord/qraphael/internal/storage"
)

// ProfileReader is the fragment-fetch surface the aggregator consumes.
// Implemented by profile.Accessor.
type ProfileReader interface {
	Identity(userID string) profile.Identity
	Preferences(userID string) profile.Preferences
	Medical(userID string) profile.Medical
	Financial(userID string) profile.Financial
	Professional(userID string) storage.Professional
	Education(userID string) storage.Education
	Social(userID string) storage.Social
	Security(userID string) storage.Security
	Miscellaneous(userID string) storage.Miscellaneous
	Interests(userID string) storage.Interests
}

// TranscriptReader is the memory surface the aggregator consumes.
// Implemented by memory.Log.
type TranscriptReader interface {
	Transcript(userID string) (string, error)
}

var _ TranscriptReader = (*memory.Log)(nil)

// Aggregator fetches every category fragment plus the transcript and
// assembles the conditioning context. Fetches run concurrently; the
// serialized section order is fixed regardless of completion order.
type Aggregator struct {
	profile ProfileReader
	memory  TranscriptReader
	logger  *slog.Logger
}

// New creates an Aggregator over the given profile and memory accessors.
func New(p ProfileReader, m TranscriptReader) *Aggregator {
	return &Aggregator{profile: p, memory: m, logger: slog.Default()}
}

// Aggregate builds the full context for one user. A user with no data in
// any category yields a context whose every section is present and empty;
// fragment-level store failures degrade inside the accessors and never
// surface here. The only error returned is context cancellation.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) (Context, error) {
	out := Context{UserID: userID}

	g, ctx := errgroup.WithContext(ctx)

	run := func(fetch func()) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fetch()
			return nil
		})
	}

	run(func() {
		transcript, err := a.memory.Transcript(userID)
		if err != nil {
			a.logger.Warn("transcript read failed, degrading to empty history",
				"user_id", userID, "error", err)
			transcript = ""
		}
		out.Transcript = transcript
	})
	run(func() { out.Identity = a.profile.Identity(userID) })
	run(func() { out.Preferences = a.profile.Preferences(userID) })
	run(func() { out.Medical = a.profile.Medical(userID) })
	run(func() { out.Financial = a.profile.Financial(userID) })
	run(func() { out.Professional = a.profile.Professional(userID) })
	run(func() { out.Education = a.profile.Education(userID) })
	run(func() { out.Social = a.profile.Social(userID) })
	run(func() { out.Security = a.profile.Security(userID) })
	run(func() { out.Miscellaneous = a.profile.Miscellaneous(userID) })
	run(func() { out.Interests = a.profile.Interests(userID) })

	if err := g.Wait(); err != nil {
		return Context{}, err
	}
	return out, nil
}
