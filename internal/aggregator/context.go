// Package aggregator composes every profile fragment and the conversation
// transcript into one deterministic conditioning context per user.
package aggregator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ncacord/qraphael/internal/profile"
	"github.com/ncacord/qraphael/internal/storage"
)

// Context is the aggregated per-user conditioning context. It marshals to
// and from JSON without loss; all numeric fields round-trip exactly.
type Context struct {
	UserID        string                `json:"user_id"`
	Transcript    string                `json:"memory"`
	Identity      profile.Identity      `json:"identity"`
	Preferences   profile.Preferences   `json:"preferences"`
	Medical       profile.Medical       `json:"medical"`
	Financial     profile.Financial     `json:"financial"`
	Professional  storage.Professional  `json:"professional"`
	Education     storage.Education     `json:"education"`
	Social        storage.Social        `json:"social"`
	Security      storage.Security      `json:"security"`
	Miscellaneous storage.Miscellaneous `json:"miscellaneous"`
	Interests     storage.Interests     `json:"interests"`
}

// section is one labelled slice of the rendered context.
type section struct {
	Label   string
	Payload string
}

// sections returns the context slices in the canonical order: transcript
// first, then the profile categories. The order is fixed so identical
// inputs always produce the identical conditioning text.
func (c Context) sections() []section {
	prefs := c.Preferences
	if prefs == nil {
		// A nil map would render as "null"; an absent category must still
		// show an empty payload.
		prefs = profile.Preferences{}
	}
	return []section{
		{"Conversation History", c.Transcript},
		{"Identity", jsonPayload(c.Identity)},
		{"Preferences", jsonPayload(prefs)},
		{"Medical", jsonPayload(c.Medical)},
		{"Financial", jsonPayload(c.Financial)},
		{"Professional", jsonPayload(c.Professional)},
		{"Education", jsonPayload(c.Education)},
		{"Social", jsonPayload(c.Social)},
		{"Security", jsonPayload(c.Security)},
		{"Miscellaneous", jsonPayload(c.Miscellaneous)},
		{"Interests", jsonPayload(c.Interests)},
	}
}

// Render serializes the context into the labelled text injected ahead of
// the user's utterance. Empty sections still appear with an empty payload
// so the shape downstream consumers see is stable.
func (c Context) Render() string {
	var sb strings.Builder
	for i, s := range c.sections() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", s.Label, s.Payload)
	}
	return sb.String()
}

// UserName returns the user's known name, empty when unset.
func (c Context) UserName() string {
	return c.Identity.Name
}

func jsonPayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only unmarshalable types reach here; every payload is a plain struct/map.
		return "{}"
	}
	return string(b)
}
