// Package memory provides append/read access to a user's conversation
// transcript. The transcript is append-only; read order is append order.
package memory

import (
	"fmt"
	"strings"

	"github.com/ncacord/qraphael/internal/storage"
)

// Store defines the storage operations the Log needs.
// Implemented by storage.Store.
type Store interface {
	AppendMemory(userID, text string) error
	GetMemoryEntries(userID string) ([]storage.MemoryEntry, error)
}

// Log is the conversational memory accessor.
type Log struct {
	store Store
}

// NewLog creates a Log over the given store.
func NewLog(store Store) *Log {
	return &Log{store: store}
}

// Append adds one entry to the user's transcript. Prior entries are never
// mutated or removed.
func (l *Log) Append(userID, text string) error {
	if err := l.store.AppendMemory(userID, text); err != nil {
		return fmt.Errorf("appending memory for %s: %w", userID, err)
	}
	return nil
}

// Entries returns the user's transcript entries, oldest first.
func (l *Log) Entries(userID string) ([]storage.MemoryEntry, error) {
	entries, err := l.store.GetMemoryEntries(userID)
	if err != nil {
		return nil, fmt.Errorf("reading memory for %s: %w", userID, err)
	}
	return entries, nil
}

// Transcript returns every entry newline-joined, oldest first. A user with
// no memory yields the empty string.
func (l *Log) Transcript(userID string) (string, error) {
	entries, err := l.Entries(userID)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	return strings.Join(texts, "\n"), nil
}
