package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeFormat = time.RFC3339

// Store wraps a SQLite database holding the user profile tables,
// conversation memory, consent flags, interactions, and the job queue.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used
// by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "qraphael.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw connection for callers that issue their own queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Conversation memory ---

// AppendMemory adds one entry to the user's transcript. Entries are never
// mutated or deleted; read order is the append order.
func (s *Store) AppendMemory(userID, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO user_memory (user_id, memory_text, created_at) VALUES (?, ?, ?)`,
		userID, text, time.Now().UTC().Format(timeFormat),
	)
	return err
}

// GetMemoryEntries returns the user's transcript entries, oldest first.
func (s *Store) GetMemoryEntries(userID string) ([]MemoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, memory_text, created_at FROM user_memory WHERE user_id = ? ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Text, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Consent flags ---

// ConsentPending reports whether the assistant must re-ask before touching
// the given category for this user. Missing rows default to pending.
func (s *Store) ConsentPending(userID, category string) (bool, error) {
	var ask int
	err := s.db.QueryRow(
		`SELECT ask FROM request_changes WHERE user_id = ? AND category = ?`,
		userID, category,
	).Scan(&ask)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	return ask != 0, nil
}

// SetConsent records the outcome of a consent dialogue for one category.
func (s *Store) SetConsent(userID, category string, ask bool) error {
	v := 0
	if ask {
		v = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO request_changes (user_id, category, ask, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, category) DO UPDATE SET ask = excluded.ask, updated_at = excluded.updated_at`,
		userID, category, v, time.Now().UTC().Format(timeFormat),
	)
	return err
}

// PendingConsentQuestion returns the category of an unanswered consent
// question for the user, or "" when none is outstanding. The state lives
// in the store so a question asked by one process can be answered in the
// next.
func (s *Store) PendingConsentQuestion(userID string) (string, error) {
	var category string
	err := s.db.QueryRow(
		`SELECT category FROM request_changes WHERE user_id = ? AND pending = 1 LIMIT 1`,
		userID,
	).Scan(&category)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return category, nil
}

// MarkConsentQuestion records (or clears) an outstanding consent question
// for one category.
func (s *Store) MarkConsentQuestion(userID, category string, pending bool) error {
	v := 0
	if pending {
		v = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO request_changes (user_id, category, pending, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, category) DO UPDATE SET pending = excluded.pending, updated_at = excluded.updated_at`,
		userID, category, v, time.Now().UTC().Format(timeFormat),
	)
	return err
}

// --- Interactions ---

func (s *Store) SaveInteraction(i Interaction) error {
	_, err := s.db.Exec(`
		INSERT INTO interactions (id, user_id, created_at, user_query, prompt, response, kind, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.CreatedAt.UTC().Format(timeFormat),
		i.UserQuery, i.Prompt, i.Response, i.Kind, i.Model,
	)
	return err
}

func (s *Store) GetInteraction(id string) (Interaction, error) {
	var i Interaction
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, created_at, user_query, prompt, response, kind, model
		FROM interactions WHERE id = ?`, id,
	).Scan(&i.ID, &i.UserID, &createdAt, &i.UserQuery, &i.Prompt, &i.Response, &i.Kind, &i.Model)
	if err == sql.ErrNoRows {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, err
	}
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return Interaction{}, fmt.Errorf("parsing created_at: %w", err)
	}
	i.CreatedAt = t
	return i, nil
}

// GetRecentInteractions returns the user's latest turns, newest first.
func (s *Store) GetRecentInteractions(userID string, limit int) ([]Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, created_at, user_query, prompt, response, kind, model
		FROM interactions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		if err := rows.Scan(&i.ID, &i.UserID, &createdAt, &i.UserQuery, &i.Prompt, &i.Response, &i.Kind, &i.Model); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		results = append(results, i)
	}
	return results, rows.Err()
}
