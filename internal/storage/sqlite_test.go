package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMemoryAppendOrder(t *testing.T) {
	s := openTestStore(t)

	const user = "u1"
	want := []string{"first", "second", "third"}
	for _, text := range want {
		if err := s.AppendMemory(user, text); err != nil {
			t.Fatalf("AppendMemory(%q): %v", text, err)
		}
	}
	// Another user's entries must not leak in.
	if err := s.AppendMemory("u2", "other"); err != nil {
		t.Fatalf("AppendMemory: %v", err)
	}

	entries, err := s.GetMemoryEntries(user)
	if err != nil {
		t.Fatalf("GetMemoryEntries: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Text != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], e.Text)
		}
	}
}

func TestMemoryEmptyUser(t *testing.T) {
	s := openTestStore(t)

	entries, err := s.GetMemoryEntries("nobody")
	if err != nil {
		t.Fatalf("GetMemoryEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestUserDetailsUpsert(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetUserDetail("u1", "name", "Grace"); err != nil {
		t.Fatalf("SetUserDetail: %v", err)
	}
	if err := s.SetUserDetail("u1", "name", "Ada"); err != nil {
		t.Fatalf("SetUserDetail (update): %v", err)
	}
	if err := s.SetUserDetail("u1", "email", "ada@example.com"); err != nil {
		t.Fatalf("SetUserDetail: %v", err)
	}

	details, err := s.GetUserDetails("u1")
	if err != nil {
		t.Fatalf("GetUserDetails: %v", err)
	}
	if details["name"] != "Ada" {
		t.Errorf("expected updated name %q, got %q", "Ada", details["name"])
	}
	if details["email"] != "ada@example.com" {
		t.Errorf("unexpected email %q", details["email"])
	}
}

func TestListCategoryRowOrder(t *testing.T) {
	s := openTestStore(t)

	amounts := []float64{120.50, 42.99, 7.25}
	for i, amount := range amounts {
		e := Expense{Category: fmt.Sprintf("cat-%d", i), Amount: amount, Date: "2026-01-0" + fmt.Sprint(i+1)}
		if err := s.AddExpense("u1", e); err != nil {
			t.Fatalf("AddExpense: %v", err)
		}
	}

	expenses, err := s.GetExpenses("u1")
	if err != nil {
		t.Fatalf("GetExpenses: %v", err)
	}
	if len(expenses) != len(amounts) {
		t.Fatalf("expected %d expenses, got %d", len(amounts), len(expenses))
	}
	for i, e := range expenses {
		if e.Amount != amounts[i] {
			t.Errorf("expense %d: expected amount %v, got %v", i, amounts[i], e.Amount)
		}
	}
}

func TestSingletonNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetProfessional("missing"); err != ErrNotFound {
		t.Errorf("GetProfessional: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetInterests("missing"); err != ErrNotFound {
		t.Errorf("GetInterests: expected ErrNotFound, got %v", err)
	}
}

func TestSingletonUpsert(t *testing.T) {
	s := openTestStore(t)

	first := Interests{Hobbies: "outdoors, chess"}
	if err := s.SetInterests("u1", first); err != nil {
		t.Fatalf("SetInterests: %v", err)
	}
	second := Interests{Hobbies: "outdoors", FoodPreferences: "thai"}
	if err := s.SetInterests("u1", second); err != nil {
		t.Fatalf("SetInterests (update): %v", err)
	}

	got, err := s.GetInterests("u1")
	if err != nil {
		t.Fatalf("GetInterests: %v", err)
	}
	if got != second {
		t.Errorf("expected %+v, got %+v", second, got)
	}
}

func TestConsentDefaultsToPending(t *testing.T) {
	s := openTestStore(t)

	pending, err := s.ConsentPending("u1", "medical")
	if err != nil {
		t.Fatalf("ConsentPending: %v", err)
	}
	if !pending {
		t.Error("expected missing consent row to read as pending")
	}

	if err := s.SetConsent("u1", "medical", false); err != nil {
		t.Fatalf("SetConsent: %v", err)
	}
	pending, err = s.ConsentPending("u1", "medical")
	if err != nil {
		t.Fatalf("ConsentPending after SetConsent: %v", err)
	}
	if pending {
		t.Error("expected consent to be cleared after SetConsent(false)")
	}

	// Other categories stay pending.
	pending, err = s.ConsentPending("u1", "financial")
	if err != nil {
		t.Fatalf("ConsentPending(financial): %v", err)
	}
	if !pending {
		t.Error("expected financial consent to remain pending")
	}
}

func TestConsentQuestionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	category, err := s.PendingConsentQuestion("u1")
	if err != nil {
		t.Fatalf("PendingConsentQuestion: %v", err)
	}
	if category != "" {
		t.Errorf("expected no outstanding question, got %q", category)
	}

	if err := s.MarkConsentQuestion("u1", "medical", true); err != nil {
		t.Fatalf("MarkConsentQuestion: %v", err)
	}
	category, err = s.PendingConsentQuestion("u1")
	if err != nil {
		t.Fatalf("PendingConsentQuestion: %v", err)
	}
	if category != "medical" {
		t.Errorf("outstanding question = %q, want medical", category)
	}

	// Another user sees nothing outstanding.
	category, err = s.PendingConsentQuestion("u2")
	if err != nil {
		t.Fatalf("PendingConsentQuestion(u2): %v", err)
	}
	if category != "" {
		t.Errorf("expected no question for u2, got %q", category)
	}

	if err := s.MarkConsentQuestion("u1", "medical", false); err != nil {
		t.Fatalf("MarkConsentQuestion (clear): %v", err)
	}
	category, err = s.PendingConsentQuestion("u1")
	if err != nil {
		t.Fatalf("PendingConsentQuestion after clear: %v", err)
	}
	if category != "" {
		t.Errorf("expected the question to be cleared, got %q", category)
	}
}

func TestInteractionRoundTrip(t *testing.T) {
	s := openTestStore(t)

	i := Interaction{
		ID:        uuid.New().String(),
		UserID:    "u1",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UserQuery: "Hello there",
		Prompt:    "[Conversation History]\n\nHello there",
		Response:  "Hi! How can I help?",
		Kind:      "generated",
		Model:     "qraphael-2b-it",
	}
	if err := s.SaveInteraction(i); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	got, err := s.GetInteraction(i.ID)
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got != i {
		t.Errorf("interaction changed across round-trip:\n  want %+v\n  got  %+v", i, got)
	}

	recent, err := s.GetRecentInteractions("u1", 10)
	if err != nil {
		t.Fatalf("GetRecentInteractions: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != i.ID {
		t.Errorf("expected one recent interaction %s, got %+v", i.ID, recent)
	}
}

func TestJobQueueClaimAndComplete(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: uuid.New().String(), Type: "ingest_extract", PayloadJSON: `{"document_id":"d1"}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	claimed, err := s.ClaimNextJob([]string{"ingest_extract"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed job")
	}
	if claimed.Status != "running" {
		t.Errorf("expected status running, got %q", claimed.Status)
	}

	// The same job must not be claimable twice.
	again, err := s.ClaimNextJob([]string{"ingest_extract"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("expected no claimable job, got %+v", again)
	}

	if err := s.CompleteJob(claimed.ID); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

func TestJobFailureBackoff(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: uuid.New().String(), Type: "ingest_extract", PayloadJSON: `{}`, MaxAttempts: 2}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	claimed, err := s.ClaimNextJob([]string{"ingest_extract"})
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextJob: %v, job=%v", err, claimed)
	}

	if err := s.FailJob(claimed.ID, "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	// First failure reschedules into the future, so nothing is claimable now.
	again, err := s.ClaimNextJob([]string{"ingest_extract"})
	if err != nil {
		t.Fatalf("ClaimNextJob after failure: %v", err)
	}
	if again != nil {
		t.Errorf("expected backoff to delay the retry, got %+v", again)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := openTestStore(t)

	d := Document{
		ID:          uuid.New().String(),
		UserID:      "u1",
		Title:       "notes",
		Content:     "plain text",
		ContentType: "text",
		Source:      "cli",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SaveDocument(d); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument(d.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Status != "pending" {
		t.Errorf("expected default status pending, got %q", got.Status)
	}

	if err := s.SetDocumentStatus(d.ID, "extracted"); err != nil {
		t.Fatalf("SetDocumentStatus: %v", err)
	}
	got, err = s.GetDocument(d.ID)
	if err != nil {
		t.Fatalf("GetDocument after status update: %v", err)
	}
	if got.Status != "extracted" {
		t.Errorf("expected status extracted, got %q", got.Status)
	}

	if err := s.SetDocumentStatus("missing", "failed"); err != ErrNotFound {
		t.Errorf("SetDocumentStatus(missing): expected ErrNotFound, got %v", err)
	}
}
