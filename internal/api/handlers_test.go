package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ncacord/qraphael/internal/ingest"
	"github.com/ncacord/qraphael/internal/profile"
	"github.com/ncacord/qraphael/internal/storage"
)

const testToken = "test-token"

type mockChatter struct {
	reply string
	err   error
	calls []string
}

func (m *mockChatter) RunOnce(_ context.Context, userID, utterance string) (string, error) {
	m.calls = append(m.calls, userID+"|"+utterance)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func newTestDeps(t *testing.T) (Deps, *storage.Store, *mockChatter) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	chat := &mockChatter{reply: "Hi! How can I help?"}
	deps := Deps{
		Store:       store,
		Profile:     profile.NewAccessor(store),
		Chat:        chat,
		Token:       testToken,
		DefaultUser: "u1",
	}
	return deps, store, chat
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestChat(t *testing.T) {
	deps, _, chat := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/chat", map[string]string{"message": "Hello there"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["reply"] != "Hi! How can I help?" {
		t.Errorf("reply = %q", resp["reply"])
	}
	if len(chat.calls) != 1 || chat.calls[0] != "u1|Hello there" {
		t.Errorf("calls = %v, want the default user", chat.calls)
	}
}

func TestChat_MissingMessage(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/chat", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChat_TurnFailure(t *testing.T) {
	deps, _, chat := newTestDeps(t)
	chat.err = errors.New("backend down")
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/chat", map[string]string{"message": "hi"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestProfilePatchThenGet(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPatch, "/profile", map[string]any{
		"name":        "Ada",
		"preferences": map[string]string{"hobbies": "outdoors"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/profile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Identity.Name != "Ada" {
		t.Errorf("name = %q, want Ada", resp.Identity.Name)
	}
	if resp.Preferences["hobbies"] != "outdoors" {
		t.Errorf("preferences = %v", resp.Preferences)
	}
}

func TestProfilePatchSingletonRecords(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPatch, "/profile", map[string]any{
		"professional": map[string]string{"current_job": "engineer at Acme"},
		"education":    map[string]string{"degrees": "BSc Mathematics"},
		"interests":    map[string]string{"hobbies": "chess"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}

	// A second patch touching one fragment leaves the others alone.
	rec = doRequest(t, h, http.MethodPatch, "/profile", map[string]any{
		"social": map[string]string{"family_members": "two siblings"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/profile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	var resp profileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Professional.CurrentJob != "engineer at Acme" {
		t.Errorf("professional = %+v", resp.Professional)
	}
	if resp.Education.Degrees != "BSc Mathematics" {
		t.Errorf("education = %+v", resp.Education)
	}
	if resp.Interests.Hobbies != "chess" {
		t.Errorf("interests = %+v", resp.Interests)
	}
	if resp.Social.FamilyMembers != "two siblings" {
		t.Errorf("social = %+v", resp.Social)
	}
}

func TestMemoryPostThenGet(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	for _, text := range []string{"first note", "second note"} {
		rec := doRequest(t, h, http.MethodPost, "/memory", map[string]string{"text": text})
		if rec.Code != http.StatusOK {
			t.Fatalf("post status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := doRequest(t, h, http.MethodGet, "/memory", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	var entries []storage.MemoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(entries) != 2 || entries[0].Text != "first note" || entries[1].Text != "second note" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestMemoryGetEmptyIsArray(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/memory", nil)
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want an empty JSON array", got)
	}
}

func TestIngestEnqueuesExtractionJob(t *testing.T) {
	deps, store, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/ingest", map[string]string{
		"title":   "Groceries",
		"content": "milk, eggs",
		"type":    "text",
		"source":  "upload",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "queued" {
		t.Errorf("status = %q", resp["status"])
	}

	doc, err := store.GetDocument(resp["id"])
	if err != nil {
		t.Fatalf("document not saved: %v", err)
	}
	if doc.Status != "pending" || doc.ContentType != "text" {
		t.Errorf("doc = %+v", doc)
	}

	job, err := store.ClaimNextJob([]string{ingest.JobType})
	if err != nil {
		t.Fatalf("claiming job: %v", err)
	}
	if job == nil {
		t.Fatal("no extraction job enqueued")
	}

	var payload ingest.Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.DocumentID != resp["id"] {
		t.Errorf("payload doc = %q, want %q", payload.DocumentID, resp["id"])
	}
}

func TestIngestRejectsEmptyBody(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/ingest", map[string]string{"title": "empty"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListInteractions(t *testing.T) {
	deps, store, _ := newTestDeps(t)
	h := NewHandler(deps)

	saved := storage.Interaction{
		ID: "i1", UserID: "u1", UserQuery: "hello", Response: "hi", Kind: "canned",
	}
	if err := store.SaveInteraction(saved); err != nil {
		t.Fatalf("saving interaction: %v", err)
	}

	rec := doRequest(t, h, http.MethodGet, "/interactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []storage.Interaction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "i1" {
		t.Errorf("interactions = %+v", got)
	}
}

func TestGetInteraction_NotFound(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/interactions/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
