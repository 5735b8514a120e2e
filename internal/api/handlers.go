// Package api serves the HTTP surface of the assistant: chat, profile,
// memory, interaction history, and document ingestion. All routes except
// the health probe require the configured bearer token.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ncacord/qraphael/internal/ingest"
	"github.com/ncacord/qraphael/internal/profile"
	"github.com/ncacord/qraphael/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxIngestBodySize = 10 << 20 // 10MB
const maxURLFetchSize = 5 << 20    // 5MB

// Chatter runs one turn of the conversation pipeline. Implemented by
// turn.Loop.
type Chatter interface {
	RunOnce(ctx context.Context, userID, utterance string) (string, error)
}

type Deps struct {
	Store       *storage.Store
	Profile     *profile.Accessor
	Chat        Chatter
	Token       string
	DefaultUser string
	HTTPClient  *http.Client
}

// NewHandler builds the router. GET /health stays open; everything else
// sits behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))
		r.Get("/profile", handleGetProfile(deps))
		r.Patch("/profile", handlePatchProfile(deps))
		r.Get("/memory", handleGetMemory(deps))
		r.Post("/memory", handlePostMemory(deps))
		r.Get("/interactions", handleListInteractions(deps))
		r.Get("/interactions/{id}", handleGetInteraction(deps))
		r.Post("/ingest", handleIngest(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// userID resolves the acting user from the query or body field, falling
// back to the configured default user.
func (d Deps) userID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return d.DefaultUser
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		reply, err := deps.Chat.RunOnce(r.Context(), deps.userID(req.UserID), req.Message)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "turn failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": reply})
	}
}

// profileResponse is the full profile snapshot, one field per category.
type profileResponse struct {
	UserID        string                `json:"user_id"`
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

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := deps.userID(r.URL.Query().Get("user_id"))

		resp := profileResponse{
			UserID:        userID,
			Identity:      deps.Profile.Identity(userID),
			Preferences:   deps.Profile.Preferences(userID),
			Medical:       deps.Profile.Medical(userID),
			Financial:     deps.Profile.Financial(userID),
			Professional:  deps.Profile.Professional(userID),
			Education:     deps.Profile.Education(userID),
			Social:        deps.Profile.Social(userID),
			Security:      deps.Profile.Security(userID),
			Miscellaneous: deps.Profile.Miscellaneous(userID),
			Interests:     deps.Profile.Interests(userID),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// patchProfileRequest carries a partial profile update. Singleton records
// are pointers so an absent fragment is distinguishable from a zero one;
// a present fragment replaces the stored record wholesale.
type patchProfileRequest struct {
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
	Preferences map[string]string `json:"preferences"`

	Professional  *storage.Professional  `json:"professional"`
	Education     *storage.Education     `json:"education"`
	Social        *storage.Social        `json:"social"`
	Security      *storage.Security      `json:"security"`
	Miscellaneous *storage.Miscellaneous `json:"miscellaneous"`
	Interests     *storage.Interests     `json:"interests"`
}

func handlePatchProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req patchProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		userID := deps.userID(req.UserID)
		if req.Name != "" {
			if err := deps.Profile.SetName(userID, req.Name); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to set name: %v", err)
				return
			}
		}
		for key, value := range req.Preferences {
			if err := deps.Profile.SetPreference(userID, key, value); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to set preference %q: %v", key, err)
				return
			}
		}
		if err := applySingletons(deps.Profile, userID, &req); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
	}
}

// applySingletons writes each singleton fragment present in the request.
func applySingletons(p *profile.Accessor, userID string, req *patchProfileRequest) error {
	if req.Professional != nil {
		if err := p.SetProfessional(userID, *req.Professional); err != nil {
			return fmt.Errorf("failed to set professional record: %w", err)
		}
	}
	if req.Education != nil {
		if err := p.SetEducation(userID, *req.Education); err != nil {
			return fmt.Errorf("failed to set education record: %w", err)
		}
	}
	if req.Social != nil {
		if err := p.SetSocial(userID, *req.Social); err != nil {
			return fmt.Errorf("failed to set social record: %w", err)
		}
	}
	if req.Security != nil {
		if err := p.SetSecurity(userID, *req.Security); err != nil {
			return fmt.Errorf("failed to set security record: %w", err)
		}
	}
	if req.Miscellaneous != nil {
		if err := p.SetMiscellaneous(userID, *req.Miscellaneous); err != nil {
			return fmt.Errorf("failed to set miscellaneous record: %w", err)
		}
	}
	if req.Interests != nil {
		if err := p.SetInterests(userID, *req.Interests); err != nil {
			return fmt.Errorf("failed to set interests record: %w", err)
		}
	}
	return nil
}

func handleGetMemory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := deps.userID(r.URL.Query().Get("user_id"))

		entries, err := deps.Store.GetMemoryEntries(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read memory: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.MemoryEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

type postMemoryRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

func handlePostMemory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req postMemoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		if err := deps.Store.AppendMemory(deps.userID(req.UserID), req.Text); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to append memory: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "appended"})
	}
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := deps.userID(r.URL.Query().Get("user_id"))
		limit := parseIntParam(r, "limit", 20, 100)

		interactions, err := deps.Store.GetRecentInteractions(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interactions)
	}
}

func handleGetInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		interaction, err := deps.Store.GetInteraction(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interaction not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get interaction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interaction)
	}
}

type ingestRequest struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"` // "text", "html", "pdf", or "url"
	Title   string `json:"title"`
	Content string `json:"content"` // base64 for pdf
	URL     string `json:"url"`
	Source  string `json:"source"`
}

func handleIngest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		defer r.Body.Close()

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" && req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of content or url is required")
			return
		}
		if req.Type == "" {
			req.Type = "text"
		}

		contentType := req.Type
		content := req.Content
		if req.Type == "url" {
			fetched, err := fetchURL(r.Context(), deps.HTTPClient, req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to fetch url: %v", err)
				return
			}
			contentType, content = "html", fetched
			if req.Title == "" {
				req.Title = req.URL
			}
			if req.Source == "" {
				req.Source = req.URL
			}
		}
		if contentType == "pdf" {
			if _, err := base64.StdEncoding.DecodeString(content); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "pdf content must be base64")
				return
			}
		}

		doc := storage.Document{
			ID:          uuid.New().String(),
			UserID:      deps.userID(req.UserID),
			Title:       req.Title,
			Content:     content,
			ContentType: contentType,
			Source:      req.Source,
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		payload, err := json.Marshal(ingest.Payload{DocumentID: doc.ID})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        ingest.JobType,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":     doc.ID,
			"status": "queued",
		})
	}
}

func fetchURL(ctx context.Context, client *http.Client, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxURLFetchSize))
	if err != nil {
		return "", fmt.Errorf("reading url response: %w", err)
	}
	return string(body), nil
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
