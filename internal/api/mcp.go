package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ncacord/qraphael/internal/profile"
	"github.com/ncacord/qraphael/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store       *storage.Store
	Profile     *profile.Accessor
	Chat        Chatter
	DefaultUser string
}

// NewMCPServer creates an MCP server exposing the assistant over the
// Model Context Protocol: ask a question, remember a note, and manage
// the profile.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"qraphael",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("qraphael — personal assistant with per-user profile, memory, and local generation."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Run one assistant turn: the message is answered using the user's profile and conversation memory, and the turn is persisted."),
			mcp.WithString("message", mcp.Description("The user's message"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("User to act as (defaults to the configured user)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("remember",
			mcp.WithDescription("Append a free-text note to the user's conversation memory."),
			mcp.WithString("text", mcp.Description("The note to remember"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("User to act as (defaults to the configured user)")),
		),
		mcpRemember(deps),
	)

	s.AddTool(
		mcp.NewTool("set_preference",
			mcp.WithDescription("Update a user preference."),
			mcp.WithString("key", mcp.Description("Preference key (e.g. hobbies)"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("User to act as (defaults to the configured user)")),
		),
		mcpSetPreference(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Default user's profile as JSON, one section per category"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 turns for the default user (queries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func (d MCPDeps) userID(req mcp.CallToolRequest) string {
	if id := req.GetString("user_id", ""); id != "" {
		return id
	}
	return d.DefaultUser
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Chat.RunOnce(ctx, deps.userID(req), message)
		if err != nil {
			return mcpError(fmt.Sprintf("turn failed: %v", err)), nil
		}
		return mcpText(reply), nil
	}
}

func mcpRemember(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		userID := deps.userID(req)
		if err := deps.Store.AppendMemory(userID, text); err != nil {
			return mcpError(fmt.Sprintf("failed to remember: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Remembered for %s", userID)), nil
	}
}

func mcpSetPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		if err := deps.Profile.SetPreference(deps.userID(req), key, value); err != nil {
			return mcpError(fmt.Sprintf("failed to set preference: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		userID := deps.DefaultUser
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

		b, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Store.GetRecentInteractions(deps.DefaultUser, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Query     string `json:"query"`
			Kind      string `json:"kind"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			query := ix.UserQuery
			if utf8.RuneCountInString(query) > 200 {
				runes := []rune(query)
				query = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Query:     query,
				Kind:      ix.Kind,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
