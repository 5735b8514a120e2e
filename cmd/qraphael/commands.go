package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ncacord/qraphael/internal/config"
	"github.com/ncacord/qraphael/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a note into conversation memory",
	Long: `Ingest a note into conversation memory.

The content is queued for text extraction and appended to the user's
memory as a note once extracted.

Examples:
  qraphael ingest --text "Pick up the dry cleaning on Friday"
  qraphael ingest --url https://example.com/article
  qraphael ingest --file ./notes.pdf --title "Meeting notes"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		url, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		user, _ := cmd.Flags().GetString("user")

		if text == "" && url == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		req := map[string]any{
			"source": "cli",
		}
		if title != "" {
			req["title"] = title
		}
		if user != "" {
			req["user_id"] = user
		}

		switch {
		case text != "":
			req["type"] = "text"
			req["content"] = text
		case url != "":
			req["type"] = "url"
			req["url"] = url
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			switch strings.ToLower(filepath.Ext(file)) {
			case ".pdf":
				req["type"] = "pdf"
				req["content"] = base64.StdEncoding.EncodeToString(data)
			case ".html", ".htm":
				req["type"] = "html"
				req["content"] = string(data)
			default:
				req["type"] = "text"
				req["content"] = string(data)
			}
			if title == "" {
				req["title"] = file
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ingest", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued note %s", result["id"])
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("url", "", "URL to fetch and ingest")
	ingestCmd.Flags().String("file", "", "file path to ingest (.pdf and .html are extracted)")
	ingestCmd.Flags().String("title", "", "title for the note")
	ingestCmd.Flags().String("user", "", "user to attach the note to")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), profilePath(user))
		if err != nil {
			return err
		}

		var snapshot any
		if err := decodeJSON(resp, &snapshot); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set the user's name or a preference",
	Long: `Set the user's name or a preference.

"name" updates the identity name; any other key is stored as a
preference.

Examples:
  qraphael profile set name Ada
  qraphael profile set hobbies "hiking, chess"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{}
		if user != "" {
			body["user_id"] = user
		}
		if key == "name" {
			body["name"] = value
		} else {
			body["preferences"] = map[string]string{key: value}
		}

		resp, err := client.patch(cmd.Context(), "/profile", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit name and preferences in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), profilePath(user))
		if err != nil {
			return err
		}

		var snapshot struct {
			Identity struct {
				Name string `json:"name"`
			} `json:"identity"`
			Preferences map[string]string `json:"preferences"`
		}
		if err := decodeJSON(resp, &snapshot); err != nil {
			return err
		}

		// Only the writable slice of the profile is editable.
		editable := map[string]any{
			"name":        snapshot.Identity.Name,
			"preferences": snapshot.Preferences,
		}
		data, err := json.MarshalIndent(editable, "", "  ")
		if err != nil {
			return err
		}

		tmpFile, err := os.CreateTemp("", "qraphael-profile-*.json")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := tmpFile.Write(data); err != nil {
			tmpFile.Close()
			return err
		}
		tmpFile.Close()

		editorCmd := exec.Command(editor, tmpPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			return fmt.Errorf("editor exited with error: %w", err)
		}

		edited, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}

		var fields map[string]any
		if err := json.Unmarshal(edited, &fields); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		if user != "" {
			fields["user_id"] = user
		}

		patchResp, err := client.patch(cmd.Context(), "/profile", fields)
		if err != nil {
			return err
		}
		defer patchResp.Body.Close()

		if patchResp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", patchResp.StatusCode)
		}

		printSuccess("Profile updated")
		return nil
	},
}

func profilePath(user string) string {
	if user == "" {
		return "/profile"
	}
	return "/profile?user_id=" + user
}

func init() {
	profileShowCmd.Flags().String("user", "", "user whose profile to show")
	profileSetCmd.Flags().String("user", "", "user whose profile to update")
	profileEditCmd.Flags().String("user", "", "user whose profile to edit")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileEditCmd)
}

// --- memory ---

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or extend conversation memory",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the memory log",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/memory"
		if user != "" {
			path += "?user_id=" + user
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var entries []storage.MemoryEntry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No memory entries.")
			return nil
		}

		for _, e := range entries {
			stamp := e.CreatedAt.Format("2006-01-02 15:04")
			fmt.Printf("%s\n%s\n\n", colorize(colorCyan, stamp), e.Text)
		}
		return nil
	},
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Append an entry to the memory log",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"text": text}
		if user != "" {
			body["user_id"] = user
		}
		resp, err := client.post(cmd.Context(), "/memory", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Memory appended")
		return nil
	},
}

func init() {
	memoryShowCmd.Flags().String("user", "", "user whose memory to show")
	memoryAddCmd.Flags().String("user", "", "user whose memory to extend")
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryAddCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past turns",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/interactions?limit=%d", limit)
		if user != "" {
			path += "&user_id=" + user
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var interactions []storage.Interaction
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Println("No turns recorded.")
			return nil
		}

		for _, ix := range interactions {
			query := ix.UserQuery
			if len(query) > 80 {
				query = query[:80] + "..."
			}
			fmt.Printf("%s  %s  %-9s  %s\n",
				colorize(colorCyan, ix.ID[:8]),
				ix.CreatedAt.Format("2006-01-02 15:04"),
				ix.Kind,
				query,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/interactions/"+args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeJSON(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of turns to list")
	historyListCmd.Flags().String("user", "", "user whose turns to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"show"},
	Short:   "List all configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a single configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		value, err := config.GetKey(cfg, args[0])
		if err != nil {
			return err
		}

		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
