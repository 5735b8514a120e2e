package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ncacord/qraphael/internal/aggregator"
	"github.com/ncacord/qraphael/internal/composer"
	"github.com/ncacord/qraphael/internal/config"
	"github.com/ncacord/qraphael/internal/engine"
	"github.com/ncacord/qraphael/internal/memory"
	"github.com/ncacord/qraphael/internal/profile"
	"github.com/ncacord/qraphael/internal/storage"
	"github.com/ncacord/qraphael/internal/turn"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant (in-process, no server needed)",
	Long: `Talk to the assistant directly, without the server.

Examples:
  qraphael chat --prompt "What is your name?"
  qraphael chat --user alice --prompt "suggest something to do"
  qraphael chat --loop`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, _ := cmd.Flags().GetString("prompt")
		user, _ := cmd.Flags().GetString("user")
		interactive, _ := cmd.Flags().GetBool("loop")
		maxLength, _ := cmd.Flags().GetInt("max-length")
		logLevel, _ := cmd.Flags().GetString("log-level")

		if prompt == "" && !interactive {
			return fmt.Errorf("nothing to do: provide --prompt or --loop")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if maxLength > 0 {
			cfg.Generation.MaxNewTokens = maxLength
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		setupLogging(cfg.Log.Level)

		if user == "" {
			user = cfg.DefaultUser
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
		if err := engine.EnsureReady(ctx, eng, cfg.Ollama.Model, os.Stderr); err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		loop := buildTurnLoop(cfg, store, eng)

		if interactive {
			return loop.Run(ctx, user, os.Stdin, os.Stdout)
		}

		reply, err := loop.RunOnce(ctx, user, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, reply)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("prompt", "", "single prompt to run")
	chatCmd.Flags().String("user", "", "acting user (default: configured default_user)")
	chatCmd.Flags().Bool("loop", false, "interactive prompt loop on stdin")
	chatCmd.Flags().Int("max-length", 0, "override max new tokens for generation")
	chatCmd.Flags().String("log-level", "", "override log level (debug, info, warn, error)")
}

// buildTurnLoop wires the conversation pipeline over an open store and
// engine. Shared between chat mode and the server.
func buildTurnLoop(cfg config.Config, store *storage.Store, eng engine.Engine) *turn.Loop {
	prof := profile.NewAccessor(store)
	mem := memory.NewLog(store)
	agg := aggregator.New(prof, mem)
	asm := composer.New(nil)
	return turn.New(agg, asm, eng, store, prof, turn.Options{
		Model:          cfg.Ollama.Model,
		Gen:            cfg.GenOptions(),
		GenerateWithin: cfg.GenTimeout(),
	})
}
