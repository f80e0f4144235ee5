package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/sessions"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/server"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const historyFile = "chat_history"

var (
	chatSandbox  bool
	chatShowLogs bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from a terminal",
	Long: `Starts an interactive chat with the assistant. Type "exit" or press
Ctrl-D to leave. The conversation uses the same store, settings and workers
as the desktop API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("sandbox") {
			cfg.Assistant.SandboxDefault = chatSandbox
		}
		return runChat(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatSandbox, "sandbox", false, "start in sandbox mode")
	chatCmd.Flags().BoolVar(&chatShowLogs, "logs", false, "print the activity log as it happens")
}

func runChat(parent context.Context, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize assistant: %w", err)
	}
	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Shutdown incomplete")
		}
	}()

	if chatShowLogs {
		ch := srv.Session.Subscribe()
		defer srv.Session.Unsubscribe(ch)
		go printLogs(ctx, out, ch)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history := filepath.Join(cfg.Paths.DataDir, historyFile)
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(line, history)

	fmt.Fprintln(out, "👋 Personaliz is ready. Try \"check dependencies\" or \"build agent\".")
	for {
		text, err := line.Prompt("you › ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}
		line.AppendHistory(text)

		msgs, err := srv.Engine.Handle(ctx, text)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Fprintln(out, m.Text)
		}
	}
}

func printLogs(ctx context.Context, out io.Writer, ch chan sessions.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Type == sessions.EventLog && e.Log != nil {
				fmt.Fprintf(out, "  · %s\n", e.Log.Text)
			}
		}
	}
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to save chat history")
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
