package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/mobi/internal/api"
	"github.com/kalambet/mobi/internal/assistant"
	"github.com/kalambet/mobi/internal/config"
	"github.com/kalambet/mobi/internal/dispatch"
)

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// --- listen ---

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Start an interactive session in this terminal",
	Long: `Start an interactive session in this terminal.

Without voice.listen_command every typed line is handled as if it had been
spoken. Configure voice.listen_command and voice.speak_command to use a
speech-to-text and a text-to-speech program instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		listener, speaker, err := buildVoice(cfg.Voice, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		a, err := newApp(cfg, appOptions{
			Listener: listener,
			Speaker:  speaker,
			Display:  sessionDisplay(cmd.ErrOrStderr(), cfg.Voice.ListenCommand != ""),
		})
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("%s is ready. Press Ctrl+C to quit.", cfg.Voice.Name)
		return a.assistant.Run(ctx)
	},
}

// sessionDisplay echoes recognized speech and tags each reply with its
// provider and status. Reply text itself goes through the speaker.
func sessionDisplay(w io.Writer, echo bool) assistant.Display {
	return assistant.DisplayFunc(func(res dispatch.Result) {
		if echo && res.Utterance.Text != "" {
			fmt.Fprintf(w, "%s %s\n", colorize(colorCyan, "You said:"), res.Utterance.Text)
		}
		tag := string(res.Status)
		if p := res.ProviderName(); p != "" {
			tag = p + ", " + tag
		}
		fmt.Fprintln(w, colorize(statusColor(string(res.Status)), "["+tag+"]"))
	})
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Send a typed request to the running server",
	Long: `Send a typed request to the running server.

Examples:
  mobi ask what is photosynthesis
  mobi ask open youtube
  mobi ask send a whatsapp message --followup "+1 415 555 0100" --followup "running late"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		followUps, _ := cmd.Flags().GetStringArray("followup")
		asJSON, _ := cmd.Flags().GetBool("json")
		trace, _ := cmd.Flags().GetBool("trace")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := ask(cmdContext(cmd), client, strings.Join(args, " "), followUps)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printReply(out, resp.Result, resp.Status, resp.Provider)
		if trace {
			for _, at := range resp.Attempts {
				line := fmt.Sprintf("%s: %s (%s)", at.Provider, at.Outcome, at.Duration.Round(time.Millisecond))
				if at.Error != "" {
					line += " " + at.Error
				}
				fmt.Fprintln(out, "  "+line)
			}
		}
		return nil
	},
}

func ask(ctx context.Context, client *apiClient, text string, followUps []string) (api.DispatchResponse, error) {
	var out api.DispatchResponse
	resp, err := client.post(ctx, "/v1/dispatch", api.DispatchRequest{
		Text:      text,
		Source:    string(dispatch.SourceTyped),
		FollowUps: followUps,
	})
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}

func init() {
	askCmd.Flags().StringArray("followup", nil, "answer to a follow-up question (repeatable, in order)")
	askCmd.Flags().Bool("json", false, "print the raw JSON response")
	askCmd.Flags().Bool("trace", false, "show each provider consulted")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the conversation history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent requests and replies",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmdContext(cmd), fmt.Sprintf("/v1/history?limit=%d&offset=%d", limit, offset))
		if err != nil {
			return err
		}
		var page api.HistoryPage
		if err := decodeJSON(resp, &page); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(page.Entries) == 0 {
			fmt.Fprintln(out, "No history found.")
			return nil
		}
		for _, e := range page.Entries {
			fmt.Fprintf(out, "%s  %s  %s\n",
				colorize(colorCyan, shortID(e.ID)),
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
				truncate(e.Query, 60),
			)
			fmt.Fprintf(out, "          %s %s\n", colorize(statusColor(e.Status), "→"), truncate(e.Result, 100))
		}
		if shown := offset + len(page.Entries); shown < page.Total {
			fmt.Fprintf(out, "\n%d of %d entries, use --offset %d for more\n", shown, page.Total, shown)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmdContext(cmd), "/v1/history/"+args[0])
		if err != nil {
			return err
		}
		var entry api.HistoryEntry
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole conversation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL history. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmdContext(cmd), "/v1/history")
		if err != nil {
			return err
		}
		var result struct {
			Deleted int64 `json:"deleted"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %d history entries", result.Deleted)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of entries to list")
	historyListCmd.Flags().Int("offset", 0, "number of newest entries to skip")
	historyClearCmd.Flags().Bool("confirm", false, "confirm deletion")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

API keys (serpapi.api_key, gemini.api_key, openrouter.api_key, server.token)
are written to the platform secret store rather than the config file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if isSecretKey(key) {
			printSuccess("Stored %s in the secret store", key)
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

func isSecretKey(key string) bool {
	for _, k := range config.ShowAll(config.Config{}) {
		if k.Key == key {
			return k.Secret
		}
	}
	return false
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

