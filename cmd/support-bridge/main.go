// ABOUTME: Entry point for the support-bridge server
// ABOUTME: Routes customer chats between the messaging channel, group chat, and ticketing

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/support-bridge/internal/config"
	"github.com/2389/support-bridge/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                         _          _     _     _
 ___ _   _ _ __  _ __   ___  _ __| |_      | |__  _ __(_) __| | __ _  ___
/ __| | | | '_ \| '_ \ / _ \| '__| __|_____| '_ \| '__| |/ _' |/ _' |/ _ \
\__ \ |_| | |_) | |_) | (_) | |  | ||______| |_) | |  | | (_| | (_| |  __/
|___/\__,_| .__/| .__/ \___/|_|   \__|     |_.__/|_|  |_|\__,_|\__, |\___|
          |_|   |_|                                            |___/
`

// getConfigPath returns the path to the bridge config file.
// Priority: SUPPORT_BRIDGE_CONFIG env var > XDG_CONFIG_HOME > ~/.config
func getConfigPath() string {
	if envPath := os.Getenv("SUPPORT_BRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "support-bridge", "config.yaml")
}

// getDataPath returns the path to the bridge data directory.
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "support-bridge")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: support-bridge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the bridge server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check bridge health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Stream:   %s\n", cfg.Chat.Stream)
	green.Print("    ▶ ")
	fmt.Printf("Idle TTL: %s\n", cfg.Sessions.IdleTTL)
	fmt.Println()

	logger.Info("starting support-bridge",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"idle_ttl", cfg.Sessions.IdleTTL,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("support-bridge configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultStatePath := filepath.Join(defaultDataPath, "state.json")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	statePath := prompt(reader, "State file path", defaultStatePath)

	fmt.Println("\n--- Messaging Channel Configuration ---")
	channelAPIURL := prompt(reader, "Channel API URL", "https://graph.facebook.com/v17.0")
	phoneNumberID := prompt(reader, "Phone number ID", "")
	verifyToken := prompt(reader, "Webhook verify token", "")

	fmt.Println("\n--- Group Chat Configuration ---")
	chatAPIURL := prompt(reader, "Chat server URL", "")
	botEmail := prompt(reader, "Bot email", "")
	stream := prompt(reader, "Support stream", "support")

	fmt.Println("\n--- Ticketing Configuration ---")
	rtBaseURL := prompt(reader, "Ticketing REST URL", "")
	queue := prompt(reader, "Ticket queue", "General")

	fmt.Println("\n--- Session Configuration ---")
	idleTTL := prompt(reader, "Idle TTL", "4h")
	sweepInterval := prompt(reader, "Sweep interval", "10m")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# support-bridge configuration\n")
	cfg.WriteString("# Generated by support-bridge init\n")
	cfg.WriteString("# Secrets are read from the environment at load time.\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("store:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", statePath))
	cfg.WriteString("\n")

	cfg.WriteString("channel:\n")
	cfg.WriteString(fmt.Sprintf("  api_url: %q\n", channelAPIURL))
	cfg.WriteString(fmt.Sprintf("  phone_number_id: %q\n", phoneNumberID))
	cfg.WriteString("  access_token: \"${WHATSAPP_ACCESS_TOKEN}\"\n")
	cfg.WriteString(fmt.Sprintf("  verify_token: %q\n", verifyToken))
	cfg.WriteString("\n")

	cfg.WriteString("chat:\n")
	cfg.WriteString(fmt.Sprintf("  api_url: %q\n", chatAPIURL))
	cfg.WriteString(fmt.Sprintf("  bot_email: %q\n", botEmail))
	cfg.WriteString("  api_key: \"${ZULIP_API_KEY}\"\n")
	cfg.WriteString(fmt.Sprintf("  stream: %q\n", stream))
	cfg.WriteString("\n")

	cfg.WriteString("ticketing:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: %q\n", rtBaseURL))
	cfg.WriteString("  token: \"${RT_TOKEN}\"\n")
	cfg.WriteString(fmt.Sprintf("  queue: %q\n", queue))
	cfg.WriteString("\n")

	cfg.WriteString("sessions:\n")
	cfg.WriteString(fmt.Sprintf("  idle_ttl: %q\n", idleTTL))
	cfg.WriteString(fmt.Sprintf("  sweep_interval: %q\n", sweepInterval))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(statePath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  support-bridge serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
