// Command supportchat is a terminal client for the support chatbot backend.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/minirag/supportchat/internal/archive"
	"github.com/minirag/supportchat/internal/auth"
	"github.com/minirag/supportchat/internal/backend"
	"github.com/minirag/supportchat/internal/conversation"
	"github.com/minirag/supportchat/internal/credentials"
	"github.com/minirag/supportchat/internal/gateway"
	"github.com/minirag/supportchat/internal/pkg/config"
	"github.com/minirag/supportchat/internal/telemetry"
	"github.com/minirag/supportchat/internal/tokens"
)

const usage = `Usage: supportchat <command> [flags]

Commands:
  login    Authenticate against the backend
  chat     Start an interactive chat session
  upload   Upload and index a document
  history  Print the archived transcript for the current session
  whoami   Show the current identity
  logout   Discard the stored auth token
  forget   Request backend data deletion and reset local identity
`

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup("supportchat", logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize client: %v", err)
	}
	defer a.close()

	if err := a.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "supportchat: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// app holds the wired client stack shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	durable *credentials.SQLiteScope
	creds   *credentials.Store
	backend *backend.Client
	session *auth.Session
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	durable, err := credentials.NewSQLiteScope(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential storage: %w", err)
	}

	// A terminal client has no tab lifetime, so the session scope shares
	// the durable database and one session spans invocations until forget
	// regenerates it.
	creds := credentials.NewStore(durable, durable, logger)

	opts := []gateway.ClientOption{
		gateway.WithTimeout(cfg.Backend.Timeout),
		gateway.WithMaxRetries(cfg.Backend.MaxRetries),
		gateway.WithRetryDelay(cfg.Backend.RetryDelay),
		gateway.WithLogger(logger),
	}
	if cfg.Telemetry.Enabled {
		opts = append(opts, gateway.WithTracing())
	}
	gw := gateway.New(cfg.Backend.BaseURL, creds, opts...)
	client := backend.NewClient(gw)

	return &app{
		cfg:     cfg,
		logger:  logger,
		durable: durable,
		creds:   creds,
		backend: client,
		session: auth.NewSession(client, creds, logger),
	}, nil
}

func (a *app) close() {
	if err := a.durable.Close(); err != nil {
		a.logger.Warn("failed to close credential storage", slog.String("error", err.Error()))
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.runLogin(ctx, args)
	case "chat":
		return a.runChat(ctx, args)
	case "upload":
		return a.runUpload(ctx, args)
	case "history":
		return a.runHistory(ctx)
	case "whoami":
		return a.runWhoami()
	case "logout":
		return a.runLogout()
	case "forget":
		return a.runForget(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "account username")
	fs.Parse(args)

	reader := bufio.NewReader(os.Stdin)
	if *username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		*username = strings.TrimSpace(line)
	}
	fmt.Print("Password: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")

	creds, err := a.session.Login(ctx, *username, password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s.\n", creds.UserID)
	return nil
}

func (a *app) runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	project := fs.Int("project", a.cfg.Project.ID, "project to query")
	fs.Parse(args)

	orch, cleanup, err := a.newOrchestrator(*project)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println("Connected. Type a question, or \"exit\" to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}
		// Failures surface through the store and the renderer.
		_ = orch.SendText(ctx, text)
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

func (a *app) runUpload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	project := fs.Int("project", a.cfg.Project.ID, "project to upload into")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: supportchat upload [flags] <file>")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	orch, cleanup, err := a.newOrchestrator(*project)
	if err != nil {
		return err
	}
	defer cleanup()

	return orch.UploadFile(ctx, filepath.Base(path), f)
}

// newOrchestrator wires a conversation store, transcript archive and token
// estimator for an interactive command, rendering state changes to stdout.
func (a *app) newOrchestrator(projectID int) (*conversation.Orchestrator, func(), error) {
	store := conversation.NewStore()
	store.SetSessionID(a.creds.SessionID())
	store.OnChange(newRenderer())

	cfg := conversation.Config{
		ProjectID:   projectID,
		ChunkSize:   a.cfg.Processing.ChunkSize,
		OverlapSize: a.cfg.Processing.OverlapSize,
		Logger:      a.logger,
	}

	cleanup := func() {}
	if a.cfg.Archive.Enabled {
		transcripts, err := archive.Open(a.cfg.Archive.Path, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open transcript archive: %w", err)
		}
		cfg.Recorder = transcripts
		cleanup = func() {
			if err := transcripts.Close(); err != nil {
				a.logger.Warn("failed to close transcript archive", slog.String("error", err.Error()))
			}
		}
	}

	if estimator, err := tokens.NewEstimator(); err == nil {
		cfg.Estimator = estimator
	} else {
		a.logger.Warn("token estimation disabled", slog.String("error", err.Error()))
	}

	return conversation.NewOrchestrator(store, a.backend, cfg), cleanup, nil
}

// newRenderer returns an OnChange callback that prints messages and errors as
// they land in the store. User messages are skipped since the user just typed
// them.
func newRenderer() func(conversation.State) {
	var printed int
	var lastError string
	return func(state conversation.State) {
		for ; printed < len(state.Messages); printed++ {
			msg := state.Messages[printed]
			switch msg.Role {
			case conversation.RoleAssistant:
				fmt.Println(msg.Content)
				for _, c := range msg.Citations {
					if c.URL != "" {
						fmt.Printf("  [%s] %s (%.2f)\n", c.Title, c.URL, c.Relevance)
					} else {
						fmt.Printf("  [%s] (%.2f)\n", c.Title, c.Relevance)
					}
				}
			case conversation.RoleSystem:
				fmt.Println(msg.Content)
			}
		}
		if state.LastError != "" && state.LastError != lastError {
			fmt.Fprintf(os.Stderr, "error: %s\n", state.LastError)
		}
		lastError = state.LastError
	}
}

func (a *app) runHistory(ctx context.Context) error {
	if !a.cfg.Archive.Enabled {
		return fmt.Errorf("transcript archive is disabled")
	}
	transcripts, err := archive.Open(a.cfg.Archive.Path, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript archive: %w", err)
	}
	defer transcripts.Close()

	messages, err := transcripts.Messages(ctx, a.creds.SessionID())
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Println("No archived messages for this session.")
		return nil
	}
	for _, msg := range messages {
		fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04:05"), msg.Role, msg.Content)
	}
	return nil
}

func (a *app) runWhoami() error {
	fmt.Printf("session: %s\n", a.creds.SessionID())
	if a.session.IsAuthenticated() {
		fmt.Printf("user: %s\n", a.creds.UserID())
	} else {
		fmt.Println("user: not logged in")
	}
	return nil
}

func (a *app) runLogout() error {
	a.session.Logout()
	fmt.Println("Logged out.")
	return nil
}

func (a *app) runForget(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forget", flag.ExitOnError)
	reason := fs.String("reason", "", "optional reason recorded with the deletion request")
	fs.Parse(args)

	sessionID := a.creds.SessionID()
	resp, err := a.backend.RequestDeletion(ctx, sessionID, *reason)
	if err != nil {
		return err
	}

	// The backend has accepted the request; drop local identity and the
	// local transcript so nothing ties future traffic to the erased session.
	a.creds.ClearAuth()
	a.creds.RegenerateSessionID()

	if a.cfg.Archive.Enabled {
		transcripts, err := archive.Open(a.cfg.Archive.Path, a.logger)
		if err == nil {
			if err := transcripts.DeleteSession(ctx, sessionID); err != nil {
				a.logger.Warn("failed to purge archived transcript", slog.String("error", err.Error()))
			}
			transcripts.Close()
		} else {
			a.logger.Warn("failed to open transcript archive", slog.String("error", err.Error()))
		}
	}

	fmt.Printf("%s: %s\n", resp.Status, resp.Message)
	return nil
}
