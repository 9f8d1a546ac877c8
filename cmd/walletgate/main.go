// Command walletgate runs the token-gated content server by default, and
// doubles as a CLI client for talking to one.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/walletgate/walletgate/internal/assets"
	"github.com/walletgate/walletgate/internal/auth"
	"github.com/walletgate/walletgate/internal/client"
	"github.com/walletgate/walletgate/internal/config"
	"github.com/walletgate/walletgate/internal/engine"
	httpapp "github.com/walletgate/walletgate/internal/http"
	"github.com/walletgate/walletgate/internal/rate"
	"github.com/walletgate/walletgate/internal/store"
	"github.com/walletgate/walletgate/internal/store/memory"
	"github.com/walletgate/walletgate/internal/store/postgres"
	"github.com/walletgate/walletgate/internal/store/sqlite"
)

const version = "walletgate v0.1.0"

func main() {
	if len(os.Args) < 2 {
		runServer()
		return
	}

	cmd := os.Args[1]

	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}
	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		return
	}
	if strings.HasPrefix(cmd, "-") {
		runServer()
		return
	}

	args := os.Args[2:]

	switch cmd {
	case "server", "serve":
		runServer()
	case "init":
		cmdInit(args)
	case "login", "auth":
		cmdLogin(args)
	case "whoami", "status":
		cmdWhoami(args)
	case "content":
		cmdContent(args)
	case "post":
		cmdPost(args)
	case "comment":
		cmdComment(args)
	case "delete", "rm":
		cmdDelete(args)
	case "stats":
		cmdStats(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`walletgate - token-gated content service

Server:
  walletgate [server]              Run the API server (configured via env)

Client:
  walletgate init [--url <u>]      Generate a wallet keypair and config
  walletgate login                 Sign the challenge, obtain a bearer token
  walletgate whoami                Show address and resolved assets
  walletgate content               List accessible content
  walletgate content --id <id>     Show one content record with its posts
  walletgate content --create --title <t> --token <tok> [--desc <d>] [--public]
  walletgate post --content <id> --title <t> --text <x>
  walletgate post --id <id>        Show one post with comments
  walletgate comment --post <id> --text <x>
  walletgate delete --post <id> | --comment <id>
  walletgate stats                 Show server counters

Config is stored in ~/.walletgate.json.`)
}

func runServer() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	resolver, err := pickResolver(cfg)
	if err != nil {
		log.Error("failed to initialize asset resolver", "err", err)
		os.Exit(1)
	}

	limiter := rate.NewMemory()
	authSvc := auth.NewService(st, cfg.TokenTTL, cfg.Challenge)
	eng := engine.New(st, log)
	server := httpapp.NewServer(eng, authSvc, resolver, limiter,
		httpapp.Limits{LoginPerMinute: cfg.RateLimits.LoginPerMinute}, log, version)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go janitor(janitorCtx, st, limiter, log)

	go func() {
		log.Info("walletgate listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StorageBackend() {
	case config.BackendPostgres:
		return postgres.Open(context.Background(), cfg.DatabaseURL)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return sqlite.Open(cfg.DatabaseURL)
	}
}

func pickResolver(cfg config.Config) (assets.Resolver, error) {
	if cfg.OracleURL != "" {
		return assets.NewOracle(cfg.OracleURL), nil
	}
	if cfg.AssetsFile != "" {
		return assets.LoadStatic(cfg.AssetsFile)
	}
	return assets.NewStatic(), nil
}

// janitor drops expired sessions and stale rate buckets on a timer so the
// tables stay bounded.
func janitor(ctx context.Context, st store.Store, limiter *rate.MemoryLimiter, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpiredSessions(ctx, time.Now())
			if err != nil {
				log.Error("session cleanup failed", "err", err)
			} else if n > 0 {
				log.Info("expired sessions removed", "count", n)
			}
			limiter.Prune()
		}
	}
}

// ============================================================================
// CLIENT COMMANDS
// ============================================================================

// CLIConfig is the persisted client state in ~/.walletgate.json.
type CLIConfig struct {
	BaseURL    string    `json:"base_url"`
	Address    string    `json:"address"`
	PrivateKey string    `json:"private_key"`
	Token      string    `json:"token,omitempty"`
	TokenExp   time.Time `json:"token_expires,omitempty"`
}

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8080", "walletgate server URL")
	fs.Parse(args)

	creds, err := client.GenerateCredentials()
	if err != nil {
		fatalf("Error generating keypair: %v", err)
	}

	cfg := CLIConfig{
		BaseURL:    strings.TrimSuffix(*url, "/"),
		Address:    creds.Address,
		PrivateKey: creds.ExportKey(),
	}
	if err := saveCLIConfig(cfg); err != nil {
		fatalf("Error saving config: %v", err)
	}

	fmt.Printf("✓ Initialized wallet %s\n", cfg.Address)
	fmt.Printf("  Config: %s\n", cliConfigPath())
	fmt.Printf("  Server: %s\n", cfg.BaseURL)
	fmt.Println("\nNext: walletgate login")
}

func cmdLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	fs.Parse(args)

	cfg, creds, c, err := loadClientWithCreds()
	if err != nil {
		fatalf("%v", err)
	}
	if err := c.Login(creds); err != nil {
		fatalf("Login failed: %v", err)
	}

	cfg.Token = c.Token
	cfg.TokenExp = c.TokenExp
	if err := saveCLIConfig(cfg); err != nil {
		fatalf("Error saving config: %v", err)
	}
	fmt.Printf("✓ Authenticated as %s (token expires %s)\n", c.Address, c.TokenExp.Format(time.RFC3339))
}

func cmdWhoami(args []string) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	fs.Parse(args)

	c, err := loadAuthenticatedClient()
	if err != nil {
		fatalf("%v", err)
	}
	address, held, err := c.Wallet()
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("Address: %s\n", address)
	if len(held) == 0 {
		fmt.Println("Assets:  (none)")
		return
	}
	fmt.Printf("Assets:  %s\n", strings.Join(held, ", "))
}

func cmdContent(args []string) {
	fs := flag.NewFlagSet("content", flag.ExitOnError)
	id := fs.String("id", "", "Content ID to show")
	create := fs.Bool("create", false, "Create a content record")
	update := fs.String("update", "", "Content ID to update")
	title := fs.String("title", "", "Title")
	desc := fs.String("desc", "", "Description")
	token := fs.String("token", "", "Gating token (create only)")
	public := fs.Bool("public", false, "Mark as public")
	fs.Parse(args)

	c, err := loadAuthenticatedClient()
	if err != nil {
		fatalf("%v", err)
	}

	switch {
	case *create:
		content, err := c.CreateContent(*title, *desc, *token, *public)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("✓ Created content %s (token %s)\n", content.ID, content.Token)
	case *update != "":
		content, err := c.UpdateContent(*update, *title, *desc, *public)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("✓ Updated content %s\n", content.ID)
	case *id != "":
		content, err := c.GetContent(*id)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("%s  %s\n", content.ID, content.Title)
		if content.Description != "" {
			fmt.Printf("  %s\n", content.Description)
		}
		posts, err := c.ListPosts(content.ID.String())
		if err != nil {
			fatalf("Error listing posts: %v", err)
		}
		for _, p := range posts {
			fmt.Printf("  post %s  %s\n", p.ID, p.Title)
		}
	default:
		rows, err := c.ListContent()
		if err != nil {
			fatalf("Error: %v", err)
		}
		if len(rows) == 0 {
			fmt.Println("No accessible content.")
			return
		}
		for _, row := range rows {
			fmt.Printf("%s  %s (token %s)\n", row.ID, row.Title, row.Token)
		}
	}
}

func cmdPost(args []string) {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	id := fs.String("id", "", "Post ID to show")
	contentID := fs.String("content", "", "Parent content ID (create)")
	title := fs.String("title", "", "Post title")
	text := fs.String("text", "", "Post body")
	update := fs.String("update", "", "Post ID to update")
	fs.Parse(args)

	c, err := loadAuthenticatedClient()
	if err != nil {
		fatalf("%v", err)
	}

	switch {
	case *id != "":
		detail, err := c.GetPost(*id)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("%s  %s\n\n%s\n", detail.Post.ID, detail.Post.Title, detail.Post.Text)
		for _, cm := range detail.Comments {
			fmt.Printf("  %s [%s]: %s\n", cm.ID, cm.WalletID, cm.Comment)
		}
	case *update != "":
		post, err := c.UpdatePost(*update, *title, *text)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("✓ Updated post %s\n", post.ID)
	default:
		if *contentID == "" {
			fatalf("Error: --content is required to create a post")
		}
		post, err := c.CreatePost(*contentID, *title, *text)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("✓ Created post %s\n", post.ID)
	}
}

func cmdComment(args []string) {
	fs := flag.NewFlagSet("comment", flag.ExitOnError)
	postID := fs.String("post", "", "Post ID to comment on")
	text := fs.String("text", "", "Comment body")
	update := fs.String("update", "", "Comment ID to update")
	fs.Parse(args)

	c, err := loadAuthenticatedClient()
	if err != nil {
		fatalf("%v", err)
	}

	if *update != "" {
		comment, err := c.UpdateComment(*update, *text)
		if err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("✓ Updated comment %s\n", comment.ID)
		return
	}
	if *postID == "" {
		fatalf("Error: --post is required")
	}
	comment, err := c.CreateComment(*postID, *text)
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("✓ Created comment %s\n", comment.ID)
}

func cmdDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	postID := fs.String("post", "", "Post ID to delete")
	commentID := fs.String("comment", "", "Comment ID to delete")
	fs.Parse(args)

	c, err := loadAuthenticatedClient()
	if err != nil {
		fatalf("%v", err)
	}

	switch {
	case *postID != "":
		if err := c.DeletePost(*postID); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("✓ Deleted post %s\n", *postID)
	case *commentID != "":
		if err := c.DeleteComment(*commentID); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("✓ Deleted comment %s\n", *commentID)
	default:
		fatalf("Error: --post or --comment is required")
	}
}

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "", "Server URL (defaults to configured)")
	fs.Parse(args)

	base := *url
	if base == "" {
		if cfg, err := loadCLIConfig(); err == nil {
			base = cfg.BaseURL
		} else {
			base = "http://localhost:8080"
		}
	}
	c := client.New(base)
	stats, err := c.Stats()
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Printf("content: %d\nposts: %d\ncomments: %d\n", stats.Content, stats.Posts, stats.Comments)
}

// config plumbing

func cliConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletgate.json"
	}
	return filepath.Join(home, ".walletgate.json")
}

func loadCLIConfig() (CLIConfig, error) {
	var cfg CLIConfig
	raw, err := os.ReadFile(cliConfigPath())
	if err != nil {
		return cfg, fmt.Errorf("no config found, run 'walletgate init' first: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cliConfigPath(), raw, 0o600)
}

func loadClientWithCreds() (CLIConfig, *client.Credentials, *client.Client, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return cfg, nil, nil, err
	}
	creds, err := client.CredentialsFromKey(cfg.PrivateKey)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("load credentials: %w", err)
	}
	return cfg, creds, client.New(cfg.BaseURL), nil
}

func loadAuthenticatedClient() (*client.Client, error) {
	cfg, creds, c, err := loadClientWithCreds()
	if err != nil {
		return nil, err
	}
	c.Address = cfg.Address
	c.Token = cfg.Token
	c.TokenExp = cfg.TokenExp
	if c.IsAuthenticated() {
		return c, nil
	}
	// Token missing or expired: sign in again and persist the new one.
	if err := c.Login(creds); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	cfg.Token = c.Token
	cfg.TokenExp = c.TokenExp
	if err := saveCLIConfig(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
