package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/invoice-extract/internal/display"
	"github.com/zombor/invoice-extract/internal/invoice"
	"github.com/zombor/invoice-extract/internal/scanning"
)

var errUsage = errors.New("invalid usage")

// missingPathError is reported for document paths that cannot be read
type missingPathError struct {
	path string
}

func (e *missingPathError) Error() string {
	return fmt.Sprintf("%s does not exist!", e.path)
}

type config struct {
	dbPath string
	outDir string
	reuse  bool

	awsProfile  string
	awsRegion   string
	matchPolicy string

	docupandaURL string
	docupandaKey string
	maxAttempts  int
	initialDelay time.Duration
	backoffUnit  time.Duration

	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string

	port     int
	authUser string
	authPass string
}

func newRootCommand(cfg *config) *ff.Command {
	rootFlags := ff.NewFlagSet("invoice-extract")
	rootFlags.StringVar(&cfg.dbPath, 0, "db", "", "History database path (history and reuse are disabled when empty)")
	rootFlags.StringVar(&cfg.outDir, 0, "out", "", "Directory for JSON result files (disabled when empty)")
	rootFlags.BoolVar(&cfg.reuse, 0, "reuse", "Return a stored extraction for documents seen before (requires --db)")
	rootFlags.StringLong("config", "", "YAML config file")

	rootFlags.StringVar(&cfg.awsProfile, 0, "aws-profile", "", "AWS shared config profile (default credential chain when empty)")
	rootFlags.StringVar(&cfg.awsRegion, 0, "aws-region", "eu-west-2", "AWS region for Textract")
	rootFlags.StringVar(&cfg.matchPolicy, 0, "match-policy", "last", "Which repeated Textract field wins: 'last' or 'first'")

	rootFlags.StringVar(&cfg.docupandaURL, 0, "docupanda-url", scanning.DefaultDocuPandaURL, "DocuPanda document endpoint")
	rootFlags.StringVar(&cfg.docupandaKey, 0, "docupanda-key", "", "DocuPanda API key (or set DOCUPANDA_API_KEY env var)")
	rootFlags.IntVar(&cfg.maxAttempts, 0, "max-attempts", scanning.DefaultMaxAttempts, "Status polls before giving up")
	rootFlags.DurationVar(&cfg.initialDelay, 0, "initial-delay", scanning.DefaultInitialDelay, "Wait between submission and the first poll")
	rootFlags.DurationVar(&cfg.backoffUnit, 0, "backoff-unit", scanning.DefaultBackoffUnit, "Base unit of the exponential poll backoff")

	rootFlags.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	rootFlags.StringVar(&cfg.geminiModel, 0, "gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
	rootFlags.StringVar(&cfg.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	rootFlags.StringVar(&cfg.ollamaModel, 0, "ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")

	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	serveFlags.IntVar(&cfg.port, 0, "port", 8080, "HTTP server port")
	serveFlags.StringVar(&cfg.authUser, 0, "auth-user", "", "Basic auth username (optional)")
	serveFlags.StringVar(&cfg.authPass, 0, "auth-pass", "", "Basic auth password (optional)")

	return &ff.Command{
		Name:      "invoice-extract",
		Usage:     "invoice-extract <SUBCOMMAND> [FLAGS] <PATH>",
		ShortHelp: "extract invoice data from PDFs and images",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			extractCommand(cfg, rootFlags, invoice.ProviderAWS, "extract the invoice number and amount with AWS Textract"),
			extractCommand(cfg, rootFlags, invoice.ProviderDocuPanda, "submit to DocuPanda and poll for the parsed document"),
			extractCommand(cfg, rootFlags, invoice.ProviderGemini, "extract the invoice with Google Gemini"),
			extractCommand(cfg, rootFlags, invoice.ProviderOllama, "extract the invoice with a local Ollama model"),
			{
				Name:      "history",
				Usage:     "invoice-extract history [FLAGS]",
				ShortHelp: "list stored extractions",
				Flags:     ff.NewFlagSet("history").SetParent(rootFlags),
				Exec: func(ctx context.Context, args []string) error {
					return runHistory(cfg)
				},
			},
			{
				Name:      "serve",
				Usage:     "invoice-extract serve [FLAGS]",
				ShortHelp: "serve the extraction API over HTTP",
				Flags:     serveFlags,
				Exec: func(ctx context.Context, args []string) error {
					return runServe(ctx, cfg)
				},
			},
		},
		Exec: func(ctx context.Context, args []string) error {
			return fmt.Errorf("%w: a subcommand is required", errUsage)
		},
	}
}

func extractCommand(cfg *config, parent *ff.FlagSet, provider, shortHelp string) *ff.Command {
	return &ff.Command{
		Name:      provider,
		Usage:     fmt.Sprintf("invoice-extract %s [FLAGS] <PATH>", provider),
		ShortHelp: shortHelp,
		Flags:     ff.NewFlagSet(provider).SetParent(parent),
		Exec: func(ctx context.Context, args []string) error {
			return runExtract(ctx, cfg, provider, args)
		},
	}
}

func runExtract(ctx context.Context, cfg *config, provider string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one document path", errUsage)
	}

	data, err := readDocument(args[0])
	if err != nil {
		return err
	}

	service, err := cfg.newService(ctx, provider)
	if err != nil {
		return err
	}
	defer service.Close()

	contentType := scanning.DetectContentType(args[0], data)
	slog.Info("Extracting invoice", "provider", provider, "path", args[0], "content_type", contentType)

	extraction, err := service.Extract(ctx, provider, args[0], data, contentType)
	if err != nil {
		return err
	}

	fmt.Println(display.RenderExtraction(extraction))
	if extraction.OutputPath != "" {
		slog.Info("Saved result", "file", filepath.Join(cfg.outDir, extraction.OutputPath))
	}
	return nil
}

func runHistory(cfg *config) error {
	if cfg.dbPath == "" {
		return fmt.Errorf("%w: history requires --db", errUsage)
	}

	service, err := cfg.newService(context.Background())
	if err != nil {
		return err
	}
	defer service.Close()

	extractions, err := service.ListExtractions()
	if err != nil {
		return err
	}
	fmt.Println(display.RenderHistory(extractions))
	return nil
}

func runServe(ctx context.Context, cfg *config) error {
	providers := []string{invoice.ProviderAWS, invoice.ProviderDocuPanda, invoice.ProviderOllama}
	if cfg.resolveGeminiKey() != "" {
		providers = append(providers, invoice.ProviderGemini)
	} else {
		slog.Warn("Gemini provider disabled, no API key configured")
	}

	service, err := cfg.newService(ctx, providers...)
	if err != nil {
		return err
	}
	defer service.Close()

	server := invoice.NewServer(service, invoice.BasicAuth{
		Username: cfg.authUser,
		Password: cfg.authPass,
	})

	addr := fmt.Sprintf(":%d", cfg.port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if cfg.authUser != "" || cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// readDocument loads the document at path, reporting unreadable paths as missing
func readDocument(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, &missingPathError{path: path}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &missingPathError{path: path}
	}
	return data, nil
}

func (c *config) resolveDocuPandaKey() string {
	if c.docupandaKey != "" {
		return c.docupandaKey
	}
	return os.Getenv("DOCUPANDA_API_KEY")
}

func (c *config) resolveGeminiKey() string {
	if c.geminiKey != "" {
		return c.geminiKey
	}
	return os.Getenv("GEMINI_API_KEY")
}

// newService wires storage and the requested providers into an invoice.Service
func (c *config) newService(ctx context.Context, providers ...string) (*invoice.Service, error) {
	var (
		db      invoice.DB
		storage invoice.Storage
	)

	if c.dbPath != "" {
		slog.Info("Opening history database...", "path", c.dbPath)
		bolt, err := invoice.NewBoltDB(c.dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db = bolt
	}

	if c.outDir != "" {
		local, err := invoice.NewLocalStorage(c.outDir)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("initializing output directory: %w", err)
		}
		storage = local
	}

	scanners := make(map[string]scanning.Scanner)
	var processor invoice.DocumentProcessor
	for _, provider := range providers {
		var err error
		switch provider {
		case invoice.ProviderDocuPanda:
			processor = c.newPoller()
		default:
			var scanner scanning.Scanner
			scanner, err = c.newScanner(ctx, provider)
			if err == nil {
				scanners[provider] = scanner
			}
		}
		if err != nil {
			closeErr := invoice.NewService(db, nil, scanners, nil).Close()
			return nil, errors.Join(err, closeErr)
		}
	}

	service := invoice.NewService(db, storage, scanners, processor)
	if c.reuse {
		if db == nil {
			slog.Warn("--reuse has no effect without --db")
		}
		service.EnableReuse()
	}
	return service, nil
}

func (c *config) newPoller() *scanning.Poller {
	key := c.resolveDocuPandaKey()
	if key == "" {
		slog.Warn("No DocuPanda API key configured")
	}
	poller := scanning.NewPoller(scanning.NewDocuPanda(c.docupandaURL, key))
	poller.MaxAttempts = c.maxAttempts
	poller.InitialDelay = c.initialDelay
	poller.BackoffUnit = c.backoffUnit
	return poller
}

func (c *config) newScanner(ctx context.Context, provider string) (scanning.Scanner, error) {
	switch provider {
	case invoice.ProviderAWS:
		policy, err := scanning.ParseMatchPolicy(c.matchPolicy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		slog.Info("Initializing Textract...", "region", c.awsRegion, "profile", c.awsProfile, "match_policy", policy)
		return scanning.NewTextract(ctx, c.awsProfile, c.awsRegion, policy)
	case invoice.ProviderGemini:
		apiKey := c.resolveGeminiKey()
		if apiKey == "" {
			return nil, fmt.Errorf("%w: Gemini API key is required, set --gemini-key or GEMINI_API_KEY", errUsage)
		}
		slog.Info("Initializing Gemini scanner...", "model", c.geminiModel)
		return scanning.NewGemini(ctx, apiKey, c.geminiModel)
	case invoice.ProviderOllama:
		slog.Info("Initializing Ollama scanner...", "url", c.ollamaURL, "model", c.ollamaModel)
		return scanning.NewOllama(c.ollamaURL, c.ollamaModel), nil
	default:
		return nil, fmt.Errorf("%w: %s", invoice.ErrUnknownProvider, provider)
	}
}
