// Package main is the Breadcrumbs CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Rhinks/Breadcrumbs/internal/chunking"
	"github.com/Rhinks/Breadcrumbs/internal/config"
	"github.com/Rhinks/Breadcrumbs/internal/embedding"
	"github.com/Rhinks/Breadcrumbs/internal/importer"
	"github.com/Rhinks/Breadcrumbs/internal/models"
	"github.com/Rhinks/Breadcrumbs/internal/search"
	"github.com/Rhinks/Breadcrumbs/internal/server"
	"github.com/Rhinks/Breadcrumbs/internal/storage"
	"github.com/Rhinks/Breadcrumbs/internal/util"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

// loadConfig loads config from path. When path is the default and no such
// file exists, configuration comes from environment variables and defaults
// alone, so the server runs with no config file at all.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default()
		}
	}
	return config.Load(path)
}

func main() {
	// A .env in the working directory supplies OPENAI_API_KEY and DATABASE_URL
	// during development; absence is not an error.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "import":
		runImport()
	case "search":
		runSearch()
	case "reindex":
		runReindex()
	case "version", "--version", "-v":
		fmt.Printf("breadcrumbs version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components bundles the wired pipeline for a single run.
type components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Importer *importer.Importer
	Engine   *search.Engine
}

// Close releases resources in reverse dependency order.
func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := storage.NewStorage(ctx, &cfg.Storage, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	embedder := embedding.New(&cfg.Embedding, logger)

	strategy, err := chunking.NewStrategy(&cfg.Chunking)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("chunking: %w", err)
	}

	imp := importer.New(store, embedder, strategy, importer.WithLogger(logger))
	engine := search.NewEngine(store, embedder, &cfg.Search, search.WithLogger(logger))

	return &components{
		Storage:  store,
		Embedder: embedder,
		Importer: imp,
		Engine:   engine,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := util.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	srv := server.NewServer(comps.Importer, comps.Engine, comps.Storage, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8000", "server URL (empty = use direct storage when server is not running)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: breadcrumbs import [flags] <file.json>")
		fmt.Fprintln(os.Stderr, "The file holds one import request: title, source, messages.")
		os.Exit(1)
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	var req models.ImportRequest
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse %s: %v\n", path, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		summary, err := importViaHTTP(*serverURL, &req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Imported %q (%s): %d messages, conversation %s\n",
			summary.Title, summary.Source, summary.MessageCount, summary.ID)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := util.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	summary, err := comps.Importer.Import(ctx, &req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %q (%s): %d messages, conversation %s\n",
		summary.Title, summary.Source, summary.MessageCount, summary.ID)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8000", "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	project := fs.String("project", "", "filter by project id")
	source := fs.String("source", "", "filter by source (chatgpt, claude, gemini, perplexity, manual)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: breadcrumbs search [flags] <query>")
		os.Exit(1)
	}
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryStr == "" {
		fmt.Fprintln(os.Stderr, "Usage: breadcrumbs search [flags] <query>")
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{
		Query:     queryStr,
		ProjectID: *project,
		Source:    models.Source(*source),
		Limit:     *limit,
	}

	if *serverURL != "" {
		results, err := searchViaHTTP(*serverURL, searchQuery)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		printSearchResults(results, *outputFormat)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := util.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	results, err := comps.Engine.Search(ctx, searchQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	printSearchResults(results, *outputFormat)
}

func printSearchResults(results []models.SearchResult, format string) {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s (%s)\n", i+1, r.Score, r.ConversationTitle, r.Source)
		fmt.Printf("   %s\n", firstLine(r.ChunkContent, 160))
	}
}

func importViaHTTP(serverURL string, req *models.ImportRequest) (*models.ConversationSummary, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/conversations/import", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var summary models.ConversationSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &summary, nil
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) ([]models.SearchResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Results []models.SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Results, nil
}

func reindexViaHTTP(serverURL, conversationID string) (int, error) {
	resp, err := http.Post(serverURL+"/api/embeddings/reindex/"+conversationID, "application/json", nil)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Chunks int `json:"chunks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.Chunks, nil
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8000", "server URL (empty = use direct storage when server is not running)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: breadcrumbs reindex [flags] <conversation-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	if *serverURL != "" {
		count, err := reindexViaHTTP(*serverURL, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reindexed conversation %s: %d chunks\n", id, count)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := util.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	count, err := comps.Importer.Reindex(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reindexed conversation %s: %d chunks\n", id, count)
}

// firstLine returns the first line of s, truncated to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}

func printUsage() {
	fmt.Println(`breadcrumbs - capture and search AI chat conversations

Usage:
  breadcrumbs server  [-config path] [-debug]         Start the HTTP API server
  breadcrumbs import  [-config path] <file.json>      Import a conversation from a JSON file
  breadcrumbs search  [-config path] [flags] <query>  Semantic search over stored conversations
  breadcrumbs reindex [-config path] <conversation-id>  Re-chunk and re-embed one conversation
  breadcrumbs version                                 Print version
  breadcrumbs help                                    Show this help`)
}
