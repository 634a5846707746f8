// ABOUTME: Entry point for the gridbase schema-builder backend.
// ABOUTME: Wires store, cell registry, grid engine, live hub, and API handlers.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/constructive-io/gridbase/internal/api"
	"github.com/constructive-io/gridbase/internal/auth"
	"github.com/constructive-io/gridbase/internal/grid"
	"github.com/constructive-io/gridbase/internal/live"
	"github.com/constructive-io/gridbase/internal/logging"
	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/internal/seed"
	"github.com/constructive-io/gridbase/internal/store"
	"github.com/constructive-io/gridbase/plugins/cells"
	"github.com/constructive-io/gridbase/plugins/geometry"
	"github.com/constructive-io/gridbase/plugins/media"
	"github.com/constructive-io/gridbase/plugins/standard"
)

const relationCacheTTL = 30 * time.Second

var (
	port     string
	dbPath   string
	debug    bool
	seedRows int
)

func main() {
	// Optional .env for local development; real env always wins
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gridbase",
		Short: "Gridbase - schema-builder backend with editable data grids",
		Long: `Gridbase is a backend for building database schemas and editing the data
in them through spreadsheet-like grids.

Features:
  • Org-scoped tables, fields, relations, indexes, and policies over SQLite
  • A cell registry with installable plugins (standard, geometry, media)
  • Draft rows staged in memory until submitted
  • Live invalidation feed over WebSocket at /ws
  • AI-assisted demo data seeding (OPENAI_API_KEY)

Quick Start:
  gridbase seed          # Create the demo workspace
  gridbase serve         # Start the server on port 8090
  gridbase reset         # Wipe the database and reseed`,
	}

	// Calculate default database path once (not per-command)
	defaultDBPath := getDefaultDBPath()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the gridbase HTTP server on the specified port.

The server provides:
  • The JSON API under /api/v1
  • Live invalidation WebSocket at /ws
  • Health check at /healthz

Authentication:
  Use Bearer tokens in the format: Bearer user:USER_ID
  Example: curl -H "Authorization: Bearer user:u1" http://localhost:8090/api/v1/orgs

Environment Variables:
  GRIDBASE_PORT     Server port (default: 8090)
  GRIDBASE_DB_PATH  Database file location
  OPENAI_API_KEY    Enable AI-generated seed data`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", getEnv("GRIDBASE_PORT", "8090"), "Port to listen on")
	serveCmd.Flags().StringVarP(&dbPath, "db", "d", defaultDBPath, "Database path")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with a demo workspace",
		Long: `Create the demo workspace: an org with people, projects, and tasks tables
wired together by relations, plus sample rows in each.

AI-Powered Generation:
  Set OPENAI_API_KEY to generate sample rows with a model. Without a key,
  seeding uses built-in static data.

Note: Seed is not idempotent. Use 'gridbase reset' to clear data before reseeding.`,
		RunE: runSeed,
	}
	seedCmd.Flags().StringVarP(&dbPath, "db", "d", defaultDBPath, "Database path")
	seedCmd.Flags().IntVar(&seedRows, "rows", 8, "Sample rows per table")
	seedCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the database (wipe and reseed)",
		Long: `Delete the database file, create a fresh one, and seed the demo workspace.

Warning: This permanently deletes all data in the database!`,
		RunE: runReset,
	}
	resetCmd.Flags().StringVarP(&dbPath, "db", "d", defaultDBPath, "Database path")
	resetCmd.Flags().IntVar(&seedRows, "rows", 8, "Sample rows per table")
	resetCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd, seedCmd, resetCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// validateAndCleanDBPath validates and cleans a database path.
// Handles Unix/Linux, macOS, and Windows paths (including UNC and drive letters).
func validateAndCleanDBPath(path string) (string, error) {
	cleanPath := strings.TrimSpace(path)
	cleanPath = filepath.Clean(cleanPath)

	if cleanPath == "" || cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}

	// Windows: reject bare drive letters (e.g., "C:", "D:")
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	// Reject known problematic patterns
	badPatterns := []string{
		".git",
		".svn",
		"node_modules",
		".env",
		"credentials",
		"secret",
	}
	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range badPatterns {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	var err error
	dbPath, err = validateAndCleanDBPath(dbPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	srv, err := newServer(dbPath, logger)
	if err != nil {
		return err
	}

	addr := ":" + port
	logger.Info("gridbase listening", zap.String("addr", addr), zap.String("db", dbPath))
	return http.ListenAndServe(addr, srv)
}

func newServer(dbPath string, logger *zap.Logger) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := store.New(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	registry := cells.NewRegistry(logger)
	if _, err := registry.InstallPlugin(standard.Plugin()); err != nil {
		return nil, fmt.Errorf("installing standard cells: %w", err)
	}

	hub := live.NewHub(logger)

	relations := grid.NewRelationCache(func(ctx context.Context, tableID string) (map[string]schema.RelationInfo, error) {
		def, err := s.GetTable(tableID)
		if err != nil {
			return nil, err
		}
		return schema.RelationMap(def.Relations), nil
	}, relationCacheTTL)

	engine := grid.NewEngine(grid.EngineConfig{
		Registry:  registry,
		Mutator:   s,
		Relations: relations,
		Logger:    logger,
		Invalidate: func(t *schema.TableDef) {
			hub.Broadcast(live.Event{Org: t.OrgID, Table: t.Name, Kind: live.KindRows})
		},
	})

	handlers := api.NewHandlers(api.Config{
		Store:     s,
		Engine:    engine,
		Registry:  registry,
		Hub:       hub,
		Available: []cells.Plugin{standard.Plugin(), geometry.Plugin(), media.Plugin()},
		Logger:    logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Auth precedes activity logging so entries carry the user id
	r.Use(auth.Middleware)
	r.Use(logging.Middleware(s))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/ws", hub.HandleWS)

	handlers.RegisterRoutes(r)

	return r, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	var err error
	dbPath, err = validateAndCleanDBPath(dbPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	s, err := store.New(dbPath, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	return seedData(cmd.Context(), s, logger)
}

func runReset(cmd *cobra.Command, args []string) error {
	var err error
	dbPath, err = validateAndCleanDBPath(dbPath)
	if err != nil {
		return err
	}

	// Remove existing database - ignore if file doesn't exist
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing database: %w", err)
	}

	logger, err := logging.New(debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	s, err := store.New(dbPath, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	return seedData(cmd.Context(), s, logger)
}

func seedData(ctx context.Context, s *store.Store, logger *zap.Logger) error {
	gen := seed.NewGenerator(logger)
	res, err := seed.Apply(ctx, s, gen, seedRows)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("database already seeded; run 'gridbase reset' to start over")
		}
		return err
	}

	logger.Info("seeding complete",
		zap.String("org", res.Org.Slug),
		zap.Strings("tables", res.Tables),
		zap.Int("rows", res.Rows))
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getDefaultDBPath returns the default database path following XDG Base Directory spec
// Priority: GRIDBASE_DB_PATH env var > ./gridbase.db (backwards compat) > XDG_DATA_HOME/gridbase/gridbase.db
func getDefaultDBPath() string {
	// 1. Check environment variable first
	if envPath := os.Getenv("GRIDBASE_DB_PATH"); envPath != "" {
		envPath = strings.TrimSpace(envPath)
		envPath = filepath.Clean(envPath)
		if envPath == "" || envPath == "." {
			log.Printf("Warning: GRIDBASE_DB_PATH is invalid (empty or '.'), using default path")
		} else {
			return envPath
		}
	}

	// 2. Check for existing ./gridbase.db (backwards compatibility)
	cwdPath := "./gridbase.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	// 3. Use XDG Base Directory spec (or Windows equivalent)
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			log.Printf("Warning: Could not determine valid home directory (%q): %v, using ./gridbase.db", homeDir, err)
			return cwdPath
		}

		// Windows: %LOCALAPPDATA% or ~/AppData/Local
		// Unix/Linux/macOS: ~/.local/share (XDG spec)
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "gridbase")
	xdgDBPath := filepath.Join(dataDir, "gridbase.db")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Printf("Warning: Could not create data directory %s: %v, using ./gridbase.db", dataDir, err)
		return cwdPath
	}

	// Verify we can write to the directory
	testFile := filepath.Join(dataDir, ".write-test")
	f, err := os.Create(testFile)
	if err != nil {
		log.Printf("Warning: Cannot write to data directory %s: %v, using ./gridbase.db", dataDir, err)
		return cwdPath
	}
	if err := f.Close(); err != nil {
		log.Printf("Warning: Error closing test file: %v", err)
	}
	if err := os.Remove(testFile); err != nil {
		log.Printf("Warning: Could not remove test file %s: %v", testFile, err)
	}

	// Only log in debug mode to avoid polluting --help output
	if os.Getenv("GRIDBASE_DEBUG") != "" {
		log.Printf("Using database location: %s", xdgDBPath)
	}

	return xdgDBPath
}
