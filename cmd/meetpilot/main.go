// meetpilot - meeting bot session supervisor
//
// This is the main entry point for meetpilot. It resolves a persona, launches
// the bot worker and meeting coordinator as supervised child processes, relays
// their output with severity classification, and tears both down cleanly on
// Ctrl+C or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "meetpilot/migrations"

	"meetpilot/internal/api"
	"meetpilot/internal/infrastructure/config"
	"meetpilot/internal/infrastructure/database"
	"meetpilot/internal/infrastructure/logging"
	"meetpilot/internal/persona"
	"meetpilot/internal/process"
	"meetpilot/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// options holds the parsed command-line flags.
type options struct {
	configPath  string
	personaName string
	meetingURL  string
	port        int
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		// flag package already printed usage
		os.Exit(1)
	}

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM).
	// Repeated signals are absorbed; shutdown runs exactly once.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses the command line into options.
func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("meetpilot", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to config file (default: MEETPILOT_CONFIG or "+defaultConfigPath+")")
	fs.StringVar(&opts.personaName, "persona", "", "persona to use (default: random from the store)")
	fs.StringVar(&opts.meetingURL, "meeting-url", "", "meeting URL to join (prompted for if omitted)")
	fs.IntVar(&opts.port, "port", 0, "port for the bot process (default: PORT env or config)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Parsed command-line flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting meetpilot",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	cfg, configPath, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}

	// Initialise persona store
	personas := persona.NewManager(persona.NewSQLiteRepository(db.DB))
	names, err := personas.List(ctx)
	if err != nil {
		return fmt.Errorf("loading personas: %w", err)
	}
	log.Info("persona store initialised", "personas", len(names))

	// WebSocket hub doubles as the supervisor's output sink, so classified
	// lines and exit events stream to connected clients.
	hub := api.NewHub(cfg.WebSocket, log)

	supervisor := process.NewSupervisor(process.Options{
		Logger:          log,
		Sink:            hub,
		GracefulTimeout: cfg.GetGracefulTimeout(),
		SweepInterval:   cfg.GetSweepInterval(),
	})

	driver, err := session.New(session.Deps{
		Config:      cfg,
		Logger:      log,
		Supervisor:  supervisor,
		Personas:    personas,
		PersonaName: opts.personaName,
		MeetingURL:  opts.meetingURL,
		Port:        opts.port,
		Input:       interactiveInput(),
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	// Start the status API (optional)
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log,
			Supervisor:  supervisor,
			Session:     driver,
			Personas:    personas,
			ExternalHub: hub,
			Version:     version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	// Run the session; blocks until shutdown or a fatal startup error.
	if err := driver.Run(ctx); err != nil {
		return fmt.Errorf("running session: %w", err)
	}

	log.Info("meetpilot stopped")
	return nil
}

// interactiveInput returns stdin when it is a terminal, nil otherwise.
// Without a terminal a missing --meeting-url is a fatal error rather than
// a prompt nobody can answer.
func interactiveInput() io.Reader {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		return nil
	}
	return os.Stdin
}

// loadConfig resolves and loads the configuration.
//
// An explicitly given path (flag or MEETPILOT_CONFIG) must exist. Otherwise
// the default path is used if present, and the built-in defaults if not.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv("MEETPILOT_CONFIG")
	}

	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		cfg, err := config.Load(defaultConfigPath)
		return cfg, defaultConfigPath, err
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, "(built-in defaults)", nil
}
