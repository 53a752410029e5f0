// Ashara Core - authentication backend for the Ashara design catalogue.
//
// This is the main entry point. It loads configuration, opens the
// credential store (SQLite or MongoDB), seeds the first admin account and
// serves the HTTP API until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/ashara-studio/ashara-core/migrations"

	"github.com/ashara-studio/ashara-core/internal/api"
	"github.com/ashara-studio/ashara-core/internal/audit"
	"github.com/ashara-studio/ashara-core/internal/auth"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/config"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/database"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/logging"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/mongodb"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Ashara Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if _, err := auth.SeedAdmin(ctx, st.credentials, cfg.Security.SeedAdmin.Email, cfg.Security.SeedAdmin.Name, log.Logger); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	issuer, err := auth.NewTokenIssuer(cfg.Security.JWT.AccessSecret, cfg.Security.JWT.RefreshSecret)
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	sessions, err := auth.NewService(st.credentials, issuer, log.Logger)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:         cfg.API,
		Logger:         log,
		Sessions:       sessions,
		AuditRepo:      st.audit,
		HealthCheckers: st.health,
		Version:        version,
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

	log.Info("Ashara Core started", "site", cfg.Site.ID, "driver", cfg.Database.Driver)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// stores bundles whatever persistence the configured driver provides.
type stores struct {
	credentials auth.CredentialStore
	audit       audit.Repository
	health      map[string]api.HealthChecker
	close       func()
}

// openStore opens the credential store for the configured driver.
// The SQLite driver also provides the audit trail; MongoDB does not.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case config.DriverMongoDB:
		client, err := mongodb.Connect(ctx, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		log.Info("MongoDB connected",
			"database", cfg.MongoDB.Database,
			"connect_timeout", cfg.GetMongoConnectTimeout(),
		)

		users := auth.NewMongoStore(client.Collection(cfg.MongoDB.Collection))
		if err := users.EnsureIndexes(ctx); err != nil {
			client.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("creating MongoDB indexes: %w", err)
		}
		log.Warn("audit trail disabled for the mongodb driver")

		return &stores{
			credentials: users,
			health:      map[string]api.HealthChecker{"mongodb": client},
			close: func() {
				log.Info("disconnecting from MongoDB")
				if err := client.Close(); err != nil {
					log.Error("error closing MongoDB", "error", err)
				}
			},
		}, nil

	default:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Info("database connected", "path", db.Path())

		if err := db.Migrate(ctx); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete")

		return &stores{
			credentials: auth.NewSQLiteStore(db.DB),
			audit:       audit.NewSQLiteRepository(db.DB),
			health:      map[string]api.HealthChecker{"database": db},
			close: func() {
				log.Info("closing database")
				if err := db.Close(); err != nil {
					log.Error("error closing database", "error", err)
				}
			},
		}, nil
	}
}

// getConfigPath returns the configuration file path.
// Uses ASHARA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ASHARA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
