package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hospital-followup-server/internal/config"
	"hospital-followup-server/internal/middleware"
	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/routes"
	"hospital-followup-server/internal/store"
	"hospital-followup-server/internal/store/memstore"
	"hospital-followup-server/internal/workflow"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hospital-followup-server",
		Short: "Hospital follow-up and reminder API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		unauthenticated bool
		port            string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if unauthenticated {
				cfg.AuthMode = config.AuthModeUnauthenticated
			}
			if port != "" {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().BoolVar(&unauthenticated, "unauthenticated", false, "Let protected routes act as FALLBACK_OWNER_ID when no token is sent")
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				return errors.New("nothing to migrate for DB_DRIVER=memory")
			}

			cfg.Database.AutoMigrate = true
			if _, err := openDatabase(cfg); err != nil {
				return err
			}
			fmt.Printf("Schema for %s is up to date.\n", cfg.Database.Driver)
			return nil
		},
	}
}

// loadConfig reads .env when present and then the environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func openDatabase(cfg *config.Config) (store.Stores, error) {
	if cfg.Database.Driver == config.DriverMemory {
		return memstore.New().Stores(), nil
	}

	db, err := models.InitDB(models.DatabaseConfig{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		AutoMigrate: cfg.Database.AutoMigrate,
		Debug:       cfg.IsDev() && cfg.LogLevel == "debug",
	})
	if err != nil {
		return store.Stores{}, err
	}

	accounts := store.NewGormAccountStore(db)
	return store.Stores{
		Accounts:  accounts,
		Patients:  store.NewGormPatientStore(db),
		Reminders: store.NewGormReminderStore(db),
		Health:    accounts,
	}, nil
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg)

	if cfg.Unauthenticated() {
		logger.Warn().Msg("============================================================")
		logger.Warn().Uint("fallback_owner_id", cfg.FallbackOwnerID).
			Msg("AUTH_MODE=unauthenticated: requests without a token act as the fallback owner")
		logger.Warn().Msg("Do NOT use this configuration in production.")
		logger.Warn().Msg("============================================================")
	}
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn().Msg("DB_DRIVER=memory: data is lost on restart")
	}

	stores, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	wf := workflow.NewClient(cfg.Workflow.BaseURL, cfg.Workflow.Timeout)

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(logger), middleware.Recovery(logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || (len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, stores, wf, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
