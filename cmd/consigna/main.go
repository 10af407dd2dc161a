package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/consigna/internal/api"
	"github.com/erazemk/consigna/internal/config"
	"github.com/erazemk/consigna/internal/db"
	"github.com/erazemk/consigna/internal/imaging"
	"github.com/erazemk/consigna/internal/logging"
	"github.com/erazemk/consigna/internal/metrics"
	"github.com/erazemk/consigna/internal/model"
	"github.com/erazemk/consigna/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("consigna", flag.ContinueOnError)
	fs.StringVar(&cfg.DB.Path, "db", cfg.DB.Path, "")
	fs.StringVar(&cfg.DB.Path, "d", cfg.DB.Path, "")
	fs.StringVar(&cfg.HTTP.Addr, "addr", cfg.HTTP.Addr, "")
	fs.StringVar(&cfg.HTTP.Addr, "a", cfg.HTTP.Addr, "")
	fs.StringVar(&cfg.Auth.AdminEmail, "admin", cfg.Auth.AdminEmail, "")
	fs.StringVar(&cfg.Log.File, "log", cfg.Log.File, "")
	fs.StringVar(&cfg.Log.File, "l", cfg.Log.File, "")
	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: consigna [flags]

Flags:
  -d, -db <path>          SQLite database path (env CONSIGNA_DB_PATH, default consigna.sqlite3)
  -a, -addr <host:port>   listen address (env CONSIGNA_ADDR, default :8080)
  -admin <email>          admin email on first run (env CONSIGNA_ADMIN_EMAIL)
  -l, -log <path>         log file path (env CONSIGNA_LOG_FILE, default stdout/stderr only)
  -h, -help               show this help and exit

Other settings are read from CONSIGNA_* environment variables or a .env file.
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := logger.WithContext(context.Background())

	firstRun := false
	if _, err := os.Stat(cfg.DB.Path); errors.Is(err, os.ErrNotExist) {
		firstRun = true
	}

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	logger.Info().Str("path", cfg.DB.Path).Msg("database ready")

	if err := ensureAdmin(ctx, database, cfg.Auth, firstRun); err != nil {
		database.Close()
		return err
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if jwtSecret, err = store.GetJWTSecret(ctx, database); err != nil {
			database.Close()
			return fmt.Errorf("loading jwt secret: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := api.NewRouter(database, api.Options{
		JWTSecret:      jwtSecret,
		TokenTTL:       cfg.Auth.TokenTTL,
		Logger:         logger,
		Metrics:        metrics.NewLedger(reg),
		Gatherer:       reg,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Photos:         imaging.Processor{},
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case err := <-serveErr:
		runErr = err
	case <-sigCtx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	runErr = multierr.Append(runErr, server.Shutdown(shutdownCtx))
	runErr = multierr.Append(runErr, database.Close())
	if runErr != nil {
		logger.Error().Err(runErr).Msg("server stopped with errors")
		return runErr
	}

	logger.Info().Msg("server stopped")
	return nil
}

// ensureAdmin creates the first admin account when none exists and prints
// its generated password once.
func ensureAdmin(ctx context.Context, database *sqlx.DB, cfg config.AuthConfig, firstRun bool) error {
	exists, err := store.HasAdmin(ctx, database)
	if err != nil {
		return fmt.Errorf("checking admin account: %w", err)
	}
	if exists {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if _, err := store.CreateUser(ctx, database, cfg.AdminName, cfg.AdminEmail, string(hash), model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("email", cfg.AdminEmail).Bool("new_database", firstRun).Msg("admin account created")
	printInitResult(cfg.AdminEmail, password)
	return nil
}

// printInitResult prints the generated admin credentials to stdout.
func printInitResult(email, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
