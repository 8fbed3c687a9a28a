package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"userbase/internal/auth"
	"userbase/internal/book"
	"userbase/internal/db"
	"userbase/internal/kv"
	"userbase/internal/observability"
	"userbase/internal/user"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole service: config from the environment, Postgres,
// Redis, the auth service and the HTTP routes. Dependencies are
// constructed once here and passed explicitly; nothing hangs off package
// globals.
func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	redisClient, err := kv.NewClient(ctx, kv.Config{
		Host:     envOrDefault("REDIS_HOST", "localhost"),
		Port:     envIntOrDefault("REDIS_PORT", 6379),
		DB:       envIntOrDefault("REDIS_DB", 1),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	userRepo := user.NewRepository(database)
	authService, err := auth.NewService(userRepo, kv.NewRedisStore(redisClient), auth.Config{
		Secret:          jwtSecret,
		Algorithm:       envOrDefault("JWT_ALGORITHM", "HS256"),
		AccessTokenTTL:  envMinutesOrDefault("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		MaxAttempts:     envIntOrDefault("MAX_LOGIN_ATTEMPTS", 5),
		LockoutDuration: envMinutesOrDefault("LOCKOUT_MINUTES", 15),
	})
	if err != nil {
		_ = database.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("build auth service: %w", err)
	}

	if err := userRepo.EnsureAdmin(ctx, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")); err != nil {
		_ = database.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	authHandler := auth.NewHandler(authService)
	userHandler := user.NewHandler(userRepo)
	bookHandler := book.NewHandler(book.NewRepository(database))

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	authed := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(authService, h)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /auth/logout", authed(authHandler.Logout))
	mux.Handle("GET /users/me", authed(userHandler.Me))
	mux.Handle("GET /books", authed(bookHandler.ListBooks))
	mux.Handle("POST /books", authed(bookHandler.CreateBook))
	mux.Handle("GET /books/{id}", authed(bookHandler.GetBook))
	mux.Handle("PUT /books/{id}", authed(bookHandler.UpdateBook))
	mux.Handle("DELETE /books/{id}", authed(bookHandler.DeleteBook))
	mux.HandleFunc("GET /health", healthHandler(database))
	mux.HandleFunc("GET /{$}", helloHandler)
	mux.HandleFunc("GET /crash-test-dummy", crashHandler)

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			_ = redisClient.Close()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func helloHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"Hello": "World"})
}

// crashHandler panics on purpose so the recovery middleware and crash
// reporting can be exercised end to end.
func crashHandler(http.ResponseWriter, *http.Request) {
	var values []int
	_ = values[0]
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}
