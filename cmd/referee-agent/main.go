package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"github.com/cheildo/parity-league-backend/internal/pkg/audit"
	"github.com/cheildo/parity-league-backend/internal/pkg/transport"
	"github.com/cheildo/parity-league-backend/internal/referee"
)

func main() {
	// --- Configuration Loading ---
	viper.SetConfigName("referee-agent")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/development")
	viper.AutomaticEnv()

	viper.SetDefault("http_server.port", "8001")
	viper.SetDefault("referee.display_name", "Referee One")
	viper.SetDefault("referee.league_url", "http://localhost:8000/rpc")
	viper.SetDefault("referee.max_retries", 3)
	viper.SetDefault("referee.choice_timeout_seconds", 30)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Failed to read configuration file", "error", err)
			os.Exit(1)
		}
		slog.Warn("No configuration file found, using defaults")
	}

	httpPort := viper.GetString("http_server.port")
	endpoint := viper.GetString("referee.endpoint")
	if endpoint == "" {
		endpoint = fmt.Sprintf("http://localhost:%s/rpc", httpPort)
	}

	// --- Audit Trail ---
	logPath := viper.GetString("audit.log_path")
	if logPath == "" {
		logPath = fmt.Sprintf("jsonl/referee_%s.jsonl", httpPort)
	}
	trail, err := audit.NewJSONL(logPath)
	if err != nil {
		slog.Error("Failed to open audit log", "error", err)
		os.Exit(1)
	}
	defer trail.Close()

	// --- Dependency Injection ---
	// The per-request timeout stays above the per-attempt choice timeout so
	// a slow player surfaces as a context deadline, not a transport error.
	choiceTimeout := viper.GetDuration("referee.choice_timeout_seconds") * time.Second
	client := transport.NewClient(choiceTimeout+5*time.Second, trail)

	server := referee.NewServer(referee.Config{
		DisplayName:   viper.GetString("referee.display_name"),
		Endpoint:      endpoint,
		LeagueURL:     viper.GetString("referee.league_url"),
		MaxRetries:    viper.GetInt("referee.max_retries"),
		ChoiceTimeout: choiceTimeout,
	}, client)

	// --- HTTP Router ---
	router := transport.NewRouter(server, trail, func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"healthy","referee_id":%q}`, server.RefereeID())
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", httpPort),
		Handler: router,
	}

	go func() {
		slog.Info("Referee agent starting...", "port", httpPort, "endpoint", endpoint)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not start server", "error", err)
			os.Exit(1)
		}
	}()

	// Register once the listener is up; the league may call back
	// immediately with an assignment.
	go func() {
		time.Sleep(2 * time.Second)
		if err := server.Register(context.Background()); err != nil {
			slog.Error("Registration with league failed", "error", err)
			return
		}
		slog.Info("Referee ready and waiting for assignments")
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down referee agent...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Referee agent stopped.")
}
