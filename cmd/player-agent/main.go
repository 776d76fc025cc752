package main

import (
	"context"
	"encoding/json"
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
	"github.com/cheildo/parity-league-backend/internal/player"
)

func main() {
	// --- Configuration Loading ---
	viper.SetConfigName("player-agent")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/development")
	viper.AutomaticEnv()

	viper.SetDefault("http_server.port", "8101")
	viper.SetDefault("player.display_name", "Player One")
	viper.SetDefault("player.league_url", "http://localhost:8000/rpc")
	viper.SetDefault("player.strategy", player.StrategyRandom)
	viper.SetDefault("transport.timeout_seconds", 10)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Failed to read configuration file", "error", err)
			os.Exit(1)
		}
		slog.Warn("No configuration file found, using defaults")
	}

	httpPort := viper.GetString("http_server.port")
	endpoint := viper.GetString("player.endpoint")
	if endpoint == "" {
		endpoint = fmt.Sprintf("http://localhost:%s/rpc", httpPort)
	}

	// --- Audit Trail ---
	logPath := viper.GetString("audit.log_path")
	if logPath == "" {
		logPath = fmt.Sprintf("jsonl/player_%s.jsonl", httpPort)
	}
	trail, err := audit.NewJSONL(logPath)
	if err != nil {
		slog.Error("Failed to open audit log", "error", err)
		os.Exit(1)
	}
	defer trail.Close()

	// --- Dependency Injection ---
	client := transport.NewClient(viper.GetDuration("transport.timeout_seconds")*time.Second, trail)

	agent := player.NewAgent(player.Config{
		DisplayName: viper.GetString("player.display_name"),
		Endpoint:    endpoint,
		LeagueURL:   viper.GetString("player.league_url"),
		Strategy:    viper.GetString("player.strategy"),
	}, client)

	// --- HTTP Router ---
	router := transport.NewRouter(agent, trail, func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"healthy","player_id":%q}`, agent.PlayerID())
		})
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"player_id":    agent.PlayerID(),
				"stats":        agent.Stats(),
				"games_played": len(agent.History()),
			})
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", httpPort),
		Handler: router,
	}

	go func() {
		slog.Info("Player agent starting...", "port", httpPort, "endpoint", endpoint)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not start server", "error", err)
			os.Exit(1)
		}
	}()

	// Register once the listener is up so the league can reach us back.
	go func() {
		time.Sleep(2 * time.Second)
		if err := agent.Register(context.Background()); err != nil {
			slog.Error("Registration with league failed", "error", err)
			return
		}
		slog.Info("Player ready and waiting for invitations")
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down player agent...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Player agent stopped.")
}
