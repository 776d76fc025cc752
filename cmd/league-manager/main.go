package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"github.com/cheildo/parity-league-backend/internal/league"
	"github.com/cheildo/parity-league-backend/internal/pkg/audit"
	"github.com/cheildo/parity-league-backend/internal/pkg/events"
	"github.com/cheildo/parity-league-backend/internal/pkg/transport"
	"github.com/cheildo/parity-league-backend/internal/spectate"
)

func main() {
	// --- Configuration Loading ---
	viper.SetConfigName("league-manager")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/development")
	viper.AutomaticEnv()

	viper.SetDefault("http_server.port", "8000")
	viper.SetDefault("league.id", "league_001")
	viper.SetDefault("league.abandon_after_seconds", 300)
	viper.SetDefault("league.janitor_interval_seconds", 30)
	viper.SetDefault("transport.timeout_seconds", 10)
	viper.SetDefault("audit.log_path", "jsonl/league_manager.jsonl")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Failed to read configuration file", "error", err)
			os.Exit(1)
		}
		slog.Warn("No configuration file found, using defaults")
	}

	// --- Audit Trail ---
	jsonl, err := audit.NewJSONL(viper.GetString("audit.log_path"))
	if err != nil {
		slog.Error("Failed to open audit log", "error", err)
		os.Exit(1)
	}
	defer jsonl.Close()

	trail := audit.Trail(jsonl)
	if addr := viper.GetString("audit.redis.addr"); addr != "" {
		redisTrail, err := audit.NewRedisTrail(audit.RedisConfig{
			Addr:     addr,
			Password: viper.GetString("audit.redis.password"),
			DB:       viper.GetInt("audit.redis.db"),
			Stream:   viper.GetString("audit.redis.stream"),
		})
		if err != nil {
			slog.Error("Failed to connect to Redis audit stream", "error", err)
			os.Exit(1)
		}
		defer redisTrail.Close()
		trail = audit.Multi{jsonl, redisTrail}
		slog.Info("Redis audit stream connected", "addr", addr)
	}

	// --- Event Sinks ---
	hub := spectate.NewHub()
	sinks := []events.Sink{hub}
	if brokers := viper.GetStringSlice("events.kafka.brokers"); len(brokers) > 0 {
		kafkaSink := events.NewKafkaSink(events.KafkaConfig{
			Brokers: brokers,
			Topic:   viper.GetString("events.kafka.topic"),
		})
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		slog.Info("Kafka event sink connected", "brokers", brokers)
	}

	// --- Dependency Injection ---
	client := transport.NewClient(viper.GetDuration("transport.timeout_seconds")*time.Second, trail)

	svc := league.NewService(league.Config{
		LeagueID:        viper.GetString("league.id"),
		AbandonAfter:    viper.GetDuration("league.abandon_after_seconds") * time.Second,
		JanitorInterval: viper.GetDuration("league.janitor_interval_seconds") * time.Second,
	}, client, sinks...)
	handler := league.NewHandler(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.StartJanitor(ctx)

	// --- HTTP Router ---
	router := transport.NewRouter(handler, trail, func(r chi.Router) {
		r.Get("/ws", hub.ServeHTTP)
		r.Post("/admin/start", startLeagueHandler(svc))
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"healthy","league_id":%q}`, svc.LeagueID())
		})
	})

	// --- HTTP Server Initialization and Graceful Shutdown ---
	httpPort := viper.GetString("http_server.port")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", httpPort),
		Handler: router,
	}

	go func() {
		slog.Info("League manager starting...", "port", httpPort, "leagueID", svc.LeagueID())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down league manager...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("League manager stopped.")
}

// startLeagueHandler kicks off the tournament: schedule generation, the
// opening round announcement, and match dispatch to the referees. Rounds
// defaults to 1 and can be set with ?rounds=N.
func startLeagueHandler(svc *league.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rounds := 1
		if raw := r.URL.Query().Get("rounds"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "rounds must be a positive integer", http.StatusBadRequest)
				return
			}
			rounds = n
		}

		assigned, err := svc.StartLeague(r.Context(), rounds)
		if err != nil {
			switch {
			case errors.Is(err, league.ErrScheduleExists):
				http.Error(w, "league already started", http.StatusConflict)
			case errors.Is(err, league.ErrInvalidRounds):
				http.Error(w, "rounds must be a positive integer", http.StatusBadRequest)
			case errors.Is(err, league.ErrInsufficientParticipants):
				http.Error(w, "need at least two players and one referee", http.StatusPreconditionFailed)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"started","rounds":%d,"matches_assigned":%d}`, rounds, assigned)
	}
}
