// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jackwhot/jackwhot-service/internal/auth"
	"github.com/jackwhot/jackwhot-service/internal/cache"
	"github.com/jackwhot/jackwhot-service/internal/config"
	"github.com/jackwhot/jackwhot-service/internal/database"
	"github.com/jackwhot/jackwhot-service/internal/handlers"
	"github.com/jackwhot/jackwhot-service/internal/middleware"
	"github.com/jackwhot/jackwhot-service/internal/room"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", path, err)
		}
		cfg = loaded
	}

	auth.Init()
	database.ConnectDB()

	if err := cache.ConnectRedis(); err != nil {
		// the engine runs without Redis; results just never reach the scorekeeper
		logger.Warnf("redis unavailable, match results will not be published: %v", err)
	}

	store := room.NewStore(room.Settings{
		CountdownSeconds: cfg.Game.CountdownSeconds,
		SignalWindow:     cfg.Game.SignalWindow(),
	}, cfg.Game.IdleTimeout(), func(roomID string, res room.GameResult) {
		logger.WithFields(logrus.Fields{
			"room":    roomID,
			"winners": res.Winners,
			"team":    res.WinningTeam,
			"endedBy": res.EndedBy,
		}).Info("hand resolved")

		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := cache.PublishMatchResult(ctx, cache.MatchResultRecord{
			RoomID:      roomID,
			Winners:     res.Winners,
			WinningTeam: res.WinningTeam,
			EndedBy:     res.EndedBy,
			PointsEach:  cfg.Game.WinPoints,
			Timestamp:   time.Now().UnixMilli(),
		})
		if err != nil {
			logger.Warnf("failed to publish match result for room %s: %v", roomID, err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.StartReaper(ctx, cfg.Game.SweepInterval())

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.HandleFunc("/user/claim", handlers.ClaimEphemeralHandler)
	mux.HandleFunc("/user/me", handlers.ProfileHandler)

	// read-only API
	mux.Handle("/api/leaderboard", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LeaderboardHandler,
	)))
	mux.Handle("/api/chat", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ChatHistoryHandler,
	)))

	// room websocket
	mux.Handle("/rooms/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, store),
	)))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
