// cmd/scorekeeper/main.go is an asynchronous consumer that pops finished
// match results from a Redis queue and credits the winners in PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/jackwhot/jackwhot-service/internal/cache"
	"github.com/jackwhot/jackwhot-service/internal/database"
)

// ScorekeeperService reads MatchResultRecords off the queue and applies
// point and win-count updates per winner.
type ScorekeeperService struct {
	redisClient *redis.Client
	queueName   string
	winPoints   int

	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewScorekeeperService constructs the service from environment variables or defaults.
func NewScorekeeperService() *ScorekeeperService {
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &ScorekeeperService{
		redisClient: rdb,
		queueName:   getEnv("SCOREKEEPER_QUEUE_NAME", cache.DefaultQueueName),
		winPoints:   getEnvInt("SCOREKEEPER_WIN_POINTS", 10),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects to the database and consumes the queue until stopped.
func (ss *ScorekeeperService) Run() {
	database.ConnectDB()

	go ss.readRedisLoop()

	log.Println("jackwhot-scorekeeper service started.")
	<-ss.ctx.Done()
	log.Println("jackwhot-scorekeeper shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve results from the Redis queue.
func (ss *ScorekeeperService) readRedisLoop() {
	for {
		select {
		case <-ss.ctx.Done():
			return
		default:
		}

		// BLPop with a short timeout so context cancellation is handled.
		res, err := ss.redisClient.BLPop(ss.ctx, 3*time.Second, ss.queueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			log.Printf("[ERROR] BLPop: %v\n", err)
			continue
		}
		if len(res) < 2 {
			continue
		}

		// res[0] is the queue name and res[1] the payload.
		var record cache.MatchResultRecord
		if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
			log.Printf("invalid match result record: %v\n", err)
			continue
		}

		ss.applyResult(record)
	}
}

// applyResult credits every winner. A failure for one winner does not
// block the rest.
func (ss *ScorekeeperService) applyResult(record cache.MatchResultRecord) {
	points := record.PointsEach
	if points <= 0 {
		points = ss.winPoints
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, winner := range record.Winners {
		if err := database.AddPoints(ctx, winner, points, true); err != nil {
			log.Printf("failed to credit %s for room %s: %v", winner, record.RoomID, err)
			continue
		}
	}
	log.Printf("Credited %d winners of room %s (%d points each).", len(record.Winners), record.RoomID, points)
}

// Stop gracefully stops the scorekeeper service.
func (ss *ScorekeeperService) Stop() {
	ss.cancelFn()
}

func main() {
	ss := NewScorekeeperService()
	go ss.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	ss.Stop()
	log.Println("Scorekeeper shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
