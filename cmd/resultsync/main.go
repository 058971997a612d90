package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/ballotd/ballotd/internal/adapters/cache/redis"
	"github.com/ballotd/ballotd/internal/adapters/repository/postgres"
	"github.com/ballotd/ballotd/internal/config"
	"github.com/ballotd/ballotd/internal/core/domain"
)

// Rebuilds the redis results cache from the database, for cold starts or
// after a cache flush.
func main() {
	cfg := config.Load()
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required")
	}

	db, err := sql.Open("postgres", cfg.DBConnString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cache, err := redis.NewResultsCache(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal(err)
	}
	defer cache.Close()

	polls, err := domain.FetchAllPolls(ctx, postgres.NewStore(db))
	if err != nil {
		log.Fatal(err)
	}

	for _, poll := range polls {
		counts := make(map[int64]int)
		for _, opt := range poll.Options() {
			counts[opt.ID()] = opt.VoteCount()
		}
		if err := cache.UpdateCounts(ctx, poll.ID(), counts); err != nil {
			log.Fatalf("Failed to sync poll %d: %v", poll.ID(), err)
		}
	}

	log.Printf("Synced results for %d polls.", len(polls))
}
