package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ballotd/ballotd/internal/adapters/cache/redis"
	"github.com/ballotd/ballotd/internal/adapters/events/kafka"
	"github.com/ballotd/ballotd/internal/adapters/handler/http"
	"github.com/ballotd/ballotd/internal/adapters/repository/postgres"
	"github.com/ballotd/ballotd/internal/config"
	"github.com/ballotd/ballotd/internal/core/domain"
	"github.com/ballotd/ballotd/internal/core/ports"
	"github.com/ballotd/ballotd/internal/core/services"
)

// logNotifier stands in for a chat transport: every poll change is announced
// on the process log. A real deployment swaps in an adapter that edits the
// hosting message.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) PollChanged(_ context.Context, poll *domain.Poll) {
	n.logger.Info("poll changed", "poll_id", poll.ID(), "open", poll.IsOpen())
}

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := sql.Open("postgres", cfg.DBConnString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache ports.ResultsCache
	if cfg.RedisAddr != "" {
		rc, err := redis.NewResultsCache(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal(err)
		}
		defer rc.Close()
		cache = rc
	}

	var events ports.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		pub := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer pub.Close()
		events = pub
	}

	store := postgres.NewStore(db)
	registry := services.NewRegistry()
	scheduler := services.NewScheduler(registry, logger)
	scheduler.Start(ctx)

	service := services.NewPollService(store, registry, scheduler, logNotifier{logger: logger}, cache, events, logger)
	if err := service.LoadAll(ctx); err != nil {
		log.Fatal(err)
	}

	pollHandler := http.NewPollHandler(service, service.StatusLine)
	voteHandler := http.NewVoteHandler(service)
	handler := http.NewHandler(pollHandler, voteHandler, http.RouterConfig{
		JWTSecret: []byte(cfg.JWTSecret),
	})
	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: handler}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
	scheduler.Wait()
}
