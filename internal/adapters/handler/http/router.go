package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig bundles what the HTTP surface needs beyond its handlers.
type RouterConfig struct {
	JWTSecret      []byte
	VoteRatePerSec float64
	VoteRateBurst  int
}

func NewHandler(pollHandler *PollHandler, voteHandler *VoteHandler, cfg RouterConfig) http.Handler {
	if cfg.VoteRatePerSec == 0 {
		cfg.VoteRatePerSec = 5
	}
	if cfg.VoteRateBurst == 0 {
		cfg.VoteRateBurst = 10
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", pollHandler.Status)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Route("/polls", func(r chi.Router) {
				r.Post("/", pollHandler.CreatePoll)
				r.Get("/{id}", pollHandler.GetPoll)
				r.Post("/{id}/close", pollHandler.ClosePoll)
				r.With(RateLimitMiddleware(cfg.VoteRatePerSec, cfg.VoteRateBurst)).
					Post("/{id}/options", pollHandler.AddOption)
			})

			r.Route("/options", func(r chi.Router) {
				r.With(RateLimitMiddleware(cfg.VoteRatePerSec, cfg.VoteRateBurst)).
					Post("/{optionID}/toggle", voteHandler.ToggleVote)
			})
		})
	})

	return r
}
