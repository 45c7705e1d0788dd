package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/brickrace/race-server/handlers"
	"github.com/brickrace/race-server/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Competitor *handlers.CompetitorHandler
	Event      *handlers.EventHandler
	Heat       *handlers.HeatHandler
	Timing     *handlers.TimingHandler
	Tournament *handlers.TournamentHandler
	Bracket    *handlers.BracketHandler
	Sync       *handlers.SyncHandler
	Withdrawal *handlers.WithdrawalHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, auth *middleware.Auth) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Timing-Api-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "api/swagger.json")
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Post("/auth/login", h.Auth.Login)

	// Realtime displays connect unauthenticated; the stream is read-only.
	router.Get("/events/{eventID}/ws", h.WebSocket.Subscribe)

	// Public spectator surface.
	router.Group(func(r chi.Router) {
		r.Get("/events/active", h.Event.GetActive)
		r.Get("/events/{eventID}", h.Event.Get)
		r.Get("/events/{eventID}/phase", h.Event.Phase)
		r.Get("/events/{eventID}/heats", h.Heat.List)
		r.Get("/events/{eventID}/heats/current", h.Heat.Current)
		r.Get("/events/{eventID}/standings", h.Competitor.Standings)
		r.Get("/events/{eventID}/matches", h.Bracket.ListMatches)
		r.Get("/matches/{matchID}", h.Bracket.GetMatch)
		r.Get("/matches/{matchID}/sub-rounds", h.Bracket.ListSubRounds)
		r.Get("/competitors", h.Competitor.List)
		r.Get("/competitors/{competitorID}", h.Competitor.Get)
	})

	// Track timing hardware, authenticated by shared key.
	router.Group(func(r chi.Router) {
		r.Use(auth.TimingAuth)
		r.Post("/events/{eventID}/timing/results", h.Timing.SubmitResult)
	})

	// Operator console.
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Get("/events/{eventID}/status", h.Event.Status)
		r.Get("/events/{eventID}/withdrawals", h.Withdrawal.List)
		r.Get("/events/{eventID}/tournament", h.Tournament.Get)

		r.Post("/competitors", h.Competitor.Create)
		r.Put("/competitors/{competitorID}", h.Competitor.Update)
		r.Post("/competitors/{competitorID}/check-in", h.Competitor.CheckIn)
		r.Post("/competitors/{competitorID}/photo", h.Competitor.UploadPhoto)

		r.Post("/events/{eventID}/qualifiers/generate", h.Heat.GenerateQualifyingRound)
		r.Put("/events/{eventID}/qualifiers/{heatNumber}/time", h.Heat.RecordQualifierTime)

		r.Put("/matches/{matchID}/time", h.Bracket.RecordTime)

		r.Get("/events/{eventID}/withdrawals/{competitorID}/preview", h.Withdrawal.Preview)

		// Admin-only: anything that mutates bracket structure or rosters
		// with the authority, and account management.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Post("/auth/operators", h.Auth.CreateOperator)

			r.Post("/events/{eventID}/tournament", h.Tournament.Create)
			r.Post("/events/{eventID}/tournament/participants", h.Tournament.RegisterParticipants)
			r.Post("/events/{eventID}/tournament/start", h.Tournament.Start)
			r.Post("/events/{eventID}/tournament/finalize", h.Tournament.Finalize)

			r.Post("/events/{eventID}/bracket/generate", h.Bracket.Generate)
			r.Post("/events/{eventID}/bracket/reconcile", h.Bracket.Reconcile)

			r.Post("/matches/{matchID}/sync", h.Sync.SyncMatch)
			r.Post("/events/{eventID}/sync", h.Sync.SyncEvent)

			r.Post("/matches/{matchID}/forfeit", h.Bracket.Forfeit)

			r.Post("/events/{eventID}/withdrawals/{competitorID}", h.Withdrawal.Withdraw)
			r.Delete("/events/{eventID}/withdrawals/{competitorID}", h.Withdrawal.Reinstate)
		})
	})

	return router
}
