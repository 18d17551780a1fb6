// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/iconic-app/iconic/internal/auth"
	"github.com/iconic-app/iconic/internal/logging"
	"github.com/iconic-app/iconic/internal/metrics"
	"github.com/iconic-app/iconic/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TokenVerifier turns a bearer token into identity claims.
type TokenVerifier interface {
	Verify(raw string) (auth.Claims, error)
}

// Deps is everything the router needs.
type Deps struct {
	Log        *slog.Logger
	Metrics    *metrics.Metrics
	Store      Pinger
	Verifier   TokenVerifier
	CORSOrigin string

	Users         *service.UserService
	Events        *service.EventService
	Participation *service.ParticipationService
	Checkins      *service.CheckinService
	LiveEvents    *service.LiveEventService
	Matchmaking   *service.MatchmakingService
	Polls         *service.PollService
	Chat          *service.ChatService
	Photos        *service.PhotoService
}

// Handler holds all HTTP handlers for the ICONIC API.
type Handler struct {
	log           *slog.Logger
	store         Pinger
	users         *service.UserService
	events        *service.EventService
	participation *service.ParticipationService
	checkins      *service.CheckinService
	live          *service.LiveEventService
	match         *service.MatchmakingService
	polls         *service.PollService
	chat          *service.ChatService
	photos        *service.PhotoService
}

// NewRouter builds the chi router with the middleware stack and every route.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	h := &Handler{
		log:           d.Log,
		store:         d.Store,
		users:         d.Users,
		events:        d.Events,
		participation: d.Participation,
		checkins:      d.Checkins,
		live:          d.LiveEvents,
		match:         d.Matchmaking,
		polls:         d.Polls,
		chat:          d.Chat,
		photos:        d.Photos,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(d.Log))
	r.Use(Observe(d.Metrics))
	r.Use(CORS(d.CORSOrigin))

	r.Get("/health", HealthCheck)
	r.Get("/readyz", h.Ready)
	r.Handle("/metrics", d.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(d.Verifier, d.Users, d.Log))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/", h.ListEvents)
			r.Get("/owned", h.OwnedEvents)
			r.Get("/participating", h.ParticipatingEvents)
			r.Get("/{id}", h.GetEvent)
			r.Patch("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Post("/{id}/live-events", h.CreateLiveEvent)
			r.Get("/{id}/live-events", h.ListLiveEvents)
		})

		r.Route("/event-participations", func(r chi.Router) {
			r.Post("/", h.Join)
			r.Get("/{id}", h.GetParticipation)
			r.Patch("/{id}", h.UpdateParticipation)
			r.Delete("/{id}", h.RemoveParticipation)
			r.Get("/event/{eventId}/confirmed-users", h.ConfirmedUsers)
		})

		r.Route("/event-checkins", func(r chi.Router) {
			r.Post("/generate", h.GenerateCheckin)
			r.Post("/scan", h.ScanCheckin)
			r.Post("/manual", h.ManualCheckin)
			r.Get("/event/{eventId}/user/{userId}/checked", h.IsCheckedIn)
			r.Get("/event/{eventId}/checked-in-users", h.CheckedInUsers)
			r.Get("/event/{eventId}", h.EventCheckins)
			r.Get("/event/{eventId}/with-scanner", h.ScannedCheckins)
			r.Delete("/{id}", h.DeleteCheckin)
		})

		r.Route("/live-events/{id}", func(r chi.Router) {
			r.Get("/", h.GetLiveEvent)
			r.Post("/start", h.StartLiveEvent)
			r.Post("/end", h.EndLiveEvent)
			r.Post("/match", h.StartMatch)
			r.Get("/match/me", h.MyMatch)
			r.Get("/match/groups", h.MatchGroups)
			r.Post("/polls", h.CreatePoll)
		})

		r.Route("/polls/{id}", func(r chi.Router) {
			r.Get("/", h.GetPoll)
			r.Post("/vote", h.Vote)
			r.Get("/results", h.PollResults)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.Me)
			r.Patch("/me", h.UpdateMe)
			r.Get("/{id}", h.GetUser)
			r.Post("/{id}/scanner", h.PromoteScanner)
			r.Delete("/{id}/scanner", h.DemoteScanner)
			r.Post("/{id}/iconic", h.GrantIconic)
		})

		r.Route("/user-photos", func(r chi.Router) {
			r.Get("/", h.MyPhotos)
			r.Post("/", h.AddPhoto)
			r.Get("/user/{userId}", h.UserPhotos)
			r.Patch("/{id}", h.UpdatePhoto)
			r.Delete("/{id}", h.DeletePhoto)
		})

		r.Route("/payment", func(r chi.Router) {
			r.Post("/confirm", h.ConfirmPayment)
			r.Post("/check-status", h.CheckStatus)
		})

		r.Route("/iconic", func(r chi.Router) {
			r.Get("/members", h.IconicMembers)
			r.Get("/chat", h.ListChat)
			r.Post("/chat", h.PostChat)
		})
	})

	return r
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz
// Reports 503 while the store is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			h.log.Warn("readyz.store", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
