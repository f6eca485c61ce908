package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"tenismatch/internal/config"
	"tenismatch/internal/presence"
	"tenismatch/internal/service"

	_ "tenismatch/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Config        *config.Config
	Log           zerolog.Logger
	Auth          *service.AuthService
	Users         *service.UserService
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Presence      presence.Tracker
	// WS serves /ws. It is mounted outside the request timeout.
	WS http.Handler
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(d.Log))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName,
			"version": "1.0.0",
			"docs":    "/docs",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	cookie := sessionCookie{name: cfg.SessionCookieName, maxAge: cfg.SessionMaxAge, secure: cfg.Env == "production"}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(d.Auth, cookie))
			r.Post("/login", handleLogin(d.Auth, cookie))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Auth, cfg.SessionCookieName))

			r.Post("/auth/logout", handleLogout(cookie))
			r.Get("/auth/me", handleMe())

			r.Get("/users/{userID}", handleGetUser(d.Users))

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", handleCreateConversation(d.Conversations))
				r.Get("/", handleListConversations(d.Conversations))
				r.Get("/{conversationID}", handleGetConversation(d.Conversations))
				r.Post("/{conversationID}/read", handleMarkConversationRead(d.Conversations))
				r.Get("/{conversationID}/messages", handleListMessages(d.Messages))
				r.Post("/{conversationID}/messages", handleCreateMessage(d.Messages))
				r.Post("/{conversationID}/typing", handleTyping(d.Conversations, d.Presence))
				r.Get("/{conversationID}/presence", handleGetPresence(d.Conversations, d.Presence))
			})
		})
	})

	if d.WS != nil {
		r.Get("/ws", d.WS.ServeHTTP)
	}

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
