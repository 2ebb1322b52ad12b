package api

import (
	"fmt"
	"net/http"

	_ "github.com/Staby-Guy/pidgeon/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Staby-Guy/pidgeon/internal/api/handlers"
	"github.com/Staby-Guy/pidgeon/internal/api/middleware"
	"github.com/Staby-Guy/pidgeon/internal/config"
	"github.com/Staby-Guy/pidgeon/internal/metrics"
	"github.com/charmbracelet/log"
	"github.com/rs/cors"
)

func NewRouter(h *handlers.Handler, cfg config.Config) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(cfg.CorsConfig)

	// ---------- PUBLIC ROUTES ----------
	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mainMux.Handle("GET /metrics", metrics.Handler())
	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	requireAuth := middleware.AuthMiddleware(h.Tokens)

	authMux := http.NewServeMux()
	authMux.HandleFunc("POST /sign-up", h.SignUp)
	authMux.HandleFunc("POST /login", h.Login)
	authMux.Handle("POST /logout", requireAuth(http.HandlerFunc(h.Logout)))
	// Public: sign-up uploads the avatar before a session exists.
	presignLimit := middleware.RateLimit(int(cfg.PresignPerMinute))
	authMux.Handle("POST /avatar/presign", presignLimit(http.HandlerFunc(h.PresignAvatar)))
	authMux.HandleFunc("GET /google/login", h.GoogleLogin)
	authMux.HandleFunc("GET /google/callback", h.GoogleCallback)

	mainMux.Handle("/api/v1/auth/",
		http.StripPrefix("/api/v1/auth", authMux),
	)

	// ---------- PROTECTED ROUTES ----------
	protectedMux := http.NewServeMux()

	protectedMux.HandleFunc("GET /contacts", h.ListContacts)
	protectedMux.HandleFunc("POST /contacts", h.AddContact)
	protectedMux.HandleFunc("DELETE /contacts/{contactId}", h.RemoveContact)
	protectedMux.HandleFunc("GET /users/search", h.SearchUsers)

	protectedMux.HandleFunc("GET /messages", h.GetMessages)
	protectedMux.HandleFunc("POST /messages", h.SendMessage)
	protectedMux.HandleFunc("PATCH /messages", h.EditMessage)
	protectedMux.HandleFunc("DELETE /messages", h.DeleteMessage)
	protectedMux.HandleFunc("GET /unread", h.GetUnread)

	protectedMux.HandleFunc("GET /realtime", h.Stream)

	mainMux.Handle("/api/v1/",
		http.StripPrefix(
			"/api/v1",
			requireAuth(protectedMux),
		),
	)

	log.Info("Router initialized")
	handler := c.Handler(mainMux)
	handler = metrics.Middleware(handler)
	handler = middleware.Logger(handler)
	return handler
}
