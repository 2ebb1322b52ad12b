package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api/middleware"
	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/config"
	"github.com/Staby-Guy/pidgeon/internal/utils"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Deps are the services the HTTP layer calls into.
type Deps struct {
	Accounts *services.Accounts
	Contacts *services.Contacts
	Messages *services.Messages
	Streams  *services.Streams
	Avatars  *services.Avatars
	Tokens   *services.Tokens
	// Google is nil when Google sign-in is not configured.
	Google *services.GoogleOAuth
	Config config.Config
}

// Handler serves the REST and event-stream routes.
type Handler struct {
	Deps
	heartbeat time.Duration
}

func New(deps Deps) *Handler {
	return &Handler{Deps: deps, heartbeat: 25 * time.Second}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return false
	}
	return true
}

// caller returns the authenticated caller or answers 401.
func caller(w http.ResponseWriter, r *http.Request) (middleware.Caller, bool) {
	c, ok := middleware.CallerFrom(r.Context())
	if !ok {
		utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
			Success: false,
			Message: "Unauthorized",
		})
	}
	return c, ok
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	utils.JSONResponse(w, status, utils.Payload{
		Success: true,
		Message: message,
		Data:    data,
	})
}
