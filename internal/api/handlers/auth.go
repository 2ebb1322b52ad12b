package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api/middleware"
	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/apperrors"
	"github.com/Staby-Guy/pidgeon/internal/models"
	"github.com/Staby-Guy/pidgeon/internal/utils"
	"github.com/charmbracelet/log"
)

const oauthStateCookie = "oauth_state"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp godoc
// @Summary Create an account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.SignUpInput true "Account details"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/auth/sign-up [post]
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input services.SignUpInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.Accounts.SignUp(r.Context(), input)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	respond(w, http.StatusCreated, "User registered successfully", map[string]string{"userId": user.ID})
}

// Login godoc
// @Summary Sign in with email and password
// @Description Sets the http-only session cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body loginRequest true "Credentials"
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.Accounts.Authenticate(r.Context(), input.Email, input.Password)
	if err != nil {
		utils.ErrorResponse(w, err)
		return
	}
	if err := h.startSession(w, user); err != nil {
		utils.ErrorResponse(w, err)
		return
	}

	respond(w, http.StatusOK, "Login successful", map[string]string{
		"userId":   user.ID,
		"username": user.Username,
	})
}

// Logout godoc
// @Summary Clear the session cookie
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, middleware.SessionCookie, "", -1)
	respond(w, http.StatusOK, "Logged out successfully", nil)
}

// GoogleLogin godoc
// @Summary Start Google sign-in
// @Tags Auth
// @Success 307
// @Failure 503 {object} utils.Payload
// @Router /api/v1/auth/google/login [get]
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		utils.ErrorResponse(w, apperrors.Unavailable("Google sign-in is not configured"))
		return
	}

	state, err := newOAuthState(oauthState{Flow: "login"})
	if err != nil {
		utils.ErrorResponse(w, apperrors.Internal("failed to generate OAuth state", err))
		return
	}
	h.setCookie(w, oauthStateCookie, state, int((10 * time.Minute).Seconds()))
	http.Redirect(w, r, h.Google.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback godoc
// @Summary Finish Google sign-in for an existing account
// @Tags Auth
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 307
// @Router /api/v1/auth/google/callback [get]
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		utils.ErrorResponse(w, apperrors.Unavailable("Google sign-in is not configured"))
		return
	}

	state := r.FormValue("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != state {
		h.redirectSignIn(w, r, "invalid_state")
		return
	}
	h.setCookie(w, oauthStateCookie, "", -1)
	if _, err := parseOAuthState(state); err != nil {
		h.redirectSignIn(w, r, "invalid_state")
		return
	}

	profile, err := h.Google.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Warn("Google sign-in failed", "err", err)
		h.redirectSignIn(w, r, "oauth_failed")
		return
	}
	if !profile.VerifiedEmail {
		h.redirectSignIn(w, r, "email_not_verified")
		return
	}

	user, err := h.Accounts.SignInExisting(r.Context(), profile.Email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		h.redirectSignIn(w, r, "user_not_found")
		return
	case err != nil:
		log.Error("Google sign-in lookup failed", "err", err)
		h.redirectSignIn(w, r, "server_error")
		return
	}
	if err := h.startSession(w, user); err != nil {
		log.Error("Failed to start session", "err", err)
		h.redirectSignIn(w, r, "server_error")
		return
	}

	http.Redirect(w, r, h.Config.FrontendURL+"/chat", http.StatusTemporaryRedirect)
}

func (h *Handler) startSession(w http.ResponseWriter, user *models.User) error {
	token, expiration, err := h.Tokens.Issue(user)
	if err != nil {
		return apperrors.Internal("failed to create token", err)
	}
	h.setCookie(w, middleware.SessionCookie, token, int(time.Until(expiration).Seconds()))
	return nil
}

// setCookie writes an http-only cookie; maxAge < 0 deletes it.
func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	isProd := h.Config.IsProduction()
	sameSite := http.SameSiteLaxMode
	if isProd {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   isProd,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

func (h *Handler) redirectSignIn(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.Config.FrontendURL+"/auth/signin?error="+url.QueryEscape(reason), http.StatusTemporaryRedirect)
}
