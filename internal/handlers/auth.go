package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/apperr"
	"github.com/result-system/apiserver/internal/metrics"
	"github.com/result-system/apiserver/internal/ratelimit"
	"github.com/result-system/apiserver/internal/services"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "jwt"

const maxLoginBytes = 4 << 10

// LoginLimiter counts login attempts per client.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (int, error)
	Limit() int
}

// AuthHandler provides the registration and session endpoints.
type AuthHandler struct {
	auth         *services.AuthService
	limiter      LoginLimiter
	metrics      *metrics.Metrics
	log          *zap.Logger
	cookieSecure bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService, limiter LoginLimiter, m *metrics.Metrics, log *zap.Logger, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		limiter:      limiter,
		metrics:      m,
		log:          log,
		cookieSecure: cookieSecure,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, requireAuth func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/token", handler.Token)
	r.With(requireAuth).Post("/logout", handler.Logout)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Register creates a TEACHER or STUDENT account from a multipart form.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRegisterBytes)
	in, err := parseRegisterForm(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	id, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeData(w, http.StatusCreated, id)
}

// Login verifies credentials, returns the access token and sets the refresh
// cookie. Attempts are limited per client IP.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	remaining, err := h.limiter.Allow(r.Context(), clientIP(r))
	if err != nil && !errors.Is(err, ratelimit.ErrRateLimited) {
		writeError(w, r, h.log, apperr.Internal(err))
		return
	}
	w.Header().Set("RateLimit-Limit", strconv.Itoa(h.limiter.Limit()))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
	if err != nil {
		h.metrics.Logins.WithLabelValues(metrics.LoginRateLimited).Inc()
		writeError(w, r, h.log, apperr.RateLimited())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBytes)
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.log, apperr.BadRequest("Invalid request body."))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	var v validation
	v.required(req.Username, "Username")
	v.required(req.Password, "Password")
	if err := v.err(); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	http.SetCookie(w, h.refreshCookie(res.RefreshToken, int(res.RefreshTTL)))
	writeData(w, http.StatusOK, TokenResponse{AccessToken: res.AccessToken})
}

// Token mints a new access token from the refresh cookie.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		refreshToken = cookie.Value
	}

	access, err := h.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeData(w, http.StatusCreated, TokenResponse{AccessToken: access})
}

// Logout ends the session of the authenticated user and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, h.log, apperr.Unauthenticated(errors.New("missing principal")))
		return
	}

	if err := h.auth.Logout(r.Context(), principal.ID); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	http.SetCookie(w, h.refreshCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

// refreshCookie builds the refresh cookie. A negative maxAge deletes it.
// Browsers drop SameSite=None cookies that are not Secure, so insecure
// cookies fall back to Lax.
func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if !h.cookieSecure {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: sameSite,
	}
}

// clientIP is the socket peer address. Forwarding headers only count when
// the router runs behind a trusted proxy and rewrites RemoteAddr itself.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
