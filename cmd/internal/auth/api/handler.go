package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"flock/cmd/identity"
	"flock/cmd/internal/auth/session"
	"flock/cmd/security/password"
)

// PasswordPolicy validates candidate passwords before hashing.
// Satisfied by password.Config.
type PasswordPolicy interface {
	Validate(pw string) error
}

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions *session.Service
	policy   PasswordPolicy
	metrics  *Metrics

	ipThrottle    *failureThrottle
	emailThrottle *failureThrottle
}

// NewHandler constructs an auth Handler. metrics may be nil.
func NewHandler(log *slog.Logger, sessions *session.Service, policy PasswordPolicy, cfg Config, metrics *Metrics) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}
	if policy == nil {
		policy = password.DefaultConfig()
	}
	return &Handler{
		log:           log,
		cfg:           cfg,
		sessions:      sessions,
		policy:        policy,
		metrics:       metrics,
		ipThrottle:    newFailureThrottle(cfg.LoginIPMax, cfg.LoginIPWindow),
		emailThrottle: newFailureThrottle(cfg.LoginEmailMax, cfg.LoginEmailWindow),
	}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.Handle("/auth/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	if err := h.policy.Validate(req.Password); err != nil {
		h.metrics.record("register", "rejected")
		writeError(w, http.StatusBadRequest, "weak_password", policyMessage(err))
		return
	}

	auth, err := h.sessions.Register(r.Context(), session.RegisterInput{
		Email:    req.Email,
		Username: trimPtr(req.Username),
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrConflict):
			h.metrics.record("register", "rejected")
			writeError(w, http.StatusConflict, "conflict", "email or username already exists")
		case errors.Is(err, session.ErrInvalidInput):
			h.metrics.record("register", "rejected")
			writeError(w, http.StatusBadRequest, "invalid_request", "a valid email is required")
		default:
			h.metrics.record("register", "error")
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.metrics.record("register", "ok")
	writeJSON(w, http.StatusCreated, toAuthResponse(auth))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	now := time.Now().UTC()
	ipKey := clientIPKey(r, h.cfg.TrustProxy)
	emailKey := identity.NormalizeEmail(req.Email)

	if blocked, retryAfter := h.ipThrottle.Blocked(ipKey, now); blocked {
		h.metrics.recordThrottled()
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := h.emailThrottle.Blocked(emailKey, now); blocked {
		h.metrics.recordThrottled()
		writeRateLimited(w, retryAfter)
		return
	}

	auth, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			h.ipThrottle.RecordFailure(ipKey, now)
			h.emailThrottle.RecordFailure(emailKey, now)
			h.metrics.record("login", "rejected")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.metrics.record("login", "error")
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.ipThrottle.Reset(ipKey)
	h.emailThrottle.Reset(emailKey)
	h.metrics.record("login", "ok")
	writeJSON(w, http.StatusOK, toAuthResponse(auth))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	auth, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.metrics.record("refresh", "rejected")
		writeError(w, http.StatusUnauthorized, "invalid_session", "session not active")
		return
	}

	h.metrics.record("refresh", "ok")
	writeJSON(w, http.StatusOK, toAuthResponse(auth))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Logout(r.Context(), id.AccountID); err != nil {
		if errors.Is(err, session.ErrAccountNotFound) {
			h.metrics.record("logout", "rejected")
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		h.metrics.record("logout", "error")
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.metrics.record("logout", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	acct, err := h.sessions.Account(r.Context(), id.AccountID)
	if err != nil {
		if errors.Is(err, session.ErrAccountNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(acct)})
}

// ---- access-token middleware ----

type contextKey struct{}

var identityKey contextKey

// RequireAuth validates the bearer access token and, on success, attaches
// the authenticated identity to the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// IdentityFromContext extracts the identity placed by RequireAuth.
func IdentityFromContext(ctx context.Context) (session.AccessIdentity, bool) {
	id, ok := ctx.Value(identityKey).(session.AccessIdentity)
	return id, ok
}

func withIdentity(ctx context.Context, id session.AccessIdentity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (session.AccessIdentity, bool) {
	tok := bearerToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.AccessIdentity{}, false
	}
	id, err := h.sessions.ValidateAccess(r.Context(), tok)
	if err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		} else {
			h.log.Error("auth.validate.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return session.AccessIdentity{}, false
	}
	return id, true
}

// ---- helpers ----

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func policyMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "password is too short"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "password is too long"
	case errors.Is(err, password.ErrWeakPassword):
		return "password is too easy to guess"
	default:
		return "password does not meet policy"
	}
}

// clientIPKey derives the throttle key for the remote client. Forwarded
// headers are honored only when the deployment declares a trusted proxy.
func clientIPKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip.String()
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
