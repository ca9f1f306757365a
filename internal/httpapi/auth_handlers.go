package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"signon.org/internal/audit"
	"signon.org/internal/federation"
	"signon.org/internal/identity"
	"signon.org/internal/token"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type identityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toIdentityResponse(ident *identity.Identity) identityResponse {
	return identityResponse{
		ID:        ident.ID,
		Email:     ident.Email,
		FirstName: ident.FirstName,
		LastName:  ident.LastName,
		Picture:   ident.Picture,
		CreatedAt: ident.CreatedAt,
	}
}

func toSessionResponse(sess *identity.Session) sessionResponse {
	return sessionResponse{
		AccessToken: sess.Token,
		TokenType:   "Bearer",
		ExpiresAt:   sess.ExpiresAt,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}

	ident, err := a.svc.Register(r.Context(), identity.NewIdentity{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		a.writeIdentityError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "identity.registered", map[string]any{
		"identity_id": ident.ID,
	})
	writeJSON(w, http.StatusCreated, toIdentityResponse(ident))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeIdentityError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "identity.login", map[string]any{
		"identity_id": sess.Identity.ID,
	})
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	reset, err := a.svc.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		a.writeIdentityError(w, r, err)
		return
	}

	// The token travels out-of-band (mail delivery is a collaborator
	// concern); the response only acknowledges the request.
	_ = audit.LogEvent(r.Context(), "identity.password_reset.requested", map[string]any{
		"email": reset.Email,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"email":      reset.Email,
		"expires_at": reset.ExpiresAt,
	})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}
	if req.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "new_password is required")
		return
	}

	ident, err := a.svc.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		a.writeIdentityError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "identity.password_reset.completed", map[string]any{
		"identity_id": ident.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "password_updated",
	})
}

// handleFederated serves /v1/auth/{provider} (redirect to the provider)
// and /v1/auth/{provider}/callback (complete the handshake).
func (a *API) handleFederated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.states == nil {
		writeError(w, r, http.StatusNotFound, "federated login is not configured")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/auth/")
	provider, rest, _ := strings.Cut(path, "/")
	if provider == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		a.federatedStart(w, r, provider)
	case "callback":
		a.federatedCallback(w, r, provider)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) federatedStart(w http.ResponseWriter, r *http.Request, provider string) {
	state, err := a.states.Issue(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not start federated login")
		return
	}
	url, err := a.svc.AuthURL(provider, state)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "unknown provider")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (a *API) federatedCallback(w http.ResponseWriter, r *http.Request, provider string) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "code is required")
		return
	}

	if err := a.states.Consume(r.Context(), state); err != nil {
		if errors.Is(err, federation.ErrInvalidState) {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired state")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "state validation failed")
		return
	}

	sess, err := a.svc.FederatedLogin(r.Context(), provider, code)
	if err != nil {
		a.writeIdentityError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "identity.federated_login", map[string]any{
		"identity_id": sess.Identity.ID,
		"provider":    provider,
	})
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(ident))
}

// writeIdentityError maps the core failure taxonomy to stable statuses
// with fixed messages; internal detail stays in the logs.
func (a *API) writeIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, token.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, identity.ErrEmailTaken):
		writeError(w, r, http.StatusConflict, "email already in use")
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid request")
	case errors.Is(err, identity.ErrFederation):
		writeError(w, r, http.StatusBadGateway, "federated authentication failed")
	case errors.Is(err, identity.ErrEventDelivery):
		writeError(w, r, http.StatusBadGateway, "registration event delivery failed")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
