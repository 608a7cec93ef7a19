package handler

import (
	"encoding/json"
	"net/http"

	"sodaclub-ledger-api/internal/middleware"
	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/service"
	"sodaclub-ledger-api/pkg/apierror"
	"sodaclub-ledger-api/pkg/response"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	auth    *service.AuthService
	members *service.MemberService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService, members *service.MemberService) *AuthHandler {
	return &AuthHandler{auth: auth, members: members}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// LoginResponse represents the response for a successful login.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
	Member    *model.Member `json:"member"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	member, token, err := h.auth.Authenticate(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}

	response.OK(w, LoginResponse{
		Token:     token,
		ExpiresIn: int64(service.TokenTTL.Seconds()),
		Member:    member,
	})
}

// RegisterRequest represents the request body for self-registration.
type RegisterRequest struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Secret     string `json:"secret"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	member, err := h.members.Register(r.Context(), req.Identifier, req.Name, req.Secret)
	if err != nil {
		response.Error(w, mapServiceError(err))
		return
	}

	response.Created(w, member)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMemberFromContext(r.Context())
	if member == nil {
		response.Error(w, apierror.Unauthorized(""))
		return
	}
	response.OK(w, member)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.auth.Refresh(r.Context(), token); err != nil {
		response.Error(w, apierror.Unauthorized("Invalid or expired token"))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_in": int64(service.TokenTTL.Seconds()),
	})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "logged_out"})
}
