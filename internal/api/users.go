package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AUTO-HOST/auto-host-backend/internal/auth"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
	"github.com/AUTO-HOST/auto-host-backend/internal/store"
)

// UsersHandler handles account endpoints.
type UsersHandler struct {
	DB        *sql.DB
	JWTSecret string
	TokenTTL  time.Duration
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	UserType string `json:"userType"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Token   string `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
}

// Register handles POST /api/users/register.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email, err := model.NormalizeEmail(req.Email)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	userType := req.UserType
	if userType == "" {
		userType = model.UserTypeBuyer
	}
	if !model.ValidUserType(userType) {
		jsonError(w, http.StatusBadRequest, "invalid userType")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, email, string(hash), strings.TrimSpace(req.Name), userType)
	if errors.Is(err, model.ErrConflict) {
		jsonError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		writeError(w, r, err, "failed to register user")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, h.TokenTTL, user.ID, user.Email, user.UserType)
	if err != nil {
		writeError(w, r, err, "failed to generate token")
		return
	}

	slog.Info("user registered", "user", user.ID, "type", user.UserType)
	jsonResponse(w, http.StatusCreated, registerResponse{
		Message: "Usuario registrado con éxito",
		UserID:  user.ID,
		Email:   user.Email,
		Token:   token,
	})
}

// Login handles POST /api/users/login.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, r, err, "failed to log in")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "user", user.ID, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, h.TokenTTL, user.ID, user.Email, user.UserType)
	if err != nil {
		writeError(w, r, err, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.ID)
	jsonResponse(w, http.StatusOK, loginResponse{
		Message:  "Inicio de sesión exitoso",
		Token:    token,
		UserID:   user.ID,
		Email:    user.Email,
		UserType: user.UserType,
	})
}

// Profile handles GET /api/users/profile.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := store.GetUser(r.Context(), h.DB, identity(r).UserID)
	if err != nil {
		writeError(w, r, err, "failed to get profile")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "profile not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Logout handles POST /api/users/logout. The token stays revoked until it
// would have expired anyway.
func (h *UsersHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(h.TokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expiresAt); err != nil {
		writeError(w, r, err, "failed to log out")
		return
	}

	slog.Info("user logged out", "user", claims.Subject)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
