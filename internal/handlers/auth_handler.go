package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/am4rknvl/chatcore/internal/auth"
	"github.com/am4rknvl/chatcore/internal/models"
	"github.com/am4rknvl/chatcore/internal/repository"
	"github.com/am4rknvl/chatcore/internal/session"
)

type AuthHandler struct {
	userRepo   *repository.UserRepository
	jwtService *auth.JWTService
	store      *session.Store
}

func NewAuthHandler(userRepo *repository.UserRepository, jwtService *auth.JWTService, store *session.Store) *AuthHandler {
	return &AuthHandler{
		userRepo:   userRepo,
		jwtService: jwtService,
		store:      store,
	}
}

// Register creates a user and returns an access/refresh token pair.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.userRepo.GetByUsername(req.Username); err == nil {
		ErrorResponse(c, http.StatusConflict, "username already taken")
		return
	}
	if _, err := h.userRepo.GetByEmail(req.Email); err == nil {
		ErrorResponse(c, http.StatusConflict, "email already registered")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}

	if err := h.userRepo.Create(user); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.issueTokens(c, http.StatusCreated, user)
}

// Login verifies credentials and returns a fresh access/refresh token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userRepo.GetByUsername(req.Username)
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !user.IsActive {
		ErrorResponse(c, http.StatusForbidden, "account disabled")
		return
	}

	h.issueTokens(c, http.StatusOK, user)
}

// Refresh exchanges a still-allowlisted refresh token for a new token pair,
// rotating the refresh token so a stolen one can't be replayed indefinitely.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	ctx := c.Request.Context()
	valid, err := h.store.IsRefreshValid(ctx, claims.ID, claims.UserID)
	if err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	if !valid {
		ErrorResponse(c, http.StatusUnauthorized, "refresh token revoked")
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "user not found")
		return
	}

	_ = h.store.RevokeRefresh(ctx, claims.ID)
	h.issueTokens(c, http.StatusOK, user)
}

// Logout revokes the presented refresh token so it can no longer be
// exchanged, without requiring the caller's access token to still be valid.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if err := h.store.RevokeRefresh(c.Request.Context(), claims.ID); err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetMe returns the authenticated user.
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, _ := c.Get("user_id")
	uid := userID.(uuid.UUID)

	user, err := h.userRepo.GetByID(uid)
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "user not found")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) issueTokens(c *gin.Context, status int, user *models.User) {
	access, _, err := h.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to generate access token")
		return
	}

	refresh, jti, err := h.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to generate refresh token")
		return
	}

	if err := h.store.AddRefresh(c.Request.Context(), jti, user.ID, h.jwtService.RefreshTTL()); err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "session store unavailable")
		return
	}

	c.JSON(status, models.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		User:         *user,
	})
}
