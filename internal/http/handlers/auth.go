package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/http/middlewares"
	"github.com/geocoder89/happenings/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const refreshCookieName = "refresh_token"

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.User) error
	UpdateName(ctx context.Context, id, name string) (user.User, error)
	Delete(ctx context.Context, id string) error
}

// TokenIssuer signs and verifies the access and refresh tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string) (string, error)
	GenerateRefreshToken(userID, email, role string) (raw string, jti string, expiresAt time.Time, err error)
	VerifyRefreshToken(tokenStr string) (*auth.Claims, error)
	HashRefreshToken(raw string) string
}

type AuthHandler struct {
	users        UserStore
	jwt          TokenIssuer
	sessions     auth.SessionStore
	secureCookie bool
	log          *slog.Logger
	now          func() time.Time
}

func NewAuthHandler(users UserStore, jwt TokenIssuer, sessions auth.SessionStore, secureCookie bool, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:        users,
		jwt:          jwt,
		sessions:     sessions,
		secureCookie: secureCookie,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=80"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required,min=1,max=80"`
}

// SignUp handles POST /auth/signup. New accounts are plain users; trust and
// admin rights are granted out of band.
func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	now := h.now()
	u := user.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         user.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.Create(cctx, u); err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.issue(cctx, ctx, u, http.StatusCreated)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			h.log.ErrorContext(cctx, "login lookup failed", "err", err)
		}
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if err := security.CheckPassword(u.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	h.issue(cctx, ctx, u, http.StatusOK)
}

// issue starts a new session and answers with an access token.
func (h *AuthHandler) issue(cctx context.Context, ctx *gin.Context, u user.User, status int) {
	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	raw, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token")
		return
	}

	err = h.sessions.Create(cctx, auth.Session{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.log.ErrorContext(cctx, "create session failed", "err", err)
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, raw, expiresAt)
	ctx.JSON(status, gin.H{
		"accessToken": accessToken,
		"user":        u,
	})
}

// Refresh handles POST /auth/refresh. The presented refresh token is
// revoked and replaced in one step; a reused token is rejected.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		RespondUnauthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	err = h.sessions.Rotate(cctx, claims.JTI, h.jwt.HashRefreshToken(raw), auth.Session{
		ID:        newJTI,
		UserID:    claims.UserID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: h.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSessionExpired):
			RespondUnauthorized(ctx, "expired_refresh", "Refresh token expired.")
		case errors.Is(err, auth.ErrSessionNotFound),
			errors.Is(err, auth.ErrSessionRevoked),
			errors.Is(err, auth.ErrSessionMismatch):
			RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		default:
			h.log.ErrorContext(cctx, "rotate session failed", "err", err)
			RespondInternal(ctx, "Could not refresh session")
		}
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)
	ctx.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

// Logout handles POST /auth/logout. It always clears the cookie.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	defer func() {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
	}()

	raw, err := ctx.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	if err := h.sessions.Revoke(cctx, claims.JTI); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		h.log.WarnContext(cctx, "revoke session failed", "err", err)
	}
}

// Me handles GET /me.
func (h *AuthHandler) Me(ctx *gin.Context) {
	uid, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not fetch user")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// UpdateMe handles PUT /me. Only the display name can change.
func (h *AuthHandler) UpdateMe(ctx *gin.Context) {
	var req UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		RespondBadRequest(ctx, "Name must not be blank", nil)
		return
	}
	uid, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	u, err := h.users.UpdateName(cctx, uid, name)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not update user")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user": u})
}

// DeleteMe handles DELETE /me. Sessions are revoked before the account is
// removed, and the refresh cookie is cleared.
func (h *AuthHandler) DeleteMe(ctx *gin.Context) {
	uid, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	if err := h.sessions.RevokeAll(cctx, uid); err != nil {
		h.log.ErrorContext(cctx, "revoke sessions failed", "user_id", uid, "err", err)
		RespondInternal(ctx, "Could not delete account")
		return
	}
	if err := h.users.Delete(cctx, uid); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.log.ErrorContext(cctx, "delete user failed", "user_id", uid, "err", err)
		RespondInternal(ctx, "Could not delete account")
		return
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(h.now()).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, raw, maxAge, "/auth", "", h.secureCookie, true)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(refreshCookieName, "", -1, "/auth", "", h.secureCookie, true)
}
