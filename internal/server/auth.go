package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	"github.com/smallbiznis/dentaldesk/internal/auth/password"
	obscontext "github.com/smallbiznis/dentaldesk/internal/observability/context"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) || errors.Is(err, authdomain.ErrUserInactive) {
			s.recordAudit(c, "user.login_failed", "user", "", map[string]any{
				"email":  email,
				"reason": err.Error(),
			})
		}
		AbortWithError(c, err)
		return
	}

	if s.loginLimiter != nil {
		s.loginLimiter.Reset(c.Request.Context(), c.ClientIP())
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	if result.Session != nil {
		ctx := obscontext.WithActor(c.Request.Context(), result.Session.UserID, string(result.Session.Role))
		c.Request = c.Request.WithContext(ctx)
		s.recordAudit(c, "user.login", "user", result.Session.UserID, map[string]any{
			"email": email,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": result.Session})
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		if err := s.authsvc.Logout(c.Request.Context(), token); err != nil && !isSessionError(err) {
			AbortWithError(c, err)
			return
		}
	}
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	principal, ok := s.principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessionView(principal)})
}

func (s *Server) ChangePassword(c *gin.Context) {
	principal, ok := s.principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if req.CurrentPassword == "" {
		AbortWithError(c, newValidationError("current_password", "required", "current password is required"))
		return
	}
	if strings.TrimSpace(req.NewPassword) == "" {
		AbortWithError(c, newValidationError("new_password", "required", "new password is required"))
		return
	}
	if req.CurrentPassword == req.NewPassword {
		AbortWithError(c, newValidationError("new_password", "must_differ", "new password must be different"))
		return
	}

	hash := principal.User.PasswordHash
	if hash == nil || !password.Verify(req.CurrentPassword, *hash) {
		AbortWithError(c, newValidationError("current_password", "invalid_current_password", "current password is incorrect"))
		return
	}

	userID := principal.User.ID.String()
	if err := s.authsvc.ChangePassword(c.Request.Context(), userID, req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "user.password_changed", "user", userID, nil)
	c.Status(http.StatusNoContent)
}

func sessionView(p *authdomain.Principal) authdomain.SessionView {
	view := authdomain.SessionView{
		UserID:        p.User.ID.String(),
		Email:         p.User.Email,
		DisplayName:   p.User.DisplayName,
		Role:          p.User.Role,
		PasswordState: p.User.PasswordState(),
		LastLoginAt:   p.User.LastLoginAt,
	}
	if p.Session != nil {
		view.ExpiresAt = p.Session.ExpiresAt
	}
	return view
}

func isSessionError(err error) bool {
	return errors.Is(err, authdomain.ErrSessionNotFound) ||
		errors.Is(err, authdomain.ErrSessionExpired) ||
		errors.Is(err, authdomain.ErrSessionRevoked) ||
		errors.Is(err, authdomain.ErrInvalidSession)
}
