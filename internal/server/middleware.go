package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/dentaldesk/internal/auth/domain"
	obscontext "github.com/smallbiznis/dentaldesk/internal/observability/context"
	"github.com/smallbiznis/dentaldesk/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextUserIDKey    = "user_id"
	contextRoleKey      = "role"
	contextPrincipalKey = "principal"
	contextPatientIDKey = "patient_id"
)

// AuthRequired guards JSON endpoints. Callers without a valid session get 401.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authenticate(c); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// WebAuthRequired guards the SPA pages. Browsers without a valid session are
// sent to the login page and come back afterwards.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authenticate(c); err != nil {
			if !isBrowserNavigation(c) {
				AbortWithError(c, err)
				return
			}
			target := "/login"
			if next := c.Request.URL.RequestURI(); next != "" && next != "/" {
				target += "?next=" + url.QueryEscape(next)
			}
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) redirectIfLoggedIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			c.Next()
			return
		}
		if _, err := s.authsvc.Authenticate(c.Request.Context(), token); err != nil {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, "/")
		c.Abort()
	}
}

func (s *Server) authenticate(c *gin.Context) error {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		return ErrUnauthorized
	}

	principal, err := s.authsvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		return err
	}

	userID := principal.User.ID.String()
	role := string(principal.User.Role)

	c.Set(contextUserIDKey, userID)
	c.Set(contextRoleKey, role)
	c.Set(contextPrincipalKey, principal)

	c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), userID, role))
	return nil
}

// LoginRateLimit throttles login attempts per client address.
func (s *Server) LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.loginLimiter == nil {
			c.Next()
			return
		}

		res := s.loginLimiter.Allow(c.Request.Context(), c.ClientIP())
		if res == nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.ResetTime.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
		}

		if !res.Allowed {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "login")
			logger.FromContext(c.Request.Context()).Warn("login rate limited",
				zap.String("client_ip", c.ClientIP()),
				zap.Int("retry_after_seconds", retryAfter),
			)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func (s *Server) principalFromContext(c *gin.Context) (*authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*authdomain.Principal)
	if !ok || principal == nil || principal.User == nil {
		return nil, false
	}
	return principal, true
}

// setPatientLogField tags the request log with the patient it touched.
func setPatientLogField(c *gin.Context, patientID string) {
	if strings.TrimSpace(patientID) == "" {
		return
	}
	c.Set(contextPatientIDKey, patientID)
}

func isBrowserNavigation(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
