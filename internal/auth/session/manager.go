package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
)

const (
	DefaultCookieName = "dentaldesk_sid"

	cookiePath = "/"
)

// Manager reads and writes the staff session cookie. The cookie only carries
// the opaque token; the session itself lives in the sessions table.
type Manager struct {
	cookieName string
	domain     string
	secure     bool
	clock      clock.Clock
}

func NewManager(cfg config.Config, clk clock.Clock) *Manager {
	name := strings.TrimSpace(cfg.AuthCookieName)
	if name == "" {
		name = DefaultCookieName
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		cookieName: name,
		domain:     cfg.AuthCookieDomain,
		secure:     cfg.AuthCookieSecure,
		clock:      clk,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// Set issues the cookie until expiresAt. An already expired session clears it.
func (m *Manager) Set(c *gin.Context, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(m.clock.Now()).Seconds())
	if maxAge <= 0 {
		m.Clear(c)
		return
	}
	m.write(c, value, maxAge)
}

func (m *Manager) Clear(c *gin.Context) {
	m.write(c, "", -1)
}

func (m *Manager) write(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, cookiePath, m.domain, m.secure, true)
}
