package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestSetUsesConfiguredCookie(t *testing.T) {
	m := NewManager(config.Config{
		AuthCookieName:   "clinic_sid",
		AuthCookieDomain: "clinica.test",
		AuthCookieSecure: true,
	}, clock.NewFakeClock(now))
	c, w := newContext()

	m.Set(c, "token-1", now.Add(2*time.Hour))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "clinic_sid", cookies[0].Name)
	assert.Equal(t, "token-1", cookies[0].Value)
	assert.Equal(t, 7200, cookies[0].MaxAge)
	assert.Equal(t, "clinica.test", cookies[0].Domain)
	assert.Equal(t, "/", cookies[0].Path)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestSetExpiredSessionClearsCookie(t *testing.T) {
	m := NewManager(config.Config{}, clock.NewFakeClock(now))
	c, w := newContext()

	m.Set(c, "token-1", now.Add(-time.Minute))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestReadTokenTrimsAndRejectsBlank(t *testing.T) {
	m := NewManager(config.Config{}, clock.NewFakeClock(now))

	c, _ := newContext()
	c.Request.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "abc"})
	token, ok := m.ReadToken(c)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	c, _ = newContext()
	c.Request.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: " "})
	_, ok = m.ReadToken(c)
	assert.False(t, ok)
}
