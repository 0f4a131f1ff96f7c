package http

import (
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const sessionKey = "sid"

// sessionID reads the signed session cookie. Anything missing or malformed
// is "no session".
func sessionID(c *gin.Context) (domain.SessionID, bool) {
	raw := sessions.Default(c).Get(sessionKey)
	v, ok := raw.(uint32)
	if !ok || v == 0 {
		return domain.NoSession, false
	}
	return domain.SessionID(v), true
}

func bindSession(c *gin.Context, id domain.SessionID) error {
	s := sessions.Default(c)
	s.Set(sessionKey, uint32(id))
	return s.Save()
}

func clearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Delete(sessionKey)
	return s.Save()
}
