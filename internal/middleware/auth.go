package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hospital-followup-server/internal/config"
	"hospital-followup-server/internal/models"
	"hospital-followup-server/internal/store"
	"hospital-followup-server/internal/utils"
)

// Context keys set by the auth middleware.
const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
	ctxUserRole  = "userRole"
	ctxToken     = "authToken"
)

// Authenticator verifies bearer tokens for protected routes.
type Authenticator struct {
	cfg      *config.Config
	issuer   *utils.TokenIssuer
	sessions store.AccountStore
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator. sessions is only consulted when
// AUTH_REQUIRE_SESSION is set.
func NewAuthenticator(cfg *config.Config, issuer *utils.TokenIssuer, sessions store.AccountStore) *Authenticator {
	return &Authenticator{cfg: cfg, issuer: issuer, sessions: sessions, now: time.Now}
}

// RequireAuth rejects requests without a valid token. In unauthenticated
// mode a request without any token acts as the fallback owner.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return a.handler(a.cfg.Unauthenticated())
}

// OptionalAuth verifies a token when one is sent. Without a token the
// request proceeds anonymously, or as the fallback owner in unauthenticated mode.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if bearerToken(c) == "" {
			if a.cfg.Unauthenticated() {
				a.setFallback(c)
			}
			c.Next()
			return
		}
		a.handler(false)(c)
	}
}

func (a *Authenticator) handler(allowFallback bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if allowFallback {
				a.setFallback(c)
				c.Next()
				return
			}
			utils.Unauthorized(c, "Access denied. No token provided.")
			return
		}

		claims, err := a.verify(c, token)
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("token rejected")
			utils.Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func (a *Authenticator) verify(c *gin.Context, token string) (*utils.Claims, error) {
	claims, err := a.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	if !a.cfg.AuthRequireSession {
		return claims, nil
	}

	session, err := a.sessions.FindSession(c.Request.Context(), token)
	if err != nil {
		return nil, err
	}
	if session.AccountID != claims.UserID || session.Expired(a.now()) {
		return nil, utils.ErrInvalidToken
	}
	return claims, nil
}

func (a *Authenticator) setFallback(c *gin.Context) {
	c.Set(ctxUserID, a.cfg.FallbackOwnerID)
	c.Set(ctxUserRole, models.RoleManager)
}

func bearerToken(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// GetUserIDFromContext returns the caller's account id.
func GetUserIDFromContext(c *gin.Context) (uint, bool) {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	uid, ok := id.(uint)
	return uid, ok && uid != 0
}

// GetUserRoleFromContext returns the caller's role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	role, ok := c.Get(ctxUserRole)
	if !ok {
		return "", false
	}
	r, ok := role.(models.Role)
	return r, ok
}

// GetTokenFromContext returns the verified bearer token, if the caller sent one.
func GetTokenFromContext(c *gin.Context) (string, bool) {
	token, ok := c.Get(ctxToken)
	if !ok {
		return "", false
	}
	s, ok := token.(string)
	return s, ok
}
