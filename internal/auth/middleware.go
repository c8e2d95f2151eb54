package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	oidc "github.com/coreos/go-oidc"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys.
const (
	sessionUserKey = "user_id"
	ContextUserKey = "user_id"
)

// InitOIDC builds a token verifier for the optional bearer mode. Returns
// nil when no issuer is configured.
func InitOIDC(issuerURL string) (*oidc.IDTokenVerifier, error) {
	if issuerURL == "" {
		return nil, nil
	}
	provider, err := oidc.NewProvider(context.Background(), issuerURL)
	if err != nil {
		return nil, err
	}
	log.Printf("[Auth] OIDC verifier initialized for %s", issuerURL)
	return provider.Verifier(&oidc.Config{SkipClientIDCheck: true}), nil
}

// LoginSession records the user in the session cookie.
func LoginSession(c *gin.Context, userID string) error {
	session := sessions.Default(c)
	session.Set(sessionUserKey, userID)
	return session.Save()
}

// LogoutSession clears the session cookie.
func LogoutSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{MaxAge: -1, Path: "/"})
	return session.Save()
}

// SessionUserID reads the logged-in user from the session, if any.
func SessionUserID(c *gin.Context) (string, bool) {
	session := sessions.Default(c)
	v := session.Get(sessionUserKey)
	id, ok := v.(string)
	return id, ok && id != ""
}

// RequireAuth resolves the acting user: the session cookie first, then —
// when a verifier is configured — an OIDC bearer token. Unauthenticated
// requests get 401 and never reach the handler.
func RequireAuth(verifier *oidc.IDTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := SessionUserID(c); ok {
			c.Set(ContextUserKey, id)
			c.Next()
			return
		}

		if verifier != nil {
			if id, ok := bearerUserID(c, verifier); ok {
				c.Set(ContextUserKey, id)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"errors":  []gin.H{{"msg": "Authentication required"}},
		})
	}
}

func bearerUserID(c *gin.Context, verifier *oidc.IDTokenVerifier) (string, bool) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == "" || token == header {
		return "", false
	}

	idToken, err := verifier.Verify(c.Request.Context(), token)
	if err != nil {
		log.Printf("[Auth] bearer verify failed: %v", err)
		return "", false
	}
	return idToken.Subject, true
}

// UserID pulls the acting user set by RequireAuth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
