package webserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTMiddleware rejects requests without a valid bearer token and stores the
// caller's user id under "uid".
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "authentication required"})
			return
		}
		tok, err := jwt.Parse(h[7:], func(t *jwt.Token) (interface{}, error) { return secret, nil })
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid authentication"})
			return
		}
		uid, _ := tok.Claims.(jwt.MapClaims)["uid"].(string)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid authentication"})
			return
		}
		c.Set("uid", uid)
		c.Next()
	}
}

// OptionalJWTMiddleware annotates the request with "uid" when a valid token
// is present but lets anonymous readers through. Used by public read surfaces
// that personalize vote state for signed-in viewers.
func OptionalJWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			tok, err := jwt.Parse(h[7:], func(t *jwt.Token) (interface{}, error) { return secret, nil })
			if err == nil && tok.Valid {
				if uid, _ := tok.Claims.(jwt.MapClaims)["uid"].(string); uid != "" {
					c.Set("uid", uid)
				}
			}
		}
		c.Next()
	}
}

func issueJWT(uid string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": uid,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(secret)
}
