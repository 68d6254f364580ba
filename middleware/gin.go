package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/jwtauth"
	"github.com/gin-gonic/gin"
)

const ginAuthKey = "jwtauth.result"

// GinGuard aborts the request unless it carries a valid access token. It
// uses the engine's default validation mode.
func GinGuard(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, fail := authenticate(c.Request.Context(), verifier, c.GetHeader("Authorization"), jwtauth.ModeInherit)
		if fail != nil {
			abortGin(c, fail)
			return
		}
		setGinResult(c, res)
		c.Next()
	}
}

// GinOptional lets anonymous requests through. A request that does present
// credentials must present valid ones.
func GinOptional(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := bearerToken(c.GetHeader("Authorization")); errors.Is(err, errNoCredentials) {
			c.Next()
			return
		}
		res, fail := authenticate(c.Request.Context(), verifier, c.GetHeader("Authorization"), jwtauth.ModeInherit)
		if fail != nil {
			abortGin(c, fail)
			return
		}
		setGinResult(c, res)
		c.Next()
	}
}

// AuthResultFromGin returns the result stored by GinGuard or GinOptional.
func AuthResultFromGin(c *gin.Context) (*jwtauth.AuthResult, bool) {
	v, ok := c.Get(ginAuthKey)
	if !ok {
		return nil, false
	}
	res, ok := v.(*jwtauth.AuthResult)
	return res, ok
}

func setGinResult(c *gin.Context, res *jwtauth.AuthResult) {
	c.Set(ginAuthKey, res)
	c.Request = c.Request.WithContext(WithAuthResult(c.Request.Context(), res))
}

func abortGin(c *gin.Context, f *Failure) {
	if f.Status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
	}
	c.AbortWithStatusJSON(f.Status, f)
}
