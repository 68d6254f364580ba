package server

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/jwtauth"
	"github.com/gin-gonic/gin"
)

const msgRequired = "This field is required."

// bindJSON decodes the body into dst. It writes a 400 and returns false on
// malformed JSON.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Detail: "JSON parse error - " + err.Error(), Code: "parse_error"})
		return false
	}
	return true
}

type obtainRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

func (s *Server) obtainToken(c *gin.Context) {
	var req obtainRequest
	if !bindJSON(c, &req) {
		return
	}
	fe := fieldErrors{}
	if req.Username == "" {
		fe.add("username", msgRequired)
	}
	if req.Password == "" {
		fe.add("password", msgRequired)
	}
	if err := fe.orNil(); err != nil {
		s.writeError(c, err)
		return
	}

	ctx := jwtauth.WithClientIP(c.Request.Context(), c.ClientIP())
	pair, err := s.tokens.ObtainPair(ctx, req.Username, req.Password)
	if err != nil {
		// an inactive account reads the same as bad credentials on login
		if errors.Is(err, jwtauth.ErrAccountInactive) {
			err = jwtauth.ErrInvalidCredentials
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (s *Server) refreshToken(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Refresh == "" {
		s.writeError(c, fieldErrors{"refresh": {msgRequired}})
		return
	}

	pair, err := s.tokens.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Access: pair.Access, Refresh: pair.Refresh})
}

type verifyRequest struct {
	Token string `json:"token"`
}

// verifyToken accepts either token type and rejects blacklisted ones.
func (s *Server) verifyToken(c *gin.Context) {
	var req verifyRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Token == "" {
		s.writeError(c, fieldErrors{"token": {msgRequired}})
		return
	}

	if _, err := s.tokens.VerifyToken(c.Request.Context(), req.Token); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// blacklistToken is logout: it revokes a refresh token until its expiry.
func (s *Server) blacklistToken(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Refresh == "" {
		s.writeError(c, fieldErrors{"refresh": {msgRequired}})
		return
	}

	res, err := s.tokens.VerifyToken(c.Request.Context(), req.Refresh)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if res.TokenType != jwtauth.TokenRefresh {
		s.writeError(c, errors.Join(jwtauth.ErrTokenInvalid, errors.New("token has wrong type")))
		return
	}
	if err := s.tokens.Blacklist(c.Request.Context(), req.Refresh); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
