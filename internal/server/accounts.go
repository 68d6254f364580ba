package server

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/jwtauth/internal/store/postgres"
	"github.com/MrEthical07/jwtauth/password"
	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (r signupRequest) validate() error {
	fe := fieldErrors{}
	if strings.TrimSpace(r.Username) == "" {
		fe.add("username", msgRequired)
	} else if len(r.Username) > 150 {
		fe.add("username", "Ensure this field has no more than 150 characters.")
	}
	if r.Email == "" {
		fe.add("email", msgRequired)
	} else if !strings.Contains(r.Email, "@") {
		fe.add("email", "Enter a valid email address.")
	}
	if r.Password == "" {
		fe.add("password", msgRequired)
	} else if len(r.Password) < password.MinLength {
		fe.add("password", "This password is too short.")
	}
	return fe.orNil()
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(c, err)
		return
	}

	hash, err := s.tokens.HashPassword(req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	rec, err := s.users.Create(c.Request.Context(), postgres.NewUser{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse{ID: rec.UserID, Username: rec.Username, Email: rec.Email})
}
