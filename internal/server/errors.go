package server

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/store/postgres"
	"github.com/gin-gonic/gin"
)

const (
	codeTokenNotValid   = "token_not_valid"
	codeNoActiveAccount = "no_active_account"
)

// errorBody is the {"detail", "code"} shape used for every non-field error.
type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// fieldErrors maps a field name to its messages, e.g.
// {"username": ["This field is required."]}.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

var (
	errForbidden = errors.New("forbidden")
	errBadPage   = errors.New("invalid page")
)

// writeError maps a handler error onto a status code and body.
func (s *Server) writeError(c *gin.Context, err error) {
	var fe fieldErrors
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, fe)
	case errors.Is(err, jwtauth.ErrLoginRateLimited),
		errors.Is(err, jwtauth.ErrRefreshRateLimited):
		c.JSON(http.StatusTooManyRequests, errorBody{Detail: "Request was throttled."})
	case errors.Is(err, jwtauth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorBody{Detail: "No active account found with the given credentials", Code: codeNoActiveAccount})
	case errors.Is(err, jwtauth.ErrAccountInactive):
		c.JSON(http.StatusUnauthorized, errorBody{Detail: "No active account found for the given token.", Code: codeNoActiveAccount})
	case errors.Is(err, jwtauth.ErrTokenBlacklisted):
		c.JSON(http.StatusUnauthorized, errorBody{Detail: "Token is blacklisted", Code: codeTokenNotValid})
	case errors.Is(err, jwtauth.ErrRefreshReuse),
		errors.Is(err, jwtauth.ErrRefreshInvalid),
		errors.Is(err, jwtauth.ErrTokenInvalid):
		c.JSON(http.StatusUnauthorized, errorBody{Detail: "Token is invalid or expired", Code: codeTokenNotValid})
	case errors.Is(err, jwtauth.ErrDuplicateUser):
		c.JSON(http.StatusConflict, fieldErrors{"username": {"A user with that username already exists."}})
	case errors.Is(err, errForbidden):
		c.JSON(http.StatusForbidden, errorBody{Detail: "You do not have permission to perform this action."})
	case errors.Is(err, errBadPage):
		c.JSON(http.StatusNotFound, errorBody{Detail: "Invalid page."})
	case errors.Is(err, postgres.ErrNotFound), errors.Is(err, jwtauth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, errorBody{Detail: "Not found."})
	case errors.Is(err, jwtauth.ErrBackendUnavailable):
		s.log.Errorf("backend unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, errorBody{Detail: "Service temporarily unavailable."})
	default:
		s.log.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody{Detail: "A server error occurred."})
	}
}

func (f fieldErrors) Error() string {
	return "invalid input"
}

// orNil returns f as an error, or nil when it holds no messages.
func (f fieldErrors) orNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}
