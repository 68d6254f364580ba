package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/jwtauth"
)

// Verifier validates access tokens. *jwtauth.Engine implements it.
type Verifier interface {
	VerifyWithMode(ctx context.Context, token string, mode jwtauth.ValidationMode) (*jwtauth.AuthResult, error)
}

const (
	detailNotProvided = "Authentication credentials were not provided."
	detailBadHeader   = "Authorization header must contain two space-delimited values"
	detailNotValid    = "Given token not valid for any token type"
	detailUnavailable = "Service temporarily unavailable."

	codeBadHeader = "bad_authorization_header"
	codeNotValid  = "token_not_valid"
)

// Failure is the JSON body written when a guard rejects a request.
type Failure struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

var errNoCredentials = errors.New("no credentials")

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*jwtauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*jwtauth.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx the way Guard does.
func WithAuthResult(ctx context.Context, res *jwtauth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard rejects requests without a valid Bearer access token.
func Guard(verifier Verifier, mode jwtauth.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, fail := authenticate(r.Context(), verifier, r.Header.Get("Authorization"), mode)
			if fail != nil {
				writeFailure(w, fail)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// RequireStateless checks signature and expiry only.
func RequireStateless(verifier Verifier) func(http.Handler) http.Handler {
	return Guard(verifier, jwtauth.ModeStateless)
}

// authenticate returns either a result or the failure to write.
func authenticate(ctx context.Context, verifier Verifier, header string, mode jwtauth.ValidationMode) (*jwtauth.AuthResult, *Failure) {
	if verifier == nil {
		return nil, &Failure{Status: http.StatusUnauthorized, Detail: detailNotProvided}
	}

	token, err := bearerToken(header)
	if err != nil {
		if errors.Is(err, errNoCredentials) {
			return nil, &Failure{Status: http.StatusUnauthorized, Detail: detailNotProvided}
		}
		return nil, &Failure{Status: http.StatusUnauthorized, Detail: detailBadHeader, Code: codeBadHeader}
	}

	res, err := verifier.VerifyWithMode(ctx, token, mode)
	if err != nil {
		if errors.Is(err, jwtauth.ErrBackendUnavailable) {
			return nil, &Failure{Status: http.StatusServiceUnavailable, Detail: detailUnavailable}
		}
		return nil, &Failure{Status: http.StatusUnauthorized, Detail: detailNotValid, Code: codeNotValid}
	}
	return res, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// value. Headers of another scheme count as no credentials.
func bearerToken(value string) (string, error) {
	parts := strings.Fields(value)
	if len(parts) == 0 || parts[0] != "Bearer" {
		return "", errNoCredentials
	}
	if len(parts) != 2 {
		return "", errors.New(detailBadHeader)
	}
	return parts[1], nil
}

func writeFailure(w http.ResponseWriter, f *Failure) {
	if f.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	_ = json.NewEncoder(w).Encode(f)
}
