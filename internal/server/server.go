// Package server is the gin HTTP surface of jwtauthd: token endpoints,
// signup, the posts API and operational routes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/logging"
	"github.com/MrEthical07/jwtauth/internal/store/postgres"
	"github.com/MrEthical07/jwtauth/middleware"
	"github.com/gin-gonic/gin"
)

// TokenService is the subset of *jwtauth.Engine the handlers use.
type TokenService interface {
	middleware.Verifier
	ObtainPair(ctx context.Context, username, password string) (*jwtauth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*jwtauth.TokenPair, error)
	VerifyToken(ctx context.Context, token string) (*jwtauth.AuthResult, error)
	Blacklist(ctx context.Context, token string) error
	HashPassword(plain string) (string, error)
}

// UserStore creates and reads accounts.
type UserStore interface {
	Create(ctx context.Context, u postgres.NewUser) (jwtauth.UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (jwtauth.UserRecord, error)
}

// PostStore persists posts.
type PostStore interface {
	Create(ctx context.Context, p *postgres.Post) (*postgres.Post, error)
	Get(ctx context.Context, id int64) (*postgres.Post, error)
	Update(ctx context.Context, id int64, title, content string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f postgres.PostFilter) ([]postgres.Post, int, error)
}

// Options configures the HTTP listener.
type Options struct {
	Addr            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

type Server struct {
	tokens TokenService
	users  UserStore
	posts  PostStore
	log    *logging.Logger
	opts   Options
	router *gin.Engine
}

func New(tokens TokenService, users UserStore, posts PostStore, log *logging.Logger, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	s := &Server{
		tokens: tokens,
		users:  users,
		posts:  posts,
		log:    log.WithComponent("http"),
		opts:   opts,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(logging.Recovery(s.log), logging.RequestLogging(s.log))

	r.GET("/healthz", s.healthz)
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	r.POST("/api/token/", s.obtainToken)
	r.POST("/api/token/refresh/", s.refreshToken)
	r.POST("/api/token/verify/", s.verifyToken)
	r.POST("/api/token/blacklist/", s.blacklistToken)

	r.POST("/auth/signup/", s.signup)
	r.GET("/homepage", s.homepage)

	anon := r.Group("", middleware.GinOptional(s.tokens))
	anon.GET("/posts", s.listPosts)
	anon.GET("/posts/:id", s.getPost)

	authed := r.Group("", middleware.GinGuard(s.tokens))
	authed.POST("/posts", s.createPost)
	authed.PUT("/posts/:id", s.updatePost)
	authed.DELETE("/posts/:id", s.deletePost)
	authed.GET("/current_user/", s.currentUser)
	authed.GET("/list_post/", s.listPostsForAuthor)

	return r
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Infof("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) homepage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello, World!"})
}
