package server

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/store/postgres"
	"github.com/MrEthical07/jwtauth/middleware"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 3
	maxPageSize     = 100
	maxTitleLength  = 50
)

type postResponse struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Author  int64     `json:"author"`
	Created time.Time `json:"created"`
}

func toPostResponse(p postgres.Post) postResponse {
	return postResponse{ID: p.ID, Title: p.Title, Content: p.Content, Author: p.AuthorID, Created: p.Created}
}

func toPostResponses(posts []postgres.Post) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p))
	}
	return out
}

type pageResponse struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []postResponse `json:"results"`
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r postRequest) validate() error {
	fe := fieldErrors{}
	if r.Title == "" {
		fe.add("title", msgRequired)
	} else if utf8.RuneCountInString(r.Title) > maxTitleLength {
		fe.add("title", "Ensure this field has no more than 50 characters.")
	}
	if r.Content == "" {
		fe.add("content", msgRequired)
	}
	return fe.orNil()
}

// caller returns the authenticated user id. GinGuard guarantees it on
// authed routes.
func caller(c *gin.Context) (*jwtauth.AuthResult, int64, bool) {
	res, ok := middleware.AuthResultFromGin(c)
	if !ok {
		return nil, 0, false
	}
	id, err := strconv.ParseInt(res.UserID, 10, 64)
	if err != nil {
		return nil, 0, false
	}
	return res, id, true
}

func postID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, postgres.ErrNotFound
	}
	return id, nil
}

func (s *Server) listPosts(c *gin.Context) {
	page, size, err := pagination(c.Request.URL.Query())
	if err != nil {
		s.writeError(c, err)
		return
	}

	posts, total, err := s.posts.List(c.Request.Context(), postgres.PostFilter{
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if page > 1 && (page-1)*size >= total {
		s.writeError(c, errBadPage)
		return
	}

	resp := pageResponse{Count: total, Results: toPostResponses(posts)}
	if page*size < total {
		resp.Next = pageLink(c, page+1)
	}
	if page > 1 {
		resp.Previous = pageLink(c, page-1)
	}
	c.JSON(http.StatusOK, resp)
}

// pagination reads page and page_size. A page_size above the maximum is
// clamped; a malformed page is an error.
func pagination(q url.Values) (int, int, error) {
	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, 0, errBadPage
		}
		page = n
	}
	size := defaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = min(n, maxPageSize)
		}
	}
	// the row offset (page-1)*size must fit in an int
	if page > math.MaxInt/size {
		return 0, 0, errBadPage
	}
	return page, size, nil
}

func pageLink(c *gin.Context, page int) *string {
	u := *c.Request.URL
	u.Host = c.Request.Host
	u.Scheme = "http"
	if c.Request.TLS != nil {
		u.Scheme = "https"
	}
	q := u.Query()
	if page == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}

func (s *Server) getPost(c *gin.Context) {
	id, err := postID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	p, err := s.posts.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPostResponse(*p))
}

func (s *Server) createPost(c *gin.Context) {
	_, userID, ok := caller(c)
	if !ok {
		s.writeError(c, jwtauth.ErrTokenInvalid)
		return
	}
	var req postRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(c, err)
		return
	}

	p, err := s.posts.Create(c.Request.Context(), &postgres.Post{
		Title:    req.Title,
		Content:  req.Content,
		AuthorID: userID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPostResponse(*p))
}

// ownPost loads post id and checks that the caller wrote it.
func (s *Server) ownPost(c *gin.Context) (*postgres.Post, error) {
	_, userID, ok := caller(c)
	if !ok {
		return nil, jwtauth.ErrTokenInvalid
	}
	id, err := postID(c)
	if err != nil {
		return nil, err
	}
	p, err := s.posts.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != userID {
		return nil, errForbidden
	}
	return p, nil
}

func (s *Server) updatePost(c *gin.Context) {
	p, err := s.ownPost(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req postRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := req.validate(); err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.posts.Update(c.Request.Context(), p.ID, req.Title, req.Content); err != nil {
		s.writeError(c, err)
		return
	}
	p.Title, p.Content = req.Title, req.Content
	c.JSON(http.StatusOK, toPostResponse(*p))
}

func (s *Server) deletePost(c *gin.Context) {
	p, err := s.ownPost(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.posts.Delete(c.Request.Context(), p.ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type currentUserResponse struct {
	userResponse
	Posts []postResponse `json:"posts"`
}

func (s *Server) currentUser(c *gin.Context) {
	res, userID, ok := caller(c)
	if !ok {
		s.writeError(c, jwtauth.ErrTokenInvalid)
		return
	}
	u, err := s.users.GetUserByID(c.Request.Context(), res.UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	posts, _, err := s.posts.List(c.Request.Context(), postgres.PostFilter{AuthorID: userID})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, currentUserResponse{
		userResponse: userResponse{ID: u.UserID, Username: u.Username, Email: u.Email},
		Posts:        toPostResponses(posts),
	})
}

// listPostsForAuthor filters by ?username= and returns every post when the
// filter is absent.
func (s *Server) listPostsForAuthor(c *gin.Context) {
	posts, _, err := s.posts.List(c.Request.Context(), postgres.PostFilter{
		AuthorUsername: c.Query("username"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPostResponses(posts))
}
