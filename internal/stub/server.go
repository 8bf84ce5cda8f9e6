// Package stub is an in-memory imitation of the ChatFlow GraphQL API for
// local development and tests. It serves POST /graphql, dispatching on
// operationName, and GET /graphql as a graphql-transport-ws endpoint.
package stub

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UnauthorizedMode selects how a rejected token is reported.
type UnauthorizedMode int

const (
	// HTTP401 answers with status 401.
	HTTP401 UnauthorizedMode = iota
	// GraphQLError answers 200 with an "Unauthorized" GraphQL error.
	GraphQLError
)

const defaultAccessTTL = 15 * time.Minute

var (
	errUnauthorized = errors.New("Unauthorized")
	errForbidden    = errors.New("Forbidden resource")
)

type call struct {
	user *user
	vars map[string]any
}

type operation struct {
	field  string
	public bool
	fn     func(*Server, *call) (any, error)
}

// Server is the stub API. Create it with New and mount Handler.
type Server struct {
	log       *logrus.Entry
	secret    []byte
	accessTTL time.Duration
	router    *gin.Engine
	hub       *Hub
	ops       map[string]operation

	mu            sync.Mutex
	nextID        int
	users         map[int]*user
	rooms         map[int]*room
	messages      []*message
	notifications map[int]*notification
	joins         map[int]*joinRequest
	workspaces    map[int]*workspace
	invitations   map[int]*invitation
	refreshTokens map[string]int
	resetTokens   map[string]int
	generation    int
	calls         map[string]int
	initTokens    []string

	refreshFailure   bool
	refreshDelay     time.Duration
	unauthorizedMode UnauthorizedMode
	refreshCalls     atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger entry.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) { s.log = log }
}

// WithSecret sets the HS256 signing key.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithAccessTTL sets the access token lifetime.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// New returns a running stub. Call Close to stop its hub.
func New(opts ...Option) *Server {
	s := &Server{
		log:           logrus.NewEntry(logrus.StandardLogger()),
		secret:        []byte("chatflow-stub-secret"),
		accessTTL:     defaultAccessTTL,
		users:         make(map[int]*user),
		rooms:         make(map[int]*room),
		notifications: make(map[int]*notification),
		joins:         make(map[int]*joinRequest),
		workspaces:    make(map[int]*workspace),
		invitations:   make(map[int]*invitation),
		refreshTokens: make(map[string]int),
		resetTokens:   make(map[string]int),
		calls:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ops = operations()
	s.hub = NewHub(s.log)
	go s.hub.Run()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.POST("/graphql", s.serveGraphQL)
	r.GET("/graphql", s.serveWebSocket)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Close stops the hub and disconnects every socket.
func (s *Server) Close() { s.hub.Stop() }

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func gqlErrors(err error) gin.H {
	return gin.H{"data": nil, "errors": []gin.H{{"message": err.Error()}}}
}

func (s *Server) serveGraphQL(c *gin.Context) {
	var req gqlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gqlErrors(fmt.Errorf("invalid request body: %w", err)))
		return
	}

	op, ok := s.ops[req.OperationName]
	if !ok {
		c.JSON(http.StatusOK, gqlErrors(fmt.Errorf("unknown operation %q", req.OperationName)))
		return
	}

	s.mu.Lock()
	s.calls[req.OperationName]++
	s.mu.Unlock()

	if req.OperationName == "RefreshToken" {
		s.waitRefresh()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cl := &call{vars: req.Variables}
	if !op.public {
		u, err := s.authenticate(bearer(c.GetHeader("Authorization")))
		if err != nil {
			s.rejectLocked(c)
			return
		}
		cl.user = u
	}

	result, err := op.fn(s, cl)
	if err != nil {
		c.JSON(http.StatusOK, gqlErrors(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{op.field: result}})
}

func (s *Server) rejectLocked(c *gin.Context) {
	if s.unauthorizedMode == GraphQLError {
		c.JSON(http.StatusOK, gqlErrors(errUnauthorized))
		return
	}
	c.JSON(http.StatusUnauthorized, gqlErrors(errUnauthorized))
}

func bearer(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func (s *Server) waitRefresh() {
	s.refreshCalls.Add(1)
	s.mu.Lock()
	d := s.refreshDelay
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (s *Server) id() int {
	s.nextID++
	return s.nextID
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// SetRefreshFailure makes every refresh fail while on is true.
func (s *Server) SetRefreshFailure(on bool) {
	s.mu.Lock()
	s.refreshFailure = on
	s.mu.Unlock()
}

// SetRefreshDelay holds every refresh answer for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	s.refreshDelay = d
	s.mu.Unlock()
}

// SetUnauthorizedMode selects how rejected tokens are reported.
func (s *Server) SetUnauthorizedMode(m UnauthorizedMode) {
	s.mu.Lock()
	s.unauthorizedMode = m
	s.mu.Unlock()
}

// RefreshCalls returns the number of RefreshToken requests received.
func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }

// Calls returns how many times operation op was requested.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// variable helpers

func object(vars map[string]any, key string) (map[string]any, error) {
	v, ok := vars[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Variable \"$%s\" of required type was not provided.", key)
	}
	return v, nil
}

func text(vars map[string]any, key string) string {
	v, _ := vars[key].(string)
	return strings.TrimSpace(v)
}

func integer(vars map[string]any, key string) (int, error) {
	switch v := vars[key].(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("Variable \"$%s\" got invalid value %v", key, vars[key])
}

func integers(vars map[string]any, key string) []int {
	raw, _ := vars[key].([]any)
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
