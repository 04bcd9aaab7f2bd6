package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rickgao/storefront-realtime/internal/auth"
)

// Config configures the dev server.
type Config struct {
	RequireAuth  bool   // reject unauthenticated activity posts
	JWTSecret    string // HMAC secret; empty accepts any well-formed token
	ReadLimit    int64  // max inbound WebSocket frame, bytes
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReadLimit:    128 << 10,
		WriteTimeout: 5 * time.Second,
	}
}

// Activity is one collected telemetry post.
type Activity struct {
	Service    string         `json:"service"`
	Action     string         `json:"action"`
	UserID     string         `json:"userId"`
	Data       map[string]any `json:"data"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

// Server routes HTTP and WebSocket traffic.
type Server struct {
	cfg    Config
	logger *slog.Logger
	engine *gin.Engine

	mu       sync.RWMutex
	peers    map[string]*peer
	activity []Activity
}

type peer struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	userID string
}

func (p *peer) user() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.userID == "" {
		return auth.Anonymous
	}
	return p.userID
}

// New creates a Server.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultConfig().ReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "devserver"),
		peers:  make(map[string]*peer),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleWebSocket)
	r.POST("/api/activity", s.handleActivity)
	r.GET("/api/activity", s.handleListActivity)
	s.engine = r

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Peers returns the number of open WebSocket connections.
func (s *Server) Peers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Activity returns a copy of the collected activity posts.
func (s *Server) Activity() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Activity, len(s.activity))
	copy(out, s.activity)
	return out
}

// Broadcast writes v to every connected peer.
func (s *Server) Broadcast(ctx context.Context, v any) {
	s.mu.RLock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		if err := s.write(ctx, p, v); err != nil {
			s.logger.Debug("broadcast write failed", "peer", p.id, "error", err)
		}
	}
}

func (s *Server) write(ctx context.Context, p *peer, v any) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, p.conn, v)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "peers": s.Peers()})
}

func (s *Server) handleActivity(c *gin.Context) {
	if s.cfg.RequireAuth {
		if _, err := s.authorize(c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	var a Activity
	if err := c.ShouldBindJSON(&a); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if a.Action == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}
	a.ReceivedAt = time.Now()

	s.mu.Lock()
	s.activity = append(s.activity, a)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func (s *Server) handleListActivity(c *gin.Context) {
	c.JSON(http.StatusOK, s.Activity())
}

// authorize validates a bearer header and returns the token's user ID.
func (s *Server) authorize(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", errors.New("authorization token missing")
	}
	return s.verify(token)
}

func (s *Server) verify(token string) (string, error) {
	if s.cfg.JWTSecret == "" {
		return auth.UserIDFromToken(token)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid token: no subject")
	}
	return sub, nil
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.ReadLimit)

	p := &peer{id: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.peers[p.id] = p
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.peers, p.id)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "bye")
		s.logger.Debug("peer disconnected", "peer", p.id)
	}()

	ctx := c.Request.Context()
	if err := s.write(ctx, p, map[string]any{
		"type":     "connection",
		"clientId": p.id,
		"message":  "connected",
	}); err != nil {
		return
	}
	s.logger.Debug("peer connected", "peer", p.id)

	s.readLoop(ctx, p)
}
