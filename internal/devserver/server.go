// Package devserver serves a scripted stream of dashboard events over both
// websocket and SSE so the realtime client (and the dashboard itself) can be
// exercised without the production backend.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aria/internal/logging"
)

const (
	writeTimeout      = 10 * time.Second
	heartbeatInterval = 15 * time.Second
)

// Options configures the dev server.
type Options struct {
	Addr string
	// Scenario is replayed to every new run; nil means DefaultScenario.
	Scenario *Scenario
	// Loop restarts the scenario once it finishes.
	Loop   bool
	Debug  bool
	Logger logging.Logger
}

// Server replays a scenario to all connected websocket and SSE clients.
type Server struct {
	opts        Options
	logger      logging.Logger
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

func New(opts Options) *Server {
	if opts.Scenario == nil {
		opts.Scenario = DefaultScenario()
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8787"
	}
	logger := logging.OrNop(opts.Logger)

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		opts:        opts,
		logger:      logger,
		broadcaster: NewBroadcaster(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/ws", s.handleWebSocket)
	engine.GET("/events", s.handleSSE)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: engine,
	}
	return s
}

// Run serves until ctx is cancelled. The scenario starts playing as soon as
// the first client connects.
func (s *Server) Run(ctx context.Context) error {
	playCtx, cancelPlay := context.WithCancel(ctx)
	defer cancelPlay()
	go s.play(playCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devserver: listening on %s", s.opts.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("devserver shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) play(ctx context.Context) {
	// Hold the script until someone is listening.
	for s.broadcaster.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}

	for {
		for _, evt := range s.opts.Scenario.Events {
			select {
			case <-ctx.Done():
				return
			case <-time.After(evt.Delay):
			}
			frame, err := json.Marshal(map[string]any{"type": evt.Type, "payload": evt.Payload})
			if err != nil {
				s.logger.Error("devserver: marshal scenario event %s: %v", evt.Type, err)
				continue
			}
			s.broadcaster.Publish(frame)
		}
		if !s.opts.Loop {
			return
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"scenario":    s.opts.Scenario.Name,
		"subscribers": s.broadcaster.Subscribers(),
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("devserver: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	frames, cancel := s.broadcaster.Subscribe()
	defer cancel()

	done := make(chan struct{})
	// Reader drains client frames (approve/reject/chat) and detects closes.
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.logInbound(data)
		}
	}()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	frames, cancel := s.broadcaster.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			flusher.Flush()
		case frame, ok := <-frames:
			if !ok {
				return
			}
			var envelope struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(frame, &envelope); err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", envelope.Type, envelope.Payload)
			flusher.Flush()
		}
	}
}

func (s *Server) logInbound(data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn("devserver: unreadable client frame: %v", err)
		return
	}
	s.logger.Info("devserver: client frame %s", envelope.Type)
}
