// Package mockserver is a self-contained development backend that speaks
// the advisor API: REST endpoints for the dashboard and chat, the push
// channel, demo triggers and a periodic proactive insight job.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/model"
)

const chatHistoryLimit = 20

// Options configures a Server. A zero InsightInterval disables the
// proactive insight job.
type Options struct {
	InsightInterval time.Duration
	Clock           clockwork.Clock
	Logger          *zap.Logger
}

// Server is the development backend.
type Server struct {
	engine *gin.Engine
	bcast  *Broadcaster
	ledger *ledger
	sched  gocron.Scheduler
	clock  clockwork.Clock
	log    *zap.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	insight  int
	history  map[model.AgentID][]gin.H
	shutOnce sync.Once
}

// New builds a Server with its routes and scheduler. Call Start to begin
// the insight job.
func New(opts Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("mock")

	sched, err := gocron.NewScheduler(gocron.WithClock(opts.Clock))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	s := &Server{
		bcast:  NewBroadcaster(log),
		ledger: newLedger(opts.Clock.Now()),
		sched:  sched,
		clock:  opts.Clock,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		history: make(map[model.AgentID][]gin.H),
	}

	if opts.InsightInterval > 0 {
		_, err := sched.NewJob(
			gocron.DurationJob(opts.InsightInterval),
			gocron.NewTask(s.broadcastInsight),
			gocron.WithName("proactive-insights"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			sched.Shutdown()
			return nil, fmt.Errorf("scheduling insights: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger(log))
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/", s.health)
	r.GET("/ws/:clientID", s.websocket)
	r.GET("/api/test-notification", s.testNotification)
	r.POST("/api/demo/trigger/:scenario", s.triggerDemo)

	fin := r.Group("/api/financial")
	fin.GET("/metrics", func(c *gin.Context) { c.JSON(http.StatusOK, s.ledger.metrics()) })
	fin.GET("/goals", func(c *gin.Context) { c.JSON(http.StatusOK, s.ledger.goalsView()) })
	fin.GET("/transactions", func(c *gin.Context) { c.JSON(http.StatusOK, s.ledger.transactionsView()) })
	fin.POST("/goals/:name/contribute", s.contribute)
	fin.POST("/simulate-transaction", s.simulateTransaction)

	chat := r.Group("/api/chat")
	chat.POST("/", s.chat)
	chat.GET("/history/:agent", s.chatHistory)
	chat.DELETE("/history/:agent", s.clearChatHistory)
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Clients returns the number of connected push clients.
func (s *Server) Clients() int {
	return s.bcast.Count()
}

// Start begins the proactive insight job.
func (s *Server) Start() {
	s.sched.Start()
}

// Close stops the scheduler and disconnects every push client.
func (s *Server) Close() error {
	var err error
	s.shutOnce.Do(func() {
		err = s.sched.Shutdown()
		s.bcast.CloseAll()
	})
	return err
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Start()
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("mock backend listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Info("mock backend stopping", zap.Int("clients", s.Clients()))
	s.bcast.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	agents := make([]string, 0, len(model.Agents))
	for _, id := range model.AgentIDs() {
		agents = append(agents, string(id))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "FinPal mock backend",
		"version": "1.0.0",
		"agents":  agents,
	})
}

func (s *Server) websocket(c *gin.Context) {
	id := c.Param("clientID")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("client", id), zap.Error(err))
		return
	}
	s.bcast.Serve(id, conn, gin.H{"type": "connection", "status": "connected", "client_id": id})
}

func (s *Server) testNotification(c *gin.Context) {
	t := template{
		Agent:    model.AgentSofia,
		Type:     model.TypeProactive,
		Title:    "Test Notification",
		Message:  "This is a test proactive insight from Sofia!",
		Priority: model.PriorityMedium,
		Action:   true,
	}
	payload := snakePayload(t, newID(), s.clock.Now())
	s.bcast.Broadcast(notificationFrame(payload))
	c.JSON(http.StatusOK, gin.H{"status": "notification sent", "notification": payload})
}

func (s *Server) triggerDemo(c *gin.Context) {
	name := c.Param("scenario")
	t, ok := scenarios[name]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"error": fmt.Sprintf("Invalid scenario. Choose from: %v", ScenarioNames)})
		return
	}

	payload := snakePayload(t, newID(), s.clock.Now())
	sent := s.bcast.Broadcast(notificationFrame(payload))
	s.log.Info("demo triggered", zap.String("scenario", name), zap.Int("clients", sent))
	c.JSON(http.StatusOK, gin.H{"status": "success", "scenario": name, "notification": payload})
}

// broadcastInsight pushes the next rotating insight.
func (s *Server) broadcastInsight() {
	s.mu.Lock()
	t := insights[s.insight%len(insights)]
	s.insight++
	s.mu.Unlock()

	now := s.clock.Now()
	s.ledger.Simulate(now)
	sent := s.bcast.Broadcast(notificationFrame(camelPayload(t, newID(), now)))
	s.log.Info("insight sent", zap.String("agent", string(t.Agent)), zap.String("title", t.Title), zap.Int("clients", sent))
}

func (s *Server) contribute(c *gin.Context) {
	name := c.Param("name")
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "amount must be a positive number"})
		return
	}

	goal, ok := s.ledger.contribute(name, amount)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Goal '%s' not found", name)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"goal":    goal,
		"message": fmt.Sprintf("Added $%.2f to %s", amount, name),
	})
}

func (s *Server) simulateTransaction(c *gin.Context) {
	txn := s.ledger.Simulate(s.clock.Now())
	c.JSON(http.StatusOK, gin.H{"status": "success", "transaction": txn})
}

type chatRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	agent, err := model.ParseAgentID(req.AgentID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Agent %s not found", req.AgentID)})
		return
	}

	reply := personaReply(agent, req.Message)
	now := s.clock.Now().Format(wireTime)

	s.mu.Lock()
	h := append(s.history[agent],
		gin.H{"role": "user", "content": req.Message, "timestamp": now},
		gin.H{"role": "assistant", "content": reply, "timestamp": now},
	)
	if len(h) > chatHistoryLimit {
		h = h[len(h)-chatHistoryLimit:]
	}
	s.history[agent] = h
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"agent_id":   agent,
		"agent_name": agent.Name(),
		"response":   reply,
		"timestamp":  now,
	})
}

func (s *Server) chatHistory(c *gin.Context) {
	agent := model.AgentID(c.Param("agent"))

	s.mu.Lock()
	h := append([]gin.H(nil), s.history[agent]...)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"agent_id": agent, "history": h, "message_count": len(h)})
}

func (s *Server) clearChatHistory(c *gin.Context) {
	agent := model.AgentID(c.Param("agent"))

	s.mu.Lock()
	delete(s.history, agent)
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": fmt.Sprintf("Chat history cleared for %s", agent)})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
