package ws

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shellbridge/internal/providers/terminal"
	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
	"github.com/GriffinCanCode/shellbridge/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Config tunes the terminal websocket
type Config struct {
	// AllowedOrigins restricts browser origins; empty allows all
	AllowedOrigins []string
	ProxyTimeout   time.Duration
	Prompt         string
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// Handler attaches websocket clients to shell sessions
type Handler struct {
	sessions *terminal.Manager
	runner   terminal.CommandRunner
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a terminal websocket handler. Proxy lines typed in
// the terminal run through runner, normally the session coordinator.
func NewHandler(sessions *terminal.Manager, runner terminal.CommandRunner, cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	h := &Handler{
		sessions: sessions,
		runner:   runner,
		cfg:      cfg,
		logger:   cfg.Logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// connWriter serializes data frames on one connection
type connWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	metrics *monitoring.Metrics
}

// Write sends rendered terminal output as one binary frame
func (w *connWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writeLocked(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	w.metrics.RecordWSMessage("out", "output")
	return len(p), nil
}

func (w *connWriter) writeLocked(messageType int, p []byte) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(messageType, p)
}

// send writes a JSON control frame
func (w *connWriter) send(v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(websocket.TextMessage, data)
}

func (w *connWriter) sendError(msg string) error {
	return w.send(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// close ends the connection with a close frame
func (w *connWriter) close(code int, reason string) {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	_ = w.conn.Close()
}

// resolveSession attaches to session_id or starts a new session sized by
// cols/rows. owned reports whether the connection created it.
func (h *Handler) resolveSession(c *gin.Context) (session *terminal.Session, owned bool, status int, err error) {
	if sessionID := c.Query("session_id"); sessionID != "" {
		if err := utils.ValidateID(sessionID, "session_id", true); err != nil {
			return nil, false, http.StatusBadRequest, err
		}
		session, err := h.sessions.Get(sessionID)
		if err != nil {
			return nil, false, http.StatusNotFound, err
		}
		return session, false, 0, nil
	}

	cols, err := parseDim(c.Query("cols"))
	if err != nil {
		return nil, false, http.StatusBadRequest, fmt.Errorf("cols: %w", err)
	}
	rows, err := parseDim(c.Query("rows"))
	if err != nil {
		return nil, false, http.StatusBadRequest, fmt.Errorf("rows: %w", err)
	}
	if err := utils.ValidateTerminalSize(cols, rows, false); err != nil {
		return nil, false, http.StatusBadRequest, err
	}

	session, err = h.sessions.CreateSession(c.Request.Context(), terminal.CreateOptions{
		Size: terminal.Size{Cols: cols, Rows: rows},
	})
	if err != nil {
		return nil, false, http.StatusInternalServerError, err
	}
	return session, true, 0, nil
}

func parseDim(s string) (uint16, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// HandleConnection upgrades the request and bridges the socket to a shell.
// Binary and text frames are keystrokes, except text frames holding a JSON
// control message ({"type":"resize","cols":..,"rows":..} or {"type":"ping"}).
// Output goes out as binary frames after a replay of the scrollback.
func (h *Handler) HandleConnection(c *gin.Context) {
	session, owned, status, err := h.resolveSession(c)
	if err != nil {
		h.logger.Warn("Terminal attach rejected", zap.Int("status", status), zap.Error(err))
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if owned {
		defer func() {
			if err := h.sessions.Kill(session.ID); err == nil {
				h.logger.Debug("Killed session on disconnect", zap.String("session_id", session.ID))
			}
		}()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.cfg.Metrics.IncWSConnections()
	defer h.cfg.Metrics.DecWSConnections()

	logger := h.logger.With(zap.String("session_id", session.ID))
	logger.Info("Terminal attached", zap.Bool("owned", owned))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &connWriter{conn: conn, metrics: h.cfg.Metrics}
	if err := writer.send(map[string]interface{}{
		"type":       "session",
		"session_id": session.ID,
		"owned":      owned,
	}); err != nil {
		return
	}

	// hold the writer while attaching so live output queues behind the replay
	writer.mu.Lock()
	replay := session.Attach(writer)
	if len(replay) > 0 {
		err = writer.writeLocked(websocket.BinaryMessage, replay)
	}
	writer.mu.Unlock()
	defer session.Detach(writer)
	if err != nil {
		return
	}

	opts := []terminal.InterceptorOption{
		terminal.WithInterceptorLogger(logger),
	}
	if h.cfg.ProxyTimeout > 0 {
		opts = append(opts, terminal.WithProxyTimeout(h.cfg.ProxyTimeout))
	}
	if h.cfg.Prompt != "" {
		opts = append(opts, terminal.WithPromptIndicator(h.cfg.Prompt))
	}
	ic := terminal.NewInterceptor(session.ID, session, session.Terminal(), h.runner, opts...)
	defer func() {
		cancel()
		ic.Wait()
		ic.Reset()
	}()

	go h.keepAlive(ctx, conn, session, writer)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Terminal read error", zap.Error(err))
			}
			break
		}

		if messageType == websocket.TextMessage {
			if msg, ok := parseControl(data); ok {
				h.handleControl(session, writer, msg, logger)
				continue
			}
		}

		h.cfg.Metrics.RecordWSMessage("in", "input")
		if err := ic.HandleInput(ctx, data); err != nil {
			logger.Debug("Terminal input rejected", zap.Error(err))
			_ = writer.sendError(err.Error())
			break
		}
	}

	logger.Info("Terminal detached")
}

// keepAlive pings the client and closes the socket when the shell exits
func (h *Handler) keepAlive(ctx context.Context, conn *websocket.Conn, session *terminal.Session, writer *connWriter) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			writer.close(websocket.CloseNormalClosure, "shell exited")
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// parseControl recognizes JSON control frames; anything else is input
func parseControl(data []byte) (types.ControlMessage, bool) {
	var msg types.ControlMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return msg, false
	}
	if err := sonic.Unmarshal(trimmed, &msg); err != nil {
		return msg, false
	}
	switch msg.Type {
	case "resize", "ping":
		return msg, true
	default:
		return msg, false
	}
}

func (h *Handler) handleControl(session *terminal.Session, writer *connWriter, msg types.ControlMessage, logger *zap.Logger) {
	h.cfg.Metrics.RecordWSMessage("in", msg.Type)

	switch msg.Type {
	case "resize":
		if err := utils.ValidateTerminalSize(msg.Cols, msg.Rows, true); err != nil {
			_ = writer.sendError(err.Error())
			return
		}
		if err := session.Resize(terminal.Size{Cols: msg.Cols, Rows: msg.Rows}); err != nil {
			logger.Debug("Resize failed", zap.Error(err))
			_ = writer.sendError(err.Error())
		}
	case "ping":
		_ = writer.send(map[string]interface{}{"type": "pong"})
	}
}
