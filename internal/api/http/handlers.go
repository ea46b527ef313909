package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/providers/terminal"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/service"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/utils"
)

// Version is reported by the root and health endpoints
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	terminals *terminal.Provider
	registry  *service.Registry
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(terminals *terminal.Provider, registry *service.Registry, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		terminals: terminals,
		registry:  registry,
		metrics:   metrics,
		logger:    logger,
	}
}

// Root handles the basic status check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termsync",
		"version": Version,
	})
}

// Health handles the detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":           "healthy",
		"version":          Version,
		"terminals":        len(h.terminals.Manager().ListSessions()),
		"service_registry": h.registry.Stats(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// ListServices lists tool definitions. ?q= ranks services against a query.
func (h *Handlers) ListServices(c *gin.Context) {
	if query := c.Query("q"); query != "" {
		c.JSON(http.StatusOK, gin.H{
			"query":    query,
			"services": h.registry.Discover(query, 5),
		})
		return
	}

	var category *types.Category
	if raw := c.Query("category"); raw != "" {
		if err := utils.ValidateID(raw, "category", false); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cat := types.Category(raw)
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateToolID(req.ToolID, "tool_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := string(tracing.GetTraceID(c.Request.Context()))
	clientIP := c.ClientIP()
	appCtx := &types.Context{RequestID: &requestID, ClientIP: &clientIP}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	if err != nil {
		status := statusFor(err)
		if errors.Is(err, service.ErrServiceNotFound) || errors.Is(err, service.ErrInvalidToolID) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreateTerminal starts a new terminal session
func (h *Handlers) CreateTerminal(c *gin.Context) {
	var req types.CreateTerminalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := utils.ValidateEnv(req.Env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.terminals.CreateSession(terminal.Options{
		Shell:      req.Shell,
		WorkingDir: req.WorkingDir,
		Cols:       req.Cols,
		Rows:       req.Rows,
		Env:        req.Env,
	})
	if err != nil {
		h.logger.Warn("failed to create terminal", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session.Info())
}

// ListTerminals lists all terminal sessions
func (h *Handlers) ListTerminals(c *gin.Context) {
	sessions := h.terminals.Manager().ListSessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetTerminal returns one session's info
func (h *Handlers) GetTerminal(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	info, err := h.terminals.Manager().GetSession(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// SendText types text into a session
func (h *Handlers) SendText(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req types.SendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateText(req.Text); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addNewLine := true
	if req.AddNewLine != nil {
		addNewLine = *req.AddNewLine
	}

	if err := h.terminals.SendText(id, req.Text, addNewLine); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SendCommand runs a command in a session. With wait the request blocks until
// the command completes, fails, times out or the client goes away.
func (h *Handlers) SendCommand(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req types.SendCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateCommand(req.Command, req.Args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	status, err := h.terminals.RunCommand(c.Request.Context(), id, req.Command, req.Args, req.Wait, timeout)

	resp := types.CommandResponse{
		SessionID: id,
		Command:   req.Command,
		Status:    string(status),
	}

	switch {
	case status == terminal.StatusFailed:
		resp.Error = err.Error()
		c.JSON(http.StatusUnprocessableEntity, resp)
	case err != nil:
		h.logger.Warn("command submission failed",
			zap.String("session_id", id),
			zap.String("command", req.Command),
			zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
	case status == terminal.StatusSent:
		c.JSON(http.StatusAccepted, resp)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// Show reveals a session
func (h *Handlers) Show(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req types.ShowRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.terminals.Show(id, req.PreserveFocus); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Resize changes the PTY window size
func (h *Handlers) Resize(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req types.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.terminals.Manager().Resize(id, req.Cols, req.Rows); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Output drains buffered output
func (h *Handlers) Output(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	output, err := h.terminals.Manager().Read(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if c.Query("raw") == "true" {
		c.Data(http.StatusOK, "application/octet-stream", output)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"output": string(output),
		"length": len(output),
	})
}

// Kill disposes a session and releases commands waiting on it
func (h *Handlers) Kill(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.terminals.Kill(id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session_id": id})
}

func sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := utils.ValidateTerminalID(id, "id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}
