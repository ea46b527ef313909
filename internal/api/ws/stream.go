package ws

import (
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/providers/terminal"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/utils"
)

// Frame types
const (
	TypeOutput = "output"
	TypeInput  = "input"
	TypeResize = "resize"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeExit   = "exit"
	TypeError  = "error"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Handler streams terminal output over WebSocket and accepts input back
type Handler struct {
	manager  *terminal.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a stream handler. metrics may be nil.
func NewHandler(manager *terminal.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager: manager,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// conn serializes writes; gorilla allows one concurrent writer
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	metrics *monitoring.Metrics
}

func (c *conn) send(msg types.StreamMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordWSMessage("out", msg.Type)
	}
	return nil
}

// Stream handles GET /terminals/:id/stream
func (h *Handler) Stream(c *gin.Context) {
	id := c.Param("id")
	if err := utils.ValidateTerminalID(id, "id"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.manager.Session(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageSize)

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	logger := h.logger.With(zap.String("session_id", id))
	logger.Debug("stream opened")

	out := &conn{ws: ws, metrics: h.metrics}
	output, unsubscribe := session.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.forward(out, session, output)
	}()

	h.receive(out, session, logger)

	// reader finished first: stop the forwarder and wait for it
	unsubscribe()
	<-done
	logger.Debug("stream closed")
}

// forward relays output until the session closes or the subscription ends
func (h *Handler) forward(out *conn, session *terminal.Session, output <-chan []byte) {
	var carry []byte
	for chunk := range output {
		data := append(carry, chunk...)
		var complete []byte
		complete, carry = splitIncompleteRune(data)
		carry = append([]byte(nil), carry...)
		if len(complete) == 0 {
			continue
		}
		if err := out.send(types.StreamMessage{Type: TypeOutput, Data: string(complete)}); err != nil {
			return
		}
	}
	if len(carry) > 0 {
		_ = out.send(types.StreamMessage{Type: TypeOutput, Data: string(carry)})
	}

	info := session.Info()
	if info.Active {
		return
	}

	_ = out.send(types.StreamMessage{Type: TypeExit, ExitCode: info.ExitCode})

	out.mu.Lock()
	_ = out.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
		time.Now().Add(writeWait))
	out.mu.Unlock()
	// unblocks the reader
	out.ws.Close()
}

// splitIncompleteRune holds back a UTF-8 sequence cut off at the end of a
// PTY read so it can be completed by the next one
func splitIncompleteRune(data []byte) (complete, rest []byte) {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if utf8.FullRune(data[i:]) {
			return data, nil
		}
		return data[:i], data[i:]
	}
	return data, nil
}

// receive applies client frames until the connection drops
func (h *Handler) receive(out *conn, session *terminal.Session, logger *zap.Logger) {
	for {
		_, data, err := out.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("stream read error", zap.Error(err))
			}
			return
		}

		var msg types.StreamMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = out.send(types.StreamMessage{Type: TypeError, Data: "invalid message"})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case TypeInput:
			err = session.Write([]byte(msg.Data))
		case TypeResize:
			err = session.Resize(msg.Cols, msg.Rows)
		case TypePing:
			err = out.send(types.StreamMessage{Type: TypePong})
		default:
			err = out.send(types.StreamMessage{Type: TypeError, Data: "unknown message type"})
		}
		if err != nil {
			_ = out.send(types.StreamMessage{Type: TypeError, Data: err.Error()})
		}
	}
}
