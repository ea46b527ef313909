package terminal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/completion"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/synchronized"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/capability"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/shared/types"
)

// CommandStatus is how a sent command ended from the caller's point of view
type CommandStatus string

const (
	StatusSent      CommandStatus = "sent"
	StatusCompleted CommandStatus = "completed"
	StatusCancelled CommandStatus = "cancelled"
	StatusFailed    CommandStatus = "failed"
)

// Provider exposes terminal sessions as tools. Every session is wrapped in a
// synchronized.Terminal so commands can be awaited.
type Provider struct {
	manager  *Manager
	fs       capability.FileSystem
	resolver capability.InterpreterResolver
	syncCfg  synchronized.Config

	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	runners sync.Map // map[id.TerminalID]*synchronized.Terminal
}

// NewProvider creates a terminal provider
func NewProvider(manager *Manager, fs capability.FileSystem, resolver capability.InterpreterResolver, cfg synchronized.Config) *Provider {
	return &Provider{
		manager:  manager,
		fs:       fs,
		resolver: resolver,
		syncCfg:  cfg,
		logger:   zap.NewNop(),
	}
}

// WithLogger sets the logger
func (p *Provider) WithLogger(logger *zap.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithMetrics records command outcomes and watcher activity
func (p *Provider) WithMetrics(metrics *monitoring.Metrics) *Provider {
	p.metrics = metrics
	return p
}

// WithTracer traces synchronized commands
func (p *Provider) WithTracer(tracer *tracing.Tracer) *Provider {
	p.tracer = tracer
	return p
}

// Manager returns the underlying session manager
func (p *Provider) Manager() *Manager {
	return p.manager
}

// CreateSession starts a session and its synchronized wrapper
func (p *Provider) CreateSession(opts Options) (*Session, error) {
	session, err := p.manager.CreateSession(opts)
	if err != nil {
		return nil, err
	}
	p.runners.Store(session.ID, p.wrap(session))
	return session, nil
}

func (p *Provider) wrap(session *Session) *synchronized.Terminal {
	runner := synchronized.New(session, p.fs, p.resolver, p.syncCfg).
		WithLogger(p.logger.Named("sync").With(zap.String("session_id", session.ID.String()))).
		WithTracer(p.tracer)
	if p.metrics != nil {
		runner.WithMetrics(p.metrics)
	}
	return runner
}

// Runner returns the synchronized wrapper of a session
func (p *Provider) Runner(sessionID string) (*synchronized.Terminal, error) {
	session, err := p.manager.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if value, ok := p.runners.Load(session.ID); ok {
		return value.(*synchronized.Terminal), nil
	}
	value, _ := p.runners.LoadOrStore(session.ID, p.wrap(session))
	return value.(*synchronized.Terminal), nil
}

// RunCommand sends a command to a session. Without wait it returns once the
// text is written. With wait it blocks until the command completes or fails,
// ctx is done, or timeout (when positive) elapses; the last two report
// StatusCancelled with a nil error. A failed command returns StatusFailed
// together with its *completion.CommandError.
func (p *Provider) RunCommand(ctx context.Context, sessionID, command string, args []string, wait bool, timeout time.Duration) (CommandStatus, error) {
	runner, err := p.Runner(sessionID)
	if err != nil {
		return "", err
	}

	if !wait {
		if err := runner.SendCommand(context.Background(), command, args); err != nil {
			return "", err
		}
		return StatusSent, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// a context that can never be done would turn the wait into fire-and-forget
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err = runner.Run(ctx, command, args)
	switch {
	case errors.Is(err, synchronized.ErrWaitCancelled):
		return StatusCancelled, nil
	case errors.Is(err, completion.ErrCommandFailed):
		return StatusFailed, err
	case err != nil:
		return "", err
	default:
		return StatusCompleted, nil
	}
}

// SendText writes text into a session
func (p *Provider) SendText(sessionID, text string, addNewLine bool) error {
	runner, err := p.Runner(sessionID)
	if err != nil {
		return err
	}
	return runner.SendText(text, addNewLine)
}

// Show reveals a session
func (p *Provider) Show(sessionID string, preserveFocus bool) error {
	runner, err := p.Runner(sessionID)
	if err != nil {
		return err
	}
	runner.Show(preserveFocus)
	return nil
}

// Kill disposes a session's wrapper, which kills the shell and releases any
// command still being waited on.
func (p *Provider) Kill(sessionID string) error {
	session, err := p.manager.Session(sessionID)
	if err != nil {
		return err
	}

	value, ok := p.runners.LoadAndDelete(session.ID)
	p.manager.Forget(sessionID)
	if !ok {
		return session.Dispose()
	}
	return value.(*synchronized.Terminal).Dispose()
}

// Close kills every session
func (p *Provider) Close() {
	for _, info := range p.manager.ListSessions() {
		if err := p.Kill(info.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			p.logger.Warn("failed to kill session", zap.String("session_id", info.ID), zap.Error(err))
		}
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "PTY shell sessions with commands that can be awaited until they finish",
		Category:    types.CategoryTerminal,
		Capabilities: []string{
			"pty",
			"shell",
			"sessions",
			"resize",
			"synchronized-commands",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, _ *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.create_session":
		return p.createSession(params)
	case "terminal.send_text":
		return p.sendText(params)
	case "terminal.send_command":
		return p.sendCommand(ctx, params)
	case "terminal.write":
		return p.write(params)
	case "terminal.read":
		return p.read(params)
	case "terminal.show":
		return p.show(params)
	case "terminal.resize":
		return p.resize(params)
	case "terminal.list_sessions":
		return p.listSessions()
	case "terminal.get_session":
		return p.getSession(params)
	case "terminal.kill":
		return p.kill(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func sessionParam() types.Parameter {
	return types.Parameter{
		Name:        "session_id",
		Type:        "string",
		Description: "Terminal session ID",
		Required:    true,
	}
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "terminal.create_session",
			Name:        "Create Terminal Session",
			Description: "Start a shell behind a new PTY",
			Parameters: []types.Parameter{
				{Name: "shell", Type: "string", Description: "Shell executable. Defaults to $SHELL", Required: false},
				{Name: "working_dir", Type: "string", Description: "Initial working directory. Defaults to $HOME", Required: false},
				{Name: "cols", Type: "number", Description: "Terminal width in columns", Required: false},
				{Name: "rows", Type: "number", Description: "Terminal height in rows", Required: false},
				{Name: "env", Type: "object", Description: "Extra environment variables", Required: false},
			},
			Returns: "session_info",
		},
		{
			ID:          "terminal.send_text",
			Name:        "Send Text",
			Description: "Type text into a session",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "text", Type: "string", Description: "Text to type", Required: true},
				{Name: "add_new_line", Type: "boolean", Description: "Press enter afterwards. Defaults to true", Required: false},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.send_command",
			Name:        "Send Command",
			Description: "Run a command in a session, optionally waiting until it completes or fails",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "command", Type: "string", Description: "Executable name or path", Required: true},
				{Name: "args", Type: "array", Description: "Arguments, quoted individually when waiting", Required: false},
				{Name: "wait", Type: "boolean", Description: "Block until the command finishes", Required: false},
				{Name: "timeout_ms", Type: "number", Description: "Stop waiting after this many milliseconds", Required: false},
			},
			Returns: "command_status",
		},
		{
			ID:          "terminal.write",
			Name:        "Write to Terminal",
			Description: "Send raw input to a session",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "input", Type: "string", Description: "Input bytes", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.read",
			Name:        "Read from Terminal",
			Description: "Drain buffered output from a session",
			Parameters:  []types.Parameter{sessionParam()},
			Returns:     "output_data",
		},
		{
			ID:          "terminal.show",
			Name:        "Show Terminal",
			Description: "Reveal a session",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "preserve_focus", Type: "boolean", Description: "Do not take focus", Required: false},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "cols", Type: "number", Description: "New width in columns", Required: true},
				{Name: "rows", Type: "number", Description: "New height in rows", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "terminal.list_sessions",
			Name:        "List Terminal Sessions",
			Description: "List all terminal sessions",
			Parameters:  []types.Parameter{},
			Returns:     "sessions_list",
		},
		{
			ID:          "terminal.get_session",
			Name:        "Get Session Info",
			Description: "Get information about a terminal session",
			Parameters:  []types.Parameter{sessionParam()},
			Returns:     "session_info",
		},
		{
			ID:          "terminal.kill",
			Name:        "Kill Terminal Session",
			Description: "Terminate a session and release pending commands",
			Parameters:  []types.Parameter{sessionParam()},
			Returns:     "success",
		},
	}
}

func infoData(info SessionInfo) map[string]interface{} {
	data := map[string]interface{}{
		"id":          info.ID,
		"shell":       info.Shell,
		"working_dir": info.WorkingDir,
		"cols":        info.Cols,
		"rows":        info.Rows,
		"started_at":  info.StartedAt,
		"active":      info.Active,
		"visible":     info.Visible,
		"focused":     info.Focused,
	}
	if info.ExitCode != nil {
		data["exit_code"] = *info.ExitCode
	}
	return data
}

func (p *Provider) createSession(params map[string]interface{}) (*types.Result, error) {
	opts := Options{}
	opts.Shell, _ = params["shell"].(string)
	opts.WorkingDir, _ = params["working_dir"].(string)

	if c, ok := params["cols"].(float64); ok {
		opts.Cols = int(c)
	}
	if r, ok := params["rows"].(float64); ok {
		opts.Rows = int(r)
	}

	if envMap, ok := params["env"].(map[string]interface{}); ok {
		opts.Env = make(map[string]string, len(envMap))
		for k, v := range envMap {
			if str, ok := v.(string); ok {
				opts.Env[k] = str
			}
		}
	}

	session, err := p.CreateSession(opts)
	if err != nil {
		return nil, err
	}
	return types.Success(infoData(session.Info())), nil
}

func (p *Provider) sendText(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	text, ok := params["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text is required")
	}
	addNewLine := true
	if v, ok := params["add_new_line"].(bool); ok {
		addNewLine = v
	}

	if err := p.SendText(sessionID, text, addNewLine); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) sendCommand(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	command, ok := params["command"].(string)
	if !ok || command == "" {
		return nil, fmt.Errorf("command is required")
	}

	var args []string
	if raw, ok := params["args"].([]interface{}); ok {
		for i, v := range raw {
			arg, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("args[%d] must be a string", i)
			}
			args = append(args, arg)
		}
	}

	wait, _ := params["wait"].(bool)
	var timeout time.Duration
	if ms, ok := params["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	status, err := p.RunCommand(ctx, sessionID, command, args, wait, timeout)
	data := map[string]interface{}{
		"session_id": sessionID,
		"command":    command,
		"status":     string(status),
	}
	if status == StatusFailed {
		return types.Failure(err.Error(), data), nil
	}
	if err != nil {
		return nil, err
	}
	return types.Success(data), nil
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	input, ok := params["input"].(string)
	if !ok {
		return nil, fmt.Errorf("input is required")
	}

	if err := p.manager.Write(sessionID, []byte(input)); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) read(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	output, err := p.manager.Read(sessionID)
	if err != nil {
		return nil, err
	}

	return types.Success(map[string]interface{}{
		"output":        string(output),
		"output_base64": base64.StdEncoding.EncodeToString(output),
		"length":        len(output),
	}), nil
}

func (p *Provider) show(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}
	preserveFocus, _ := params["preserve_focus"].(bool)

	if err := p.Show(sessionID, preserveFocus); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	cols, ok := params["cols"].(float64)
	if !ok {
		return nil, fmt.Errorf("cols is required")
	}

	rows, ok := params["rows"].(float64)
	if !ok {
		return nil, fmt.Errorf("rows is required")
	}

	if err := p.manager.Resize(sessionID, int(cols), int(rows)); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

func (p *Provider) listSessions() (*types.Result, error) {
	sessions := p.manager.ListSessions()

	return types.Success(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}), nil
}

func (p *Provider) getSession(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	info, err := p.manager.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return types.Success(infoData(*info)), nil
}

func (p *Provider) kill(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("session_id is required")
	}

	if err := p.Kill(sessionID); err != nil {
		return nil, err
	}
	return types.Success(map[string]interface{}{"success": true}), nil
}

var _ capability.Terminal = (*Session)(nil)
