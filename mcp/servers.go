package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"playground/logx"
	"playground/model"
)

// toolSeparator joins a server id and a tool name. Function names sent
// upstream may only hold letters, digits, '_' and '-'.
const toolSeparator = "__"

const protocolVersion = "2025-06-18"

// ServerConfig describes one MCP server whose tools are offered to the
// model. Either Command (stdio) or URL (streamable HTTP) is set.
type ServerConfig struct {
	ID      string            `toml:"id"`
	Command string            `toml:"command,omitempty"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
	URL     string            `toml:"url,omitempty"`
	Headers map[string]string `toml:"headers,omitempty"`
}

func (c ServerConfig) validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("mcp server: id is required")
	case strings.Contains(c.ID, toolSeparator):
		return fmt.Errorf("mcp server %s: id may not contain %q", c.ID, toolSeparator)
	case c.Command == "" && c.URL == "":
		return fmt.Errorf("mcp server %s: command or url is required", c.ID)
	case c.Command != "" && c.URL != "":
		return fmt.Errorf("mcp server %s: command and url are exclusive", c.ID)
	}
	return nil
}

type server struct {
	id     string
	client *client.Client
	cmd    *exec.Cmd
	tools  []mcptypes.Tool
}

// Manager runs MCP servers and routes tool calls to them by namespaced
// tool name ("<server>__<tool>").
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*server
}

func NewManager() *Manager {
	return &Manager{servers: make(map[string]*server)}
}

// Start launches or connects to the server described by cfg and lists its
// tools.
func (m *Manager) Start(ctx context.Context, cfg ServerConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if m.running(cfg.ID) {
		return fmt.Errorf("mcp server %s already running", cfg.ID)
	}

	var (
		c   *client.Client
		cmd *exec.Cmd
		err error
	)
	if cfg.URL != "" {
		c, err = newHTTPClient(ctx, cfg)
	} else {
		c, cmd, err = newStdioClient(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to start mcp server %s: %w", cfg.ID, err)
	}

	if err := m.attach(ctx, cfg.ID, c, cmd); err != nil {
		closeClient(ctx, c, cmd)
		return err
	}
	return nil
}

// Connect registers an already started client under id.
func (m *Manager) Connect(ctx context.Context, id string, c *client.Client) error {
	if m.running(id) {
		return fmt.Errorf("mcp server %s already running", id)
	}
	return m.attach(ctx, id, c, nil)
}

func (m *Manager) running(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.servers[id]
	return ok
}

func (m *Manager) attach(ctx context.Context, id string, c *client.Client, cmd *exec.Cmd) error {
	_, err := c.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo:      mcptypes.Implementation{Name: "playground", Version: "1.0.0"},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mcp server %s: %w", id, err)
	}

	result, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", id, err)
	}

	m.mu.Lock()
	m.servers[id] = &server{id: id, client: c, cmd: cmd, tools: result.Tools}
	m.mu.Unlock()

	logx.Debug().Str("server", id).Int("tools", len(result.Tools)).Msg("mcp server ready")
	return nil
}

// Tools returns the tools of every running server, namespaced by server id
// and ordered by name.
func (m *Manager) Tools() []mcptypes.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []mcptypes.Tool
	for id, s := range m.servers {
		for _, t := range s.tools {
			t.Name = id + toolSeparator + t.Name
			all = append(all, t)
		}
	}
	slices.SortFunc(all, func(a, b mcptypes.Tool) int { return strings.Compare(a.Name, b.Name) })
	return all
}

// Definitions returns Tools as function definitions for a session's params.
func (m *Manager) Definitions() []model.ToolDefinition {
	return FromMCPTools(m.Tools())
}

// Owns reports whether a namespaced tool name belongs to a running server.
func (m *Manager) Owns(name string) bool {
	id, _, ok := strings.Cut(name, toolSeparator)
	return ok && m.running(id)
}

// CallTool runs a namespaced tool with JSON arguments and returns its text
// output. A tool that reports an error yields its text and a non-nil error.
func (m *Manager) CallTool(ctx context.Context, name, arguments string) (string, error) {
	id, tool, ok := strings.Cut(name, toolSeparator)
	if !ok {
		return "", fmt.Errorf("tool %q is not namespaced", name)
	}

	m.mu.RLock()
	s, exists := m.servers[id]
	m.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("mcp server %s not running", id)
	}

	var args map[string]any
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("tool %s: invalid arguments: %w", name, err)
		}
	}

	result, err := s.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{Name: tool, Arguments: args},
	})
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}

	text := resultText(result)
	if result.IsError {
		return text, fmt.Errorf("tool %s failed: %s", name, text)
	}
	return text, nil
}

func resultText(result *mcptypes.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcptypes.TextContent:
			parts = append(parts, tc.Text)
		case *mcptypes.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Stop closes one server.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.servers[id]
	delete(m.servers, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("mcp server %s not found", id)
	}
	closeClient(ctx, s.client, s.cmd)
	return nil
}

// Shutdown closes every server in parallel.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	servers := m.servers
	m.servers = make(map[string]*server)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closeClient(ctx, s.client, s.cmd)
		}()
	}
	wg.Wait()
}

// closeClient closes c, killing the local process if closing hangs.
func closeClient(ctx context.Context, c *client.Client, cmd *exec.Cmd) {
	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Close() }()

	select {
	case err := <-done:
		if err == nil {
			return
		}
		logx.Debug().Err(err).Msg("closing mcp client failed")
	case <-closeCtx.Done():
		logx.Debug().Msg("closing mcp client timed out")
	}

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			logx.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("killing mcp server failed")
		}
	}
}

func newHTTPClient(ctx context.Context, cfg ServerConfig) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
	}
	c, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	// HTTP transports must be started before Initialize.
	if err := c.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}
	return c, nil
}

func newStdioClient(cfg ServerConfig) (*client.Client, *exec.Cmd, error) {
	var started *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		started = cmd
		return cmd, nil
	}

	c, err := client.NewStdioMCPClientWithOptions(cfg.Command, environ(cfg.Env), cfg.Args, transport.WithCommandFunc(cmdFunc))
	if err != nil {
		return nil, nil, err
	}
	return c, started, nil
}

// environ returns the current environment with extra appended.
func environ(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
