package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newEchoServer() *server.MCPServer {
	s := server.NewMCPServer("echo", "1.0.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcptypes.NewTool("echo",
			mcptypes.WithDescription("Echo the text back"),
			mcptypes.WithString("text", mcptypes.Required()),
		),
		func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			text, _ := req.GetArguments()["text"].(string)
			if text == "" {
				return mcptypes.NewToolResultError("text is empty"), nil
			}
			return mcptypes.NewToolResultText(strings.ToUpper(text)), nil
		},
	)
	return s
}

func connectEcho(t *testing.T, m *Manager, id string) {
	t.Helper()
	ctx := context.Background()
	c, err := client.NewInProcessClient(newEchoServer())
	if err != nil {
		t.Fatalf("in-process client: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Connect(ctx, id, c); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestManagerToolsAreNamespaced(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(context.Background())
	connectEcho(t, m, "b")
	connectEcho(t, m, "a")

	tools := m.Tools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "a__echo" || tools[1].Name != "b__echo" {
		t.Errorf("unexpected names %q, %q", tools[0].Name, tools[1].Name)
	}

	defs := m.Definitions()
	if defs[0].Function.Name != "a__echo" || defs[0].Function.Description != "Echo the text back" {
		t.Errorf("unexpected definition %+v", defs[0].Function)
	}
	if !m.Owns("a__echo") || m.Owns("c__echo") || m.Owns("echo") {
		t.Error("Owns mismatch")
	}

	if err := m.Connect(context.Background(), "a", nil); err == nil {
		t.Error("expected error connecting a duplicate id")
	}
}

func TestManagerCallTool(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(context.Background())
	connectEcho(t, m, "srv")
	ctx := context.Background()

	out, err := m.CallTool(ctx, "srv__echo", `{"text":"cat"}`)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "CAT" {
		t.Errorf("expected CAT, got %q", out)
	}

	out, err = m.CallTool(ctx, "srv__echo", `{"text":""}`)
	if err == nil {
		t.Error("expected tool error")
	}
	if out != "text is empty" {
		t.Errorf("expected the tool's error text, got %q", out)
	}

	tests := []struct {
		name, tool, args string
	}{
		{"not namespaced", "echo", `{}`},
		{"unknown server", "nope__echo", `{}`},
		{"bad arguments", "srv__echo", `{"text":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.CallTool(ctx, tt.tool, tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}

	if err := m.Stop(ctx, "srv"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := m.Stop(ctx, "srv"); err == nil {
		t.Error("expected error stopping twice")
	}
	if len(m.Tools()) != 0 {
		t.Error("tools of a stopped server are still listed")
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"stdio", ServerConfig{ID: "fs", Command: "mcp-fs"}, false},
		{"http", ServerConfig{ID: "web", URL: "http://localhost:8080/mcp"}, false},
		{"no id", ServerConfig{Command: "x"}, true},
		{"separator in id", ServerConfig{ID: "a__b", Command: "x"}, true},
		{"nothing to run", ServerConfig{ID: "x"}, true},
		{"both", ServerConfig{ID: "x", Command: "x", URL: "http://x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
