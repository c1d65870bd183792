package mcpserv

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/profile"
)

var testImpl = &mcp.Implementation{Name: "formagent-test", Version: "0.1.0"}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// testBus wires stub handlers around a mutable profile and disabled set.
func testBus(p *profile.Profile) (*bus.Router, map[string]bool) {
	r := bus.New(bus.WithLogger(quiet()))
	disabled := make(map[string]bool)

	r.RegisterLocal(bus.MsgGetProfile, func(context.Context, []byte) ([]byte, error) {
		return json.Marshal(bus.GetProfileResponse{Profile: p})
	})
	r.RegisterLocal(bus.MsgUpdateProfile, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.UpdateProfileRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		*p = *req.Data
		return json.Marshal(bus.UpdateProfileResponse{Success: true})
	})
	r.RegisterLocal(bus.MsgSetSiteDisabled, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.SetSiteDisabledRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		disabled[req.Host] = req.IsDisabled
		return json.Marshal(bus.AckResponse{Success: true})
	})
	r.RegisterLocal(bus.MsgGetSiteDisabled, func(_ context.Context, payload []byte) ([]byte, error) {
		var req bus.GetSiteDisabledRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return json.Marshal(bus.GetSiteDisabledResponse{IsDisabled: disabled[req.Host]})
	})

	return r, disabled
}

// mcpSession registers the tools and returns a connected client session.
func mcpSession(t *testing.T, r *bus.Router) *mcp.ClientSession {
	t.Helper()

	srv := mcp.NewServer(testImpl, nil)
	NewService(r, WithLogger(quiet())).Register(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_GetProfile(t *testing.T) {
	r, _ := testBus(profile.FromPairs("first_name", "Ada", "email", "ada@example.com"))
	session := mcpSession(t, r)

	text := callTool(t, session, "formagent_get_profile", map[string]any{})

	got := profile.New()
	if err := json.Unmarshal([]byte(text), got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, _ := got.Get("first_name"); v != "Ada" {
		t.Errorf("first_name = %q, want Ada", v)
	}
	if got.Len() != 2 {
		t.Errorf("keys = %d, want 2", got.Len())
	}
}

func TestMCP_UpdateProfile(t *testing.T) {
	p := profile.FromPairs("email", "old@example.com")
	r, _ := testBus(p)
	session := mcpSession(t, r)

	text := callTool(t, session, "formagent_update_profile", map[string]any{
		"data": map[string]any{"email": "new@example.com"},
	})

	var resp bus.UpdateProfileResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Fatal("update reported failure")
	}
	if v, _ := p.Get("email"); v != "new@example.com" {
		t.Errorf("email = %q, want new@example.com", v)
	}
}

func TestMCP_SiteDisabledRoundTrip(t *testing.T) {
	r, disabled := testBus(profile.New())
	session := mcpSession(t, r)

	callTool(t, session, "formagent_set_site_disabled", map[string]any{
		"host":        "bank.example.com",
		"is_disabled": true,
	})
	if !disabled["bank.example.com"] {
		t.Fatal("set_site_disabled did not reach the bus")
	}

	text := callTool(t, session, "formagent_get_site_disabled", map[string]any{
		"host": "bank.example.com",
	})
	var resp map[string]any
	json.Unmarshal([]byte(text), &resp)
	if resp["is_disabled"] != true {
		t.Errorf("get_site_disabled = %v, want true", resp["is_disabled"])
	}
}

func TestMCP_FillPageWithoutBrowser(t *testing.T) {
	r, _ := testBus(profile.New())
	r.RegisterLocal(bus.MsgFillNow, func(context.Context, []byte) ([]byte, error) {
		return json.Marshal(bus.FillNowResponse{Success: true, Filled: 3})
	})
	session := mcpSession(t, r)

	text := callTool(t, session, "formagent_fill_page", map[string]any{})
	var resp bus.FillNowResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.Filled != 3 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMCP_FillPageWithURLNeedsScanner(t *testing.T) {
	r, _ := testBus(profile.New())
	session := mcpSession(t, r)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "formagent_fill_page",
		Arguments: map[string]any{"url": "https://example.com"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error without an attached browser")
	}
}
