// Package mcpserv exposes the autofill surface as MCP tools, so an agent
// can inspect the profile, update it, toggle sites, and trigger fills.
package mcpserv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/formagent/formagent/bus"
	"github.com/formagent/formagent/filler"
	"github.com/formagent/formagent/profile"
)

// Service bridges MCP tools onto the message bus. A Scanner is optional;
// without one the fill tool can only re-fill already watched pages.
type Service struct {
	bus     *bus.Router
	scanner *filler.Scanner
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithScanner attaches a scanner so fill requests can open new pages.
func WithScanner(s *filler.Scanner) Option {
	return func(sv *Service) { sv.scanner = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(sv *Service) { sv.logger = l }
}

// NewService creates a Service around the given bus.
func NewService(r *bus.Router, opts ...Option) *Service {
	s := &Service{bus: r, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register registers all formagent tools on an MCP server.
func (s *Service) Register(srv *mcp.Server) {
	s.registerGetProfileTool(srv)
	s.registerUpdateProfileTool(srv)
	s.registerFillPageTool(srv)
	s.registerSetSiteDisabledTool(srv)
	s.registerGetSiteDisabledTool(srv)
}

// --- get_profile ---

func (s *Service) registerGetProfileTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formagent_get_profile",
		Description: "Get the current autofill profile as a key/value object.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	ep := func(ctx context.Context, _ any) (any, error) {
		var resp bus.GetProfileResponse
		if err := s.bus.CallJSON(ctx, bus.MsgGetProfile, nil, &resp); err != nil {
			return nil, err
		}
		if resp.Profile == nil {
			return profile.New(), nil
		}
		return resp.Profile, nil
	}

	decode := func(_ *mcp.CallToolRequest) (any, error) { return nil, nil }

	registerTool(srv, tool, ep, decode)
}

// --- update_profile ---

type updateProfileRequest struct {
	Data *profile.Profile `json:"data"`
}

func (s *Service) registerUpdateProfileTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formagent_update_profile",
		Description: "Replace the autofill profile. The given object becomes the whole profile; omitted keys are removed.",
		InputSchema: inputSchema(map[string]any{
			"data": map[string]any{"type": "object", "description": "Full profile as string key/value pairs"},
		}, []string{"data"}),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*updateProfileRequest)
		if r.Data == nil {
			return nil, fmt.Errorf("data is required")
		}
		var resp bus.UpdateProfileResponse
		if err := s.bus.CallJSON(ctx, bus.MsgUpdateProfile, bus.UpdateProfileRequest{Data: r.Data}, &resp); err != nil {
			return nil, err
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r updateProfileRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, ep, decode)
}

// --- fill_page ---

type fillPageRequest struct {
	URL string `json:"url,omitempty"`
}

func (s *Service) registerFillPageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formagent_fill_page",
		Description: "Fill forms from the profile. With a URL, opens and watches that page first; without one, re-fills every watched page.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page to open and fill (optional)"},
		}, nil),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*fillPageRequest)
		if r.URL != "" {
			if s.scanner == nil {
				return nil, fmt.Errorf("no browser attached")
			}
			n, err := s.scanner.Open(ctx, r.URL)
			if err != nil {
				return nil, err
			}
			return bus.FillNowResponse{Success: true, Filled: n}, nil
		}

		var resp bus.FillNowResponse
		if err := s.bus.CallJSON(ctx, bus.MsgFillNow, nil, &resp); err != nil {
			return nil, err
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r fillPageRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, ep, decode)
}

// --- set_site_disabled ---

type setSiteDisabledRequest struct {
	Host       string `json:"host"`
	IsDisabled bool   `json:"is_disabled"`
}

func (s *Service) registerSetSiteDisabledTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formagent_set_site_disabled",
		Description: "Enable or disable autofill for a hostname.",
		InputSchema: inputSchema(map[string]any{
			"host":        map[string]any{"type": "string", "description": "Hostname, e.g. bank.example.com"},
			"is_disabled": map[string]any{"type": "boolean", "description": "true suppresses filling on the host"},
		}, []string{"host"}),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*setSiteDisabledRequest)
		if r.Host == "" {
			return nil, fmt.Errorf("host is required")
		}
		var ack bus.AckResponse
		msg := bus.SetSiteDisabledRequest{Host: r.Host, IsDisabled: r.IsDisabled}
		if err := s.bus.CallJSON(ctx, bus.MsgSetSiteDisabled, msg, &ack); err != nil {
			return nil, err
		}
		return map[string]any{"host": r.Host, "is_disabled": r.IsDisabled}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r setSiteDisabledRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, ep, decode)
}

// --- get_site_disabled ---

type getSiteDisabledRequest struct {
	Host string `json:"host"`
}

func (s *Service) registerGetSiteDisabledTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formagent_get_site_disabled",
		Description: "Check whether autofill is disabled for a hostname.",
		InputSchema: inputSchema(map[string]any{
			"host": map[string]any{"type": "string", "description": "Hostname to check"},
		}, []string{"host"}),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*getSiteDisabledRequest)
		if r.Host == "" {
			return nil, fmt.Errorf("host is required")
		}
		var resp bus.GetSiteDisabledResponse
		if err := s.bus.CallJSON(ctx, bus.MsgGetSiteDisabled, bus.GetSiteDisabledRequest{Host: r.Host}, &resp); err != nil {
			return nil, err
		}
		return map[string]any{"host": r.Host, "is_disabled": resp.IsDisabled}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r getSiteDisabledRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	registerTool(srv, tool, ep, decode)
}
