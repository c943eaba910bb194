package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/lookup"
	"github.com/kalambet/wrench/internal/session"
	"github.com/kalambet/wrench/internal/vehicle"
)

// recentLimit is the number of records served by history://recent.
const recentLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Sessions *session.Registry
	History  *history.Store
	Version  string
}

// NewMCPServer creates an MCP server with the lookup tools and the history
// resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"wrench",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("wrench looks up parts, specifications and installation guides for a vehicle service, and keeps a history of saved lookups."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("service_lookup",
			mcp.WithDescription("Look up the parts, specifications and how-to guides for a service on a vehicle."),
			mcp.WithString(vehicle.FieldYear, mcp.Description("Model year, e.g. 2020"), mcp.Required()),
			mcp.WithString(vehicle.FieldMake, mcp.Description("Manufacturer, e.g. Toyota"), mcp.Required()),
			mcp.WithString(vehicle.FieldModel, mcp.Description("Model, e.g. Camry"), mcp.Required()),
			mcp.WithString(vehicle.FieldServiceType, mcp.Description("Service to perform, e.g. Oil Change"), mcp.Required()),
			mcp.WithString(vehicle.FieldEngine, mcp.Description("Engine, e.g. 2.5L I4")),
			mcp.WithString(vehicle.FieldDrivetrain, mcp.Description("One of FWD, RWD, AWD, 4WD")),
			mcp.WithString("session_id", mcp.Description("Reuse an earlier session; a new one is created when empty or unknown")),
		),
		mcpServiceLookup(deps),
	)

	s.AddTool(
		mcp.NewTool("save_lookup",
			mcp.WithDescription("Save the last successful lookup of a session to the history."),
			mcp.WithString("session_id", mcp.Description("Session returned by service_lookup"), mcp.Required()),
		),
		mcpSaveLookup(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Lookups",
			mcp.WithResourceDescription(fmt.Sprintf("Last %d saved lookups (summaries only)", recentLimit)),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

type lookupResult struct {
	SessionID string         `json:"session_id"`
	Query     *vehicle.Spec  `json:"query"`
	Result    *lookup.Result `json:"result"`
	Omitted   *OmittedView   `json:"omitted,omitempty"`
}

func mcpServiceLookup(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fields := make(map[string]string)
		for _, f := range []string{
			vehicle.FieldYear, vehicle.FieldMake, vehicle.FieldModel,
			vehicle.FieldEngine, vehicle.FieldDrivetrain, vehicle.FieldServiceType,
		} {
			if v := req.GetString(f, ""); v != "" {
				fields[f] = v
			}
		}

		s := deps.Sessions.GetOrCreate(req.GetString("session_id", ""))
		st := s.Run(ctx, fields)

		switch st.Phase {
		case session.Failed:
			return mcpError(fmt.Sprintf("lookup failed (%s): %v", st.ErrKind(), st.Err)), nil
		case session.Superseded:
			return mcpError("lookup superseded by a newer submission in the same session"), nil
		}

		out := lookupResult{
			SessionID: s.ID(),
			Query:     st.Query,
			Result:    st.Result,
			Omitted:   newOmittedView(st.Omitted),
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSaveLookup(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}
		s, err := deps.Sessions.Get(id)
		if err != nil {
			return mcpError(fmt.Sprintf("unknown session %s", id)), nil
		}
		rec, err := s.Save(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Saved lookup %s", rec.ID)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.History.List(ctx, recentLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}

		type recordSummary struct {
			ID          string `json:"id"`
			CreatedAt   string `json:"created_at"`
			Vehicle     string `json:"vehicle"`
			ServiceType string `json:"service_type"`
			Parts       int    `json:"parts"`
			Guides      int    `json:"guides"`
		}

		summaries := make([]recordSummary, len(records))
		for i, rec := range records {
			summaries[i] = recordSummary{
				ID:          rec.ID,
				CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
				Vehicle:     rec.Query.Vehicle(),
				ServiceType: rec.Query.ServiceType,
				Parts:       len(rec.Result.Parts),
				Guides:      len(rec.Result.Guides),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
