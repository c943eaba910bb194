package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func newTestMCPDeps(t *testing.T, inv *fakeInvoker) (MCPDeps, *testEnv) {
	t.Helper()
	env := setup(t, inv)
	return MCPDeps{Sessions: env.sessions, History: env.history, Version: "test"}, env
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

var lookupArgs = map[string]any{
	"year":         "2020",
	"make":         "Toyota",
	"model":        "Camry",
	"service_type": "Oil Change",
	"drivetrain":   "fwd",
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &fakeInvoker{raw: cannedResponse})
	if NewMCPServer(deps) == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_ServiceLookup(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &fakeInvoker{raw: cannedResponse})

	result, err := mcpServiceLookup(deps)(context.Background(), makeCallToolRequest("service_lookup", lookupArgs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var out lookupResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if out.SessionID == "" {
		t.Error("missing session id")
	}
	if out.Query == nil || out.Query.Drivetrain != "FWD" {
		t.Errorf("query = %+v, want canonical drivetrain", out.Query)
	}
	if out.Result == nil || len(out.Result.Parts) != 1 {
		t.Errorf("result = %+v", out.Result)
	}
}

func TestMCPTool_ServiceLookup_ReusesSession(t *testing.T) {
	deps, env := newTestMCPDeps(t, &fakeInvoker{raw: cannedResponse})
	handler := mcpServiceLookup(deps)

	first, _ := handler(context.Background(), makeCallToolRequest("service_lookup", lookupArgs))
	var out lookupResult
	if err := json.Unmarshal([]byte(toolText(t, first)), &out); err != nil {
		t.Fatalf("parsing result: %v", err)
	}

	args := map[string]any{"session_id": out.SessionID}
	for k, v := range lookupArgs {
		args[k] = v
	}
	second, _ := handler(context.Background(), makeCallToolRequest("service_lookup", args))
	var again lookupResult
	if err := json.Unmarshal([]byte(toolText(t, second)), &again); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if again.SessionID != out.SessionID {
		t.Errorf("session id = %s, want %s", again.SessionID, out.SessionID)
	}
	if env.sessions.Len() != 1 {
		t.Errorf("registry holds %d sessions, want 1", env.sessions.Len())
	}
}

func TestMCPTool_ServiceLookup_Invalid(t *testing.T) {
	inv := &fakeInvoker{raw: cannedResponse}
	deps, _ := newTestMCPDeps(t, inv)

	result, err := mcpServiceLookup(deps)(context.Background(), makeCallToolRequest("service_lookup", map[string]any{
		"year": "2020", "make": "Toyota", "model": "Camry", "service_type": "Oil Change", "drivetrain": "front",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if text := toolText(t, result); !strings.Contains(text, "validation") {
		t.Errorf("error text = %q, want validation kind", text)
	}
	if inv.calls != 0 {
		t.Errorf("service called %d times", inv.calls)
	}
}

func TestMCPTool_SaveLookup(t *testing.T) {
	deps, env := newTestMCPDeps(t, &fakeInvoker{raw: cannedResponse})

	res, _ := mcpServiceLookup(deps)(context.Background(), makeCallToolRequest("service_lookup", lookupArgs))
	var out lookupResult
	if err := json.Unmarshal([]byte(toolText(t, res)), &out); err != nil {
		t.Fatalf("parsing result: %v", err)
	}

	saved, err := mcpSaveLookup(deps)(context.Background(), makeCallToolRequest("save_lookup", map[string]any{
		"session_id": out.SessionID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, saved))
	}

	records, err := env.history.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || !strings.Contains(toolText(t, saved), records[0].ID) {
		t.Errorf("saved text %q, records %d", toolText(t, saved), len(records))
	}
}

func TestMCPTool_SaveLookup_Errors(t *testing.T) {
	deps, env := newTestMCPDeps(t, &fakeInvoker{raw: cannedResponse})
	handler := mcpSaveLookup(deps)

	missing, _ := handler(context.Background(), makeCallToolRequest("save_lookup", map[string]any{}))
	if !missing.IsError {
		t.Error("missing session_id accepted")
	}

	unknown, _ := handler(context.Background(), makeCallToolRequest("save_lookup", map[string]any{"session_id": "nope"}))
	if !unknown.IsError {
		t.Error("unknown session accepted")
	}

	s := env.sessions.Create()
	idle, _ := handler(context.Background(), makeCallToolRequest("save_lookup", map[string]any{"session_id": s.ID()}))
	if !idle.IsError {
		t.Error("saving an idle session succeeded")
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, env := newTestMCPDeps(t, &fakeInvoker{raw: cannedResponse})
	ctx := context.Background()

	s := env.sessions.Create()
	for range recentLimit + 2 {
		s.Run(ctx, map[string]string{"year": "2020", "make": "Toyota", "model": "Camry", "service_type": "Oil Change"})
		if _, err := s.Save(ctx); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	contents, err := mcpResourceRecent(deps)(ctx, makeReadResourceRequest("history://recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var summaries []struct {
		ID      string `json:"id"`
		Vehicle string `json:"vehicle"`
		Parts   int    `json:"parts"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &summaries); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(summaries) != recentLimit {
		t.Fatalf("got %d summaries, want %d", len(summaries), recentLimit)
	}
	if summaries[0].Vehicle != "2020 Toyota Camry" || summaries[0].Parts != 1 {
		t.Errorf("summary = %+v", summaries[0])
	}
}

func TestMCPServer_ConcurrentLookups(t *testing.T) {
	deps, env := newTestMCPDeps(t, &fakeInvoker{raw: cannedResponse})
	handler := mcpServiceLookup(deps)

	var wg sync.WaitGroup
	errs := make(chan string, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := handler(context.Background(), makeCallToolRequest("service_lookup", lookupArgs))
			if err != nil {
				errs <- err.Error()
				return
			}
			if res.IsError {
				errs <- "tool returned an error result"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("concurrent lookup failed: %s", e)
	}
	if env.sessions.Len() != 8 {
		t.Errorf("registry holds %d sessions, want the cap of 8", env.sessions.Len())
	}
}
