package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/mobi/internal/dispatch"
)

const recentLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Assistant Assistant
	History   HistoryStore
	Version   string
}

// NewMCPServer creates an MCP server exposing the assistant as tools and
// the recent history as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"mobi",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("mobi is a personal assistant: it answers questions, opens websites, tells the time and sends WhatsApp messages."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Send a request to the assistant, e.g. \"what is photosynthesis\" or \"open youtube\"."),
			mcp.WithString("text", mcp.Description("The request text"), mcp.Required()),
			mcp.WithArray("followups", mcp.Description("Answers to follow-up questions, in order (phone number, message, topic)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_history",
			mcp.WithDescription("Delete every stored conversation entry."),
		),
		mcpClearHistory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Conversation",
			mcp.WithResourceDescription(fmt.Sprintf("Last %d handled requests and replies", recentLimit)),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		followUps := req.GetStringSlice("followups", nil)

		u := dispatch.NewUtterance(text, dispatch.SourceTyped)
		res := deps.Assistant.Handle(ctx, u, scriptedPrompter(followUps))

		b, err := json.Marshal(newDispatchResponse(res))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClearHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := deps.History.ClearHistory(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to clear history: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Deleted %d history entries", n)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		recs, err := deps.History.ListHistory(ctx, recentLimit, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent history: %w", err)
		}

		type entry struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Query     string `json:"query"`
			Result    string `json:"result"`
			Status    string `json:"status"`
		}

		entries := make([]entry, len(recs))
		for i, rec := range recs {
			entries[i] = entry{
				ID:        rec.ID,
				CreatedAt: rec.CreatedAt.Format(time.RFC3339),
				Query:     clip(rec.UserInput, 200),
				Result:    clip(rec.Response, 500),
				Status:    rec.Status,
			}
		}

		b, err := json.Marshal(entries)
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

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
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
