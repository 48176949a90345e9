package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("CORTEX_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("CORTEX_API_KEY")

	s := server.NewMCPServer(
		"cortex",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	mapTool := mcp.NewTool("map",
		mcp.WithDescription("Crawl a domain and build (or rebuild) its site map: pages, links, and per-page classification."),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Domain to map, e.g. example.com")),
		mcp.WithNumber("max_pages", mcp.Description("Maximum pages to crawl (default: server's configured max)")),
	)
	s.AddTool(mapTool, handleMap(apiURL, apiKey))

	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Query a domain's cached site map by page type, feature range, or nearest-neighbor feature similarity."),
		mcp.WithString("domain", mcp.Required()),
		mcp.WithArray("page_types", mcp.Description("Filter to these page types, e.g. [\"product_detail\",\"cart\"]")),
		mcp.WithNumber("limit", mcp.Description("Maximum matches to return")),
	)
	s.AddTool(queryTool, handleQuery(apiURL, apiKey))

	pathTool := mcp.NewTool("pathfind",
		mcp.WithDescription("Find the lowest-cost path between two nodes of a domain's site map."),
		mcp.WithString("domain", mcp.Required()),
		mcp.WithNumber("from", mcp.Required(), mcp.Description("Source node index")),
		mcp.WithNumber("to", mcp.Required(), mcp.Description("Target node index")),
		mcp.WithBoolean("avoid_auth", mcp.Description("Avoid edges requiring authentication")),
	)
	s.AddTool(pathTool, handlePath(apiURL, apiKey))

	perceiveTool := mcp.NewTool("perceive",
		mcp.WithDescription("Render a single URL and return its classification, feature vector, and (optionally) cleaned Markdown content."),
		mcp.WithString("url", mcp.Required()),
		mcp.WithBoolean("include_content", mcp.Description("Also return Markdown content")),
	)
	s.AddTool(perceiveTool, handlePerceive(apiURL, apiKey))

	refreshTool := mcp.NewTool("refresh",
		mcp.WithDescription("Re-render selected nodes of a domain's cached site map and report which changed."),
		mcp.WithString("domain", mcp.Required()),
	)
	s.AddTool(refreshTool, handleRefresh(apiURL, apiKey))

	watchTool := mcp.NewTool("watch",
		mcp.WithDescription("Poll a domain's cached site map for a bounded duration and report each detected change as it's found."),
		mcp.WithString("domain", mcp.Required()),
		mcp.WithNumber("duration_ms", mcp.Description("How long to poll, in milliseconds (default: 30000)")),
	)
	s.AddTool(watchTool, handleWatch(apiURL, apiKey))

	actTool := mcp.NewTool("act",
		mcp.WithDescription("Execute an action (click, fill input, submit form, add to cart, ...) against a live page."),
		mcp.WithString("url", mcp.Required()),
		mcp.WithNumber("category", mcp.Required(), mcp.Description("Opcode category byte")),
		mcp.WithNumber("action", mcp.Required(), mcp.Description("Opcode action byte")),
		mcp.WithString("selector", mcp.Description("CSS selector for the target element, if applicable")),
		mcp.WithString("value", mcp.Description("Value to fill, if applicable")),
	)
	s.AddTool(actTool, handleAct(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Cortex API and returns the raw
// response body, the same thin-proxy shape the teacher's MCP command
// uses against its own HTTP API.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleMap(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		payload := map[string]interface{}{}
		if args := request.GetArguments(); args != nil {
			if maxPages, ok := args["max_pages"]; ok {
				payload["max_pages"] = maxPages
			}
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/map/"+domain, payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("map request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func handleQuery(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		payload := map[string]interface{}{}
		args := request.GetArguments()
		if pageTypes, ok := args["page_types"]; ok {
			payload["page_types"] = pageTypes
		}
		if limit, ok := args["limit"]; ok {
			payload["limit"] = limit
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/map/"+domain+"/query", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func handlePath(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		args := request.GetArguments()
		payload := map[string]interface{}{
			"from":       args["from"],
			"to":         args["to"],
			"avoid_auth": args["avoid_auth"],
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/map/"+domain+"/path", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("path request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func handlePerceive(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{
			"url":             url,
			"include_content": request.GetBool("include_content", false),
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/perceive", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("perceive request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func handleRefresh(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/refresh", map[string]interface{}{"domain": domain})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("refresh request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func handleWatch(apiURL, apiKey string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		durationMs := int64(request.GetFloat("duration_ms", 30000))
		client := &http.Client{Timeout: time.Duration(durationMs)*time.Millisecond + 30*time.Second}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/watch", map[string]interface{}{
			"domain":      domain,
			"duration_ms": durationMs,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("watch request failed: %v", err)), nil
		}
		// The API streams SSE events; the full event log is returned as
		// text since polling/parsing happens on the agent side.
		return mcp.NewToolResultText(string(body)), nil
	}
}

func handleAct(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{
			"url":      url,
			"category": request.GetFloat("category", 0),
			"action":   request.GetFloat("action", 0),
			"params": map[string]string{
				"selector": request.GetString("selector", ""),
				"value":    request.GetString("value", ""),
			},
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/act", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("act request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
