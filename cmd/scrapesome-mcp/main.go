// Command scrapesome-mcp exposes the fetch API as an MCP tool over stdio,
// so MCP-capable clients can pull rendered web content through a running
// scrapesome instance.
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

// fetchRequest mirrors the scrapesome API request model.
type fetchRequest struct {
	URL          string `json:"url"`
	OutputFormat string `json:"output_format,omitempty"`
	ExtractMode  string `json:"extract_mode,omitempty"`
	ForceRender  bool   `json:"force_render,omitempty"`
}

// fetchResponse mirrors the scrapesome API response model.
type fetchResponse struct {
	Success      bool   `json:"success"`
	Data         string `json:"data"`
	SourceMethod string `json:"source_method"`
	Metadata     *struct {
		Title     string `json:"title"`
		SourceURL string `json:"source_url"`
	} `json:"metadata"`
	Tokens *struct {
		OriginalEstimate  int     `json:"original_estimate"`
		FormattedEstimate int     `json:"formatted_estimate"`
		SavingsPercent    float64 `json:"savings_percent"`
	} `json:"tokens"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SCRAPESOME_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SCRAPESOME_API_KEY")

	s := server.NewMCPServer(
		"scrapesome",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	fetchURLTool := mcp.NewTool("fetch_url",
		mcp.WithDescription("Fetch a web page and return its content (markdown/text/html/json). Tries lightweight HTTP first and falls back to a headless browser for JavaScript-heavy or bot-protected pages."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to fetch"),
		),
		mcp.WithString("output_format",
			mcp.Description("Output format: 'markdown' (default), 'text' (plain text), 'html', or 'json'"),
			mcp.Enum("markdown", "text", "html", "json"),
		),
		mcp.WithString("extract_mode",
			mcp.Description("Content extraction mode: 'readability' (default, extracts main article) or 'raw' (full page)"),
			mcp.Enum("readability", "raw"),
		),
		mcp.WithBoolean("force_render",
			mcp.Description("Skip the HTTP attempt and render directly in the headless browser"),
		),
	)

	s.AddTool(fetchURLTool, handleFetchURL(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleFetchURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := fetchRequest{
			URL:          url,
			OutputFormat: request.GetString("output_format", ""),
			ExtractMode:  request.GetString("extract_mode", ""),
			ForceRender:  request.GetBool("force_render", false),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/fetch", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var fetchResp fetchResponse
		if err := json.Unmarshal(respBody, &fetchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !fetchResp.Success {
			errMsg := "fetch failed"
			if fetchResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", fetchResp.Error.Code, fetchResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		// Build result with metadata header
		var result string
		if fetchResp.Metadata != nil {
			m := fetchResp.Metadata
			result = fmt.Sprintf("Title: %s\nSource: %s\nVia: %s\n\n", m.Title, m.SourceURL, fetchResp.SourceMethod)
		}
		result += fetchResp.Data

		if fetchResp.Tokens != nil {
			t := fetchResp.Tokens
			result += fmt.Sprintf("\n\n---\nTokens: %d (saved %.0f%% from original %d)",
				t.FormattedEstimate, t.SavingsPercent, t.OriginalEstimate)
		}

		return mcp.NewToolResultText(result), nil
	}
}
