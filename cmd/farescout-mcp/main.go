package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// destination mirrors the farescout API destination model.
type destination struct {
	City     string `json:"city"`
	IATACode string `json:"iata_code,omitempty"`
}

// searchRequest mirrors the farescout API search request.
type searchRequest struct {
	Destinations  []destination `json:"destinations,omitempty"`
	DepartureDate string        `json:"departure_date,omitempty"`
	ReturnDate    string        `json:"return_date,omitempty"`
	Budget        float64       `json:"budget"`
	MaxResults    int           `json:"max_results,omitempty"`
}

// offer mirrors the farescout API flight offer.
type offer struct {
	ID            string  `json:"id,omitempty"`
	City          string  `json:"city"`
	Code          string  `json:"code,omitempty"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	ScreenshotRef string  `json:"screenshot"`
	PageURL       string  `json:"page_url"`
	DepartureDate string  `json:"departure_date,omitempty"`
	ReturnDate    string  `json:"return_date,omitempty"`
}

// searchResponse mirrors the farescout API search response.
type searchResponse struct {
	Success           bool    `json:"success"`
	Results           []offer `json:"results"`
	ElapsedMs         int64   `json:"elapsed_ms"`
	TerminationReason string  `json:"termination_reason"`
	Error             string  `json:"error"`
	ErrorCode         string  `json:"error_code"`
}

// suggestRequest mirrors the farescout API suggestion request.
type suggestRequest struct {
	DepartureDate string  `json:"departure_date"`
	ReturnDate    string  `json:"return_date"`
	Budget        float64 `json:"budget"`
	Weather       string  `json:"weather,omitempty"`
	Count         int     `json:"count,omitempty"`
}

// suggestResponse mirrors the farescout API suggestion response.
type suggestResponse struct {
	Success      bool          `json:"success"`
	Destinations []destination `json:"destinations"`
	Error        string        `json:"error"`
	ErrorCode    string        `json:"error_code"`
}

// offersResponse mirrors the farescout API saved offers response.
type offersResponse struct {
	Success   bool    `json:"success"`
	Offers    []offer `json:"offers"`
	Error     string  `json:"error"`
	ErrorCode string  `json:"error_code"`
}

func main() {
	apiURL := os.Getenv("FARESCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("FARESCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "FARESCOUT_API_KEY is required")
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(apiURL, apiKey)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"farescout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_flights",
		mcp.WithDescription("Search for round-trip flights from the configured origin city within a budget. Returns the cheapest offer per destination with a screenshot of the fare. Omit cities to explore every destination."),
		mcp.WithNumber("budget",
			mcp.Required(),
			mcp.Description("Maximum total price for the round trip"),
		),
		mcp.WithArray("cities",
			mcp.Description("Destination cities to check, in order. Leave empty to explore anywhere."),
		),
		mcp.WithString("departure_date",
			mcp.Description("Outbound date, YYYY-MM-DD. Required when cities are given."),
		),
		mcp.WithString("return_date",
			mcp.Description("Return date, YYYY-MM-DD. Required when cities are given."),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Stop after this many offers (default: server setting)"),
		),
	)
	s.AddTool(searchTool, handleSearchFlights(apiURL, apiKey))

	suggestTool := mcp.NewTool("suggest_destinations",
		mcp.WithDescription("Ask an LLM for destination cities that fit a budget, dates and desired weather. Feed the result into search_flights."),
		mcp.WithString("departure_date",
			mcp.Required(),
			mcp.Description("Outbound date, YYYY-MM-DD"),
		),
		mcp.WithString("return_date",
			mcp.Required(),
			mcp.Description("Return date, YYYY-MM-DD"),
		),
		mcp.WithNumber("budget",
			mcp.Required(),
			mcp.Description("Maximum total price for the round trip"),
		),
		mcp.WithString("weather",
			mcp.Description("Desired weather, e.g. 'warm' or '20-25°C'"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of cities to suggest (default: 20, max: 40)"),
		),
	)
	s.AddTool(suggestTool, handleSuggestDestinations(apiURL, apiKey))

	offersTool := mcp.NewTool("list_saved_offers",
		mcp.WithDescription("List flight offers previously saved with this API key, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of offers to return (default: 50)"),
		),
	)
	s.AddTool(offersTool, handleListOffers(apiURL, apiKey))

	return s
}

// apiDo sends a request to the farescout API and returns the response body.
func apiDo(ctx context.Context, client *http.Client, method, apiURL, apiKey, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(apiURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func apiError(msg, code, fallback string) string {
	if msg == "" {
		msg = fallback
	}
	if code != "" {
		return fmt.Sprintf("%s (%s)", msg, code)
	}
	return msg
}

func handleSearchFlights(apiURL, apiKey string) server.ToolHandlerFunc {
	// Searches visit one destination after another; allow for the server cap.
	client := &http.Client{Timeout: 16 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		budget, err := request.RequireFloat("budget")
		if err != nil || budget <= 0 {
			return mcp.NewToolResultError("budget is required and must be positive"), nil
		}

		reqBody := searchRequest{
			DepartureDate: request.GetString("departure_date", ""),
			ReturnDate:    request.GetString("return_date", ""),
			Budget:        budget,
			MaxResults:    request.GetInt("max_results", 0),
		}
		for _, city := range request.GetStringSlice("cities", nil) {
			if city = strings.TrimSpace(city); city != "" {
				reqBody.Destinations = append(reqBody.Destinations, destination{City: city})
			}
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL, apiKey, "/api/v1/flights/search", reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search request failed: %v", err)), nil
		}

		var resp searchResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success && len(resp.Results) == 0 {
			return mcp.NewToolResultError(apiError(resp.Error, resp.ErrorCode, "search failed")), nil
		}

		return mcp.NewToolResultText(formatSearch(apiURL, &resp)), nil
	}
}

func formatSearch(apiURL string, resp *searchResponse) string {
	var sb strings.Builder
	if len(resp.Results) == 0 {
		fmt.Fprintf(&sb, "No flights found within budget (%s, %.1fs).\n", resp.TerminationReason, float64(resp.ElapsedMs)/1000)
		return sb.String()
	}

	fmt.Fprintf(&sb, "Found %d offer(s) (%s, %.1fs):\n\n", len(resp.Results), resp.TerminationReason, float64(resp.ElapsedMs)/1000)
	for i, o := range resp.Results {
		fmt.Fprintf(&sb, "%d. %s: %.2f %s\n", i+1, o.City, o.Price, o.Currency)
		fmt.Fprintf(&sb, "   Booking page: %s\n", o.PageURL)
		fmt.Fprintf(&sb, "   Screenshot: %s%s\n", strings.TrimRight(apiURL, "/"), o.ScreenshotRef)
	}
	if !resp.Success {
		fmt.Fprintf(&sb, "\nThe search stopped early: %s\n", apiError(resp.Error, resp.ErrorCode, "unknown error"))
	}
	return sb.String()
}

func handleSuggestDestinations(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 90 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		from, err := request.RequireString("departure_date")
		if err != nil {
			return mcp.NewToolResultError("departure_date is required"), nil
		}
		to, err := request.RequireString("return_date")
		if err != nil {
			return mcp.NewToolResultError("return_date is required"), nil
		}
		budget, err := request.RequireFloat("budget")
		if err != nil {
			return mcp.NewToolResultError("budget is required"), nil
		}

		reqBody := suggestRequest{
			DepartureDate: from,
			ReturnDate:    to,
			Budget:        budget,
			Weather:       request.GetString("weather", ""),
			Count:         request.GetInt("count", 0),
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL, apiKey, "/api/v1/destinations/suggest", reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("suggest request failed: %v", err)), nil
		}

		var resp suggestResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(apiError(resp.Error, resp.ErrorCode, "suggestion failed")), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d suggested destination(s):\n", len(resp.Destinations))
		for _, d := range resp.Destinations {
			if d.IATACode != "" {
				fmt.Fprintf(&sb, "- %s (%s)\n", d.City, d.IATACode)
			} else {
				fmt.Fprintf(&sb, "- %s\n", d.City)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleListOffers(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := "/api/v1/offers"
		if limit := request.GetInt("limit", 0); limit > 0 {
			path += fmt.Sprintf("?limit=%d", limit)
		}

		respBody, err := apiDo(ctx, client, http.MethodGet, apiURL, apiKey, path, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("offers request failed: %v", err)), nil
		}

		var resp offersResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(apiError(resp.Error, resp.ErrorCode, "listing offers failed")), nil
		}
		if len(resp.Offers) == 0 {
			return mcp.NewToolResultText("No saved offers."), nil
		}

		var sb strings.Builder
		for _, o := range resp.Offers {
			fmt.Fprintf(&sb, "- %s %s..%s: %.2f %s [%s]\n", o.City, o.DepartureDate, o.ReturnDate, o.Price, o.Currency, o.ID)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
