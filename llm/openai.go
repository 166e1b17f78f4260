package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/models"
)

// Client is a lightweight OpenAI-compatible API client for destination
// suggestions. It uses net/http directly.
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
	origin     string
	currency   string
}

// NewClient creates a new LLM client. Pass a nil httpClient to get one with
// cfg.Timeout.
func NewClient(httpClient *http.Client, cfg config.LLMConfig, origin, currency string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{httpClient: httpClient, cfg: cfg, origin: origin, currency: currency}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

// SuggestParams describes the trip the suggestions are for.
type SuggestParams struct {
	DepartureDate string
	ReturnDate    string
	Budget        float64
	Weather       string
	Count         int
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// jsonArray finds the outermost JSON array in a chatty completion.
var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

// suggestion is one element of the array the model is asked to return.
type suggestion struct {
	City string `json:"city"`
	Code string `json:"code"`
}

// SuggestDestinations asks the model for cities reachable from the origin
// within budget and returns them as destinations.
func (c *Client) SuggestDestinations(ctx context.Context, p SuggestParams) ([]models.Destination, error) {
	prompt := fmt.Sprintf(`Suggest %d different cities I could fly to from %s for %s%.0f or less in total flight cost, travelling from %s to %s.`,
		p.Count, c.origin, currencySymbol(c.currency), p.Budget, p.DepartureDate, p.ReturnDate)
	if w := strings.TrimSpace(p.Weather); w != "" {
		prompt += fmt.Sprintf(" The forecast there should be %s.", w)
	}
	prompt += arrayInstructions

	dests, err := c.askForCities(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if p.Count > 0 && len(dests) > p.Count {
		dests = dests[:p.Count]
	}
	return dests, nil
}

// AirportCodes asks the model for the main IATA airport of each city.
func (c *Client) AirportCodes(ctx context.Context, cities []string) ([]models.Destination, error) {
	prompt := fmt.Sprintf("Give the IATA code of the main airport for each of these cities: %s.%s",
		strings.Join(cities, ", "), arrayInstructions)
	return c.askForCities(ctx, prompt)
}

const arrayInstructions = `

Respond with ONLY a JSON array of objects with "city" and "code" properties, where "code" is the IATA code of the city's main airport.
Example: [{"city": "Lisbon", "code": "LIS"}, {"city": "Barcelona", "code": "BCN"}]`

func (c *Client) askForCities(ctx context.Context, prompt string) ([]models.Destination, error) {
	if !c.Enabled() {
		return nil, models.NewScrapeError(models.ErrCodeLLMAuthFailure, "LLM API key is not configured", nil)
	}
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseCities(content)
}

// complete sends a single user message and returns the first choice.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	// Build URL: baseURL + /chat/completions
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "failed to read LLM response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "failed to parse LLM response", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// parseCities pulls the JSON array out of the completion, dropping entries
// without a city and duplicates.
func parseCities(content string) ([]models.Destination, error) {
	raw := jsonArray.FindString(content)
	if raw == "" {
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "LLM response contains no JSON array", nil)
	}
	var items []suggestion
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned invalid JSON", err)
	}

	seen := make(map[string]bool, len(items))
	out := make([]models.Destination, 0, len(items))
	for _, it := range items {
		city := strings.TrimSpace(it.City)
		key := strings.ToLower(city)
		if city == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Destination{
			City:     city,
			IATACode: strings.ToUpper(strings.TrimSpace(it.Code)),
		})
	}
	return out, nil
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "EUR":
		return "€"
	case "USD":
		return "$"
	case "GBP":
		return "£"
	}
	return code + " "
}

// classifyLLMError maps HTTP status codes to appropriate error codes.
func classifyLLMError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeLLMAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeLLMRateLimited, msg, nil)
	default:
		return models.NewScrapeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}
