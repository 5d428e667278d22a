package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/shopspring/decimal"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = "You read receipts, bank notifications and expense emails and extract a single business expense. Always respond with one valid JSON object."

var userTemplate = template.Must(template.New("extract").Parse(`Extract the expense from this {{.Source}} capture.
Known categories: {{.Categories}}.
Today is {{.Today}}.

Respond with JSON using exactly these keys:
{"merchant": string, "amount": string decimal, "currency": ISO 4217 code,
 "category": one of the known categories or "", "description": short string,
 "expense_date": "YYYY-MM-DD", "confidence": "high" | "medium" | "low"}

Capture:
{{.Text}}`))

// chatClient is the part of the OpenAI client the extractor uses
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds extractor settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Categories  []string
	// Timeout bounds each API call. Zero keeps the client default.
	Timeout time.Duration
}

// Extractor implements port.Extractor with a chat completion model
type Extractor struct {
	client      chatClient
	model       string
	temperature float32
	categories  []string
	logger      *zap.Logger
	now         func() time.Time
}

// NewExtractor creates a new OpenAI-backed extractor
func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return newExtractor(openai.NewClientWithConfig(clientCfg), model, cfg.Temperature, cfg.Categories, logger)
}

func newExtractor(client chatClient, model string, temperature float32, categories []string, logger *zap.Logger) *Extractor {
	return &Extractor{
		client:      client,
		model:       model,
		temperature: temperature,
		categories:  categories,
		logger:      logger,
		now:         time.Now,
	}
}

type extractionResponse struct {
	Merchant    string `json:"merchant"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ExpenseDate string `json:"expense_date"`
	Confidence  string `json:"confidence"`
}

// Extract asks the model for the expense fields of a capture
func (e *Extractor) Extract(ctx context.Context, input port.CaptureInput) (*port.Extraction, error) {
	var prompt bytes.Buffer
	if err := userTemplate.Execute(&prompt, map[string]string{
		"Source":     string(input.Source),
		"Categories": strings.Join(e.categories, ", "),
		"Today":      e.now().Format(time.DateOnly),
		"Text":       input.Text,
	}); err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	var parsed extractionResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &parsed) != nil {
			e.logger.Error("Failed to parse OpenAI response", zap.Error(err), zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return e.toExtraction(parsed), nil
}

func (e *Extractor) toExtraction(r extractionResponse) *port.Extraction {
	out := &port.Extraction{
		Merchant:    strings.TrimSpace(r.Merchant),
		Currency:    strings.ToUpper(strings.TrimSpace(r.Currency)),
		Category:    e.matchCategory(r.Category),
		Description: strings.TrimSpace(r.Description),
		Confidence:  entity.ConfidenceLow,
	}

	cleaned := strings.NewReplacer(",", "", "$", "", "€", "", "£", "").Replace(strings.TrimSpace(r.Amount))
	if amount, err := decimal.NewFromString(cleaned); err == nil {
		out.Amount = amount
	}
	if d, err := time.Parse(time.DateOnly, strings.TrimSpace(r.ExpenseDate)); err == nil {
		out.ExpenseDate = d
	}
	if c, err := entity.ParseConfidence(r.Confidence); err == nil {
		out.Confidence = c
	}
	return out
}

// matchCategory keeps only categories from the catalogue, case-insensitively
func (e *Extractor) matchCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(e.categories) == 0 {
		return raw
	}
	for _, c := range e.categories {
		if strings.EqualFold(c, raw) {
			return c
		}
	}
	return ""
}

// extractJSON returns the first balanced {...} object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case c == '{' && !inString:
			depth++
		case c == '}' && !inString:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// Verify interface compliance
var _ port.Extractor = (*Extractor)(nil)
