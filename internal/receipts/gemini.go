package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for receipts when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// GeminiAnalyzer reads receipts with a Gemini vision model.
type GeminiAnalyzer struct {
	client   *genai.Client
	model    string
	registry *categories.Registry
}

// NewGeminiAnalyzer creates a Gemini client for receipt analysis.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, registry *categories.Registry) (*GeminiAnalyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiAnalyzer: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiAnalyzer{client: client, model: model, registry: registry}, nil
}

// Analyze implements Analyzer.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, image []byte, contentType string) (domain.ReceiptAnalysis, error) {
	if len(image) == 0 {
		return domain.ReceiptAnalysis{}, fmt.Errorf("Analyze: empty image")
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: receiptPrompt(a.registry)},
				{InlineData: &genai.Blob{MIMEType: contentType, Data: image}},
			},
		},
	}
	temperature := float32(0.1)
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return domain.ReceiptAnalysis{}, fmt.Errorf("Analyze: generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return domain.ReceiptAnalysis{}, fmt.Errorf("Analyze: empty response from model")
	}

	analysis, err := parseReceiptJSON(raw, a.registry)
	if err != nil {
		return domain.ReceiptAnalysis{}, fmt.Errorf("Analyze: %w", err)
	}
	return analysis, nil
}

func receiptPrompt(registry *categories.Registry) string {
	var b strings.Builder
	b.WriteString("You read photos of shop receipts.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract the purchase on the attached receipt.\n")
	b.WriteString("- Output STRICT JSON only: one object, no comments, no extra text.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"amount\": string, the total paid as a positive decimal (e.g. \"23.40\")\n")
	b.WriteString("- \"description\": string, a short description of the purchase\n")
	b.WriteString("- \"establishment\": string or null\n")
	b.WriteString("- \"category\": string (one of the category ids below)\n")
	b.WriteString("- \"type\": \"expense\" or \"income\" (refund receipts are income)\n")
	b.WriteString("- \"payment_method\": string or null (e.g. \"card\", \"cash\")\n")
	b.WriteString("- \"confidence\": number between 0 and 1\n")
	b.WriteString("- \"suggestions\": array of short strings the user should check\n\n")

	b.WriteString("Use ONLY the following category ids:\n")
	for _, c := range registry.Categories() {
		fmt.Fprintf(&b, "  - %s (%s)\n", c.ID, c.Name)
	}
	fmt.Fprintf(&b, "\nIf you are unsure, use category %q and lower the confidence.\n", categories.OtherCategoryID)
	b.WriteString("Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n")
	return b.String()
}

type modelReceipt struct {
	Amount        json.Number `json:"amount"`
	Description   string      `json:"description"`
	Establishment *string     `json:"establishment"`
	Category      string      `json:"category"`
	Type          string      `json:"type"`
	PaymentMethod *string     `json:"payment_method"`
	Confidence    *float64    `json:"confidence"`
	Suggestions   []string    `json:"suggestions"`
}

// parseReceiptJSON turns a model response into an analysis. Unknown or
// mismatched categories fall back to "other" and add a review suggestion.
func parseReceiptJSON(raw string, registry *categories.Registry) (domain.ReceiptAnalysis, error) {
	var m modelReceipt
	dec := json.NewDecoder(strings.NewReader(cleanModelJSON(raw)))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return domain.ReceiptAnalysis{}, fmt.Errorf("parse receipt: unmarshal JSON: %w", err)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(m.Amount.String()))
	if err != nil {
		return domain.ReceiptAnalysis{}, fmt.Errorf("parse receipt: amount %q: %w", m.Amount, err)
	}
	amount = amount.Abs().Round(2)
	if !amount.IsPositive() {
		return domain.ReceiptAnalysis{}, fmt.Errorf("parse receipt: amount must be positive, got %s", amount)
	}

	txType := domain.TransactionType(strings.ToLower(strings.TrimSpace(m.Type)))
	if !txType.Valid() {
		txType = domain.TransactionExpense
	}

	suggestions := append([]string(nil), m.Suggestions...)
	category := categories.Normalize(m.Category)
	if cat, ok := registry.Category(category); !ok || !cat.AppliesTo(txType) {
		category = categories.OtherCategoryID
		suggestions = append(suggestions, "Choose a category")
	}

	confidence := 0.5
	if m.Confidence != nil && !math.IsNaN(*m.Confidence) {
		confidence = math.Min(1, math.Max(0, *m.Confidence))
	}

	description := strings.TrimSpace(m.Description)
	establishment := deref(m.Establishment)
	if description == "" && establishment != "" {
		description = "Purchase at " + establishment
	}

	return domain.ReceiptAnalysis{
		Amount:        amount,
		Description:   description,
		Establishment: establishment,
		Category:      category,
		Type:          txType,
		PaymentMethod: deref(m.PaymentMethod),
		Confidence:    confidence,
		Suggestions:   suggestions,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
