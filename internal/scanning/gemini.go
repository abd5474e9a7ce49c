package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/spendlens/spendlens/internal/expense"
)

// extractPrompt instructs the model on every field it must produce. Line
// item prices are explicitly exempt from summing to the total.
const extractPrompt = `Analyze this receipt image and extract the expense details.
- Identify the merchant (payee), total amount, and date.
- Assign an overall category.
- Provide a brief, one-sentence description of the purchase.
- List each individual item from the receipt as an array of objects, where each object has a 'name' and a 'price'. This should be in the 'items' field.
If any information cannot be found, use a sensible default or 'N/A'. The sum of the item prices does not need to match the total amount.`

// extractTimeout bounds a single vision call.
const extractTimeout = 30 * time.Second

// expenseSchema constrains the model response to the expense shape:
// required payee/amount/date/category, optional description and items.
func expenseSchema() *genai.Schema {
	categories := make([]string, 0, len(expense.Categories))
	for _, c := range expense.Categories {
		categories = append(categories, string(c))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"payee": {
				Type:        genai.TypeString,
				Description: "The name of the merchant or person the expense was paid to.",
			},
			"amount": {
				Type:        genai.TypeNumber,
				Description: "The total amount of the expense as a numeric value.",
			},
			"date": {
				Type:        genai.TypeString,
				Description: "The date of the expense in YYYY-MM-DD format.",
			},
			"category": {
				Type:        genai.TypeString,
				Enum:        categories,
				Description: fmt.Sprintf("The category of the expense. Must be one of: %s.", strings.Join(categories, ", ")),
			},
			"description": {
				Type:        genai.TypeString,
				Description: "A brief, one-sentence description of the overall purchase.",
			},
			"items": {
				Type:        genai.TypeArray,
				Description: "Line items from the receipt, each with its name and price.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":  {Type: genai.TypeString, Description: "The name of the individual item purchased."},
						"price": {Type: genai.TypeNumber, Description: "The price of the individual item."},
					},
					Required: []string{"name", "price"},
				},
			},
		},
		Required: []string{"payee", "amount", "date", "category"},
	}
}

// Gemini implements the Extractor interface using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Extractor instance.
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   expenseSchema(),
	}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// ExtractExpense analyzes a receipt image and extracts expense fields.
func (g *Gemini) ExtractExpense(ctx context.Context, imageData []byte, mimeType string) (*ExtractedExpense, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	parts := []genai.Part{
		genai.Text(extractPrompt),
		genai.Blob{MIMEType: mimeType, Data: imageData},
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("generating content: %w", err)}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &ExtractionError{Err: fmt.Errorf("empty response from gemini")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	data, err := parseExpenseJSON(responseText.String(), time.Now())
	if err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("parsing expense data: %w", err)}
	}

	return data, nil
}

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
