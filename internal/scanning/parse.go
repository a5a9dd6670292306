package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

type llmInvoice struct {
	Number   *string         `json:"number"`
	Amount   json.RawMessage `json:"amount"`
	Currency *string         `json:"currency"`
}

// parseInvoiceJSON parses the JSON answer of a vision model into an invoice
func parseInvoiceJSON(text string) (*Invoice, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data llmInvoice
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	invoice := NewInvoice()
	if data.Number != nil && strings.TrimSpace(*data.Number) != "" {
		invoice.Number = strings.TrimSpace(*data.Number)
	}
	if data.Currency != nil {
		invoice.Currency = strings.ToUpper(strings.TrimSpace(*data.Currency))
	}

	// Models sometimes answer with a bare number despite the prompt
	amount := strings.TrimSpace(string(data.Amount))
	switch {
	case amount == "" || amount == "null":
	case strings.HasPrefix(amount, `"`):
		var s string
		if err := json.Unmarshal(data.Amount, &s); err != nil {
			return nil, fmt.Errorf("unmarshaling amount: %w", err)
		}
		invoice.Amount = NormalizeAmount(strings.TrimSpace(s))
	default:
		invoice.Amount = NormalizeAmount(amount)
	}

	return &invoice, nil
}
