package scanning

import (
	"context"
	"encoding/json"
)

// NotFound is the invoice number reported when no invoice ID field was detected
const NotFound = "Not Found"

// Invoice contains the fields extracted from an invoice document
type Invoice struct {
	Number   string `json:"number"`
	Amount   Amount `json:"amount"`
	Currency string `json:"currency"`
}

// NewInvoice returns an invoice holding the defaults used when no fields match
func NewInvoice() Invoice {
	return Invoice{
		Number: NotFound,
		Amount: Amount{Parsed: true},
	}
}

// invoiceJSON is the stored form of Invoice. AmountText keeps the service's
// text of a parsed amount, which the numeric amount field cannot hold.
type invoiceJSON struct {
	Number     string `json:"number"`
	Amount     Amount `json:"amount"`
	AmountText string `json:"amount_text,omitempty"`
	Currency   string `json:"currency"`
}

func (inv Invoice) MarshalJSON() ([]byte, error) {
	out := invoiceJSON{
		Number:   inv.Number,
		Amount:   inv.Amount,
		Currency: inv.Currency,
	}
	if inv.Amount.Parsed && inv.Amount.Raw != inv.Amount.String() {
		out.AmountText = inv.Amount.Raw
	}
	return json.Marshal(out)
}

func (inv *Invoice) UnmarshalJSON(data []byte) error {
	var in invoiceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*inv = Invoice{
		Number:   in.Number,
		Amount:   in.Amount,
		Currency: in.Currency,
	}
	if in.AmountText != "" && inv.Amount.Parsed {
		inv.Amount.Raw = in.AmountText
	}
	return nil
}

// Scanner defines the interface for synchronous invoice extraction
type Scanner interface {
	// ScanInvoice analyzes an invoice image/PDF and extracts its fields
	ScanInvoice(ctx context.Context, data []byte, contentType string) (*Invoice, error)
	// Close closes the scanner and releases resources
	Close() error
}
