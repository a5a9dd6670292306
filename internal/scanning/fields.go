package scanning

import "fmt"

// Summary field types read from expense analysis responses
const (
	FieldInvoiceReceiptID = "INVOICE_RECEIPT_ID"
	FieldAmountDue        = "AMOUNT_DUE"
)

// ExpenseDocument is one document of an expense analysis response
type ExpenseDocument struct {
	SummaryFields []SummaryField
}

// SummaryField is a typed key/value detected on an expense document
type SummaryField struct {
	Type     string
	Value    string
	Currency string
}

// MatchPolicy decides which field wins when a type appears more than once
type MatchPolicy int

const (
	// LastMatchWins keeps the last matching field in service order
	LastMatchWins MatchPolicy = iota
	// FirstMatchWins keeps the first matching field in service order
	FirstMatchWins
)

// ParseMatchPolicy parses "last" or "first"
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch s {
	case "", "last":
		return LastMatchWins, nil
	case "first":
		return FirstMatchWins, nil
	default:
		return 0, fmt.Errorf("invalid match policy %q: want 'last' or 'first'", s)
	}
}

func (p MatchPolicy) String() string {
	if p == FirstMatchWins {
		return "first"
	}
	return "last"
}

// ExtractInvoice scans every summary field of every document and builds an invoice
func ExtractInvoice(docs []ExpenseDocument, policy MatchPolicy) Invoice {
	invoice := NewInvoice()
	var seenNumber, seenAmount bool

	for _, doc := range docs {
		for _, field := range doc.SummaryFields {
			switch field.Type {
			case FieldInvoiceReceiptID:
				if seenNumber && policy == FirstMatchWins {
					continue
				}
				invoice.Number = field.Value
				seenNumber = true
			case FieldAmountDue:
				if seenAmount && policy == FirstMatchWins {
					continue
				}
				invoice.Amount = NormalizeAmount(field.Value)
				invoice.Currency = field.Currency
				seenAmount = true
			}
		}
	}

	return invoice
}
