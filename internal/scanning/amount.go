package scanning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	numberPrefix = regexp.MustCompile(`^[\d+,.]+`)
	// optional leading sign, digits with at most one decimal point
	numeral = regexp.MustCompile(`^\+?(\d+\.?\d*|\.\d+)$`)
)

// Amount is a normalized amount. Parsed amounts carry an exact decimal value;
// unparsed amounts keep the text the service returned.
type Amount struct {
	Value  decimal.Decimal
	Raw    string
	Parsed bool
}

// NormalizeAmount parses the leading numeral of text into an exact decimal.
// Commas are read as decimal points. Text without a leading numeral, or whose
// numeral is malformed, is passed through unparsed.
func NormalizeAmount(text string) Amount {
	match := numberPrefix.FindString(text)
	if match == "" {
		return Amount{Raw: text}
	}

	candidate := strings.ReplaceAll(match, ",", ".")
	if !numeral.MatchString(candidate) {
		return Amount{Raw: text}
	}

	value, err := decimal.NewFromString(candidate)
	if err != nil {
		return Amount{Raw: text}
	}
	return Amount{Value: value, Raw: text, Parsed: true}
}

// String returns the decimal value at the scale it was printed with, or the
// raw text for unparsed amounts
func (a Amount) String() string {
	if !a.Parsed {
		return a.Raw
	}
	if exp := a.Value.Exponent(); exp < 0 {
		return a.Value.StringFixed(-exp)
	}
	return a.Value.String()
}

// MarshalJSON encodes parsed amounts as numbers and unparsed ones as strings.
// The service's text of a parsed amount is carried by Invoice, not here.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Parsed {
		return []byte(a.String()), nil
	}
	return json.Marshal(a.Raw)
}

// UnmarshalJSON reverses MarshalJSON
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		*a = Amount{Parsed: true}
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("unmarshaling amount: %w", err)
		}
		*a = Amount{Raw: raw}
		return nil
	}

	value, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("unmarshaling amount: %w", err)
	}
	*a = Amount{Value: value, Raw: text, Parsed: true}
	return nil
}
