package scanning

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"
)

const analyzeExpenseRequestErrorCode = "AnalyzeExpenseRequestError"

// ErrAnalyzeExpenseRequest is returned when Textract rejects the AnalyzeExpense request
var ErrAnalyzeExpenseRequest = errors.New("AnalyzeExpenseRequestError")

// ExpenseAnalyzer is the subset of the Textract client used by Textract
type ExpenseAnalyzer interface {
	AnalyzeExpense(ctx context.Context, params *textract.AnalyzeExpenseInput, optFns ...func(*textract.Options)) (*textract.AnalyzeExpenseOutput, error)
}

// Textract implements the Scanner interface using AWS Textract AnalyzeExpense
type Textract struct {
	client ExpenseAnalyzer
	policy MatchPolicy
}

// NewTextract creates a Textract scanner from the shared AWS config.
// An empty profile uses the default credential chain.
func NewTextract(ctx context.Context, profile, region string, policy MatchPolicy) (*Textract, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return NewTextractWithClient(textract.NewFromConfig(cfg), policy), nil
}

// NewTextractWithClient creates a Textract scanner with a custom client for testing
func NewTextractWithClient(client ExpenseAnalyzer, policy MatchPolicy) *Textract {
	return &Textract{
		client: client,
		policy: policy,
	}
}

// ScanInvoice sends the document to AnalyzeExpense and extracts the invoice fields
func (t *Textract) ScanInvoice(ctx context.Context, data []byte, contentType string) (*Invoice, error) {
	document, err := prepareExpenseDocument(data, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.AnalyzeExpense(ctx, &textract.AnalyzeExpenseInput{
		Document: &types.Document{Bytes: document},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == analyzeExpenseRequestErrorCode {
			return nil, fmt.Errorf("%w: %s", ErrAnalyzeExpenseRequest, apiErr.ErrorMessage())
		}
		return nil, err
	}

	invoice := ExtractInvoice(expenseDocuments(resp.ExpenseDocuments), t.policy)
	return &invoice, nil
}

// Close is a no-op, the AWS client holds no resources
func (t *Textract) Close() error {
	return nil
}

func expenseDocuments(docs []types.ExpenseDocument) []ExpenseDocument {
	out := make([]ExpenseDocument, 0, len(docs))
	for _, doc := range docs {
		fields := make([]SummaryField, 0, len(doc.SummaryFields))
		for _, f := range doc.SummaryFields {
			var field SummaryField
			if f.Type != nil {
				field.Type = aws.ToString(f.Type.Text)
			}
			if f.ValueDetection != nil {
				field.Value = aws.ToString(f.ValueDetection.Text)
			}
			if f.Currency != nil {
				field.Currency = aws.ToString(f.Currency.Code)
			}
			fields = append(fields, field)
		}
		out = append(out, ExpenseDocument{SummaryFields: fields})
	}
	return out
}
