package scanning

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

// mockAnalyzer is a mock implementation of ExpenseAnalyzer
type mockAnalyzer struct {
	input  *textract.AnalyzeExpenseInput
	output *textract.AnalyzeExpenseOutput
	err    error
}

func (m *mockAnalyzer) AnalyzeExpense(ctx context.Context, params *textract.AnalyzeExpenseInput, optFns ...func(*textract.Options)) (*textract.AnalyzeExpenseOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func summaryField(fieldType, value, currency string) types.ExpenseField {
	field := types.ExpenseField{
		Type:           &types.ExpenseType{Text: aws.String(fieldType)},
		ValueDetection: &types.ExpenseDetection{Text: aws.String(value)},
	}
	if currency != "" {
		field.Currency = &types.ExpenseCurrency{Code: aws.String(currency)}
	}
	return field
}

var _ = Describe("Textract", func() {
	var (
		analyzer    *mockAnalyzer
		scanner     *Textract
		data        []byte
		contentType string
		invoice     *Invoice
		err         error
	)

	BeforeEach(func() {
		analyzer = &mockAnalyzer{
			output: &textract.AnalyzeExpenseOutput{
				ExpenseDocuments: []types.ExpenseDocument{{
					SummaryFields: []types.ExpenseField{
						summaryField(FieldInvoiceReceiptID, "INV-7", ""),
						summaryField(FieldAmountDue, "350,00", "EUR"),
						{Type: &types.ExpenseType{}},
					},
				}},
			},
		}
		scanner = NewTextractWithClient(analyzer, LastMatchWins)
		data = []byte("%PDF-1.4 fake")
		contentType = "application/pdf"
	})

	JustBeforeEach(func() {
		invoice, err = scanner.ScanInvoice(context.Background(), data, contentType)
	})

	When("analysis succeeds", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should send the document bytes unchanged", func() {
			Expect(analyzer.input.Document.Bytes).To(Equal(data))
		})

		It("should extract the invoice", func() {
			Expect(invoice.Number).To(Equal("INV-7"))
			Expect(invoice.Amount.Value.Equal(decimal.NewFromInt(350))).To(BeTrue())
			Expect(invoice.Currency).To(Equal("EUR"))
		})
	})

	When("the response has no expense documents", func() {
		BeforeEach(func() {
			analyzer.output = &textract.AnalyzeExpenseOutput{}
		})

		It("should return the default invoice", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(invoice.Number).To(Equal(NotFound))
			Expect(invoice.Amount.Value.IsZero()).To(BeTrue())
			Expect(invoice.Currency).To(BeEmpty())
		})
	})

	When("textract rejects the request", func() {
		BeforeEach(func() {
			analyzer.err = &smithy.GenericAPIError{Code: "AnalyzeExpenseRequestError", Message: "bad document"}
		})

		It("should wrap the error", func() {
			Expect(err).To(MatchError(ErrAnalyzeExpenseRequest))
			Expect(err.Error()).To(ContainSubstring("bad document"))
		})
	})

	When("any other error occurs", func() {
		var apiErr error

		BeforeEach(func() {
			apiErr = &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
			analyzer.err = apiErr
		})

		It("should return it unchanged", func() {
			Expect(err).To(BeIdenticalTo(apiErr))
			Expect(errors.Is(err, ErrAnalyzeExpenseRequest)).To(BeFalse())
		})
	})

	When("the image format is not supported", func() {
		BeforeEach(func() {
			data = []byte("not an image")
			contentType = "image/gif"
		})

		It("should return a conversion error without calling textract", func() {
			Expect(err).To(HaveOccurred())
			Expect(analyzer.input).To(BeNil())
		})
	})
})
