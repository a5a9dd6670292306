package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("ExtractInvoice", func() {
	var (
		docs    []ExpenseDocument
		policy  MatchPolicy
		invoice Invoice
	)

	BeforeEach(func() {
		docs = nil
		policy = LastMatchWins
	})

	JustBeforeEach(func() {
		invoice = ExtractInvoice(docs, policy)
	})

	When("there are no expense documents", func() {
		It("should return the default invoice", func() {
			Expect(invoice.Number).To(Equal("Not Found"))
			Expect(invoice.Amount.Parsed).To(BeTrue())
			Expect(invoice.Amount.Value.IsZero()).To(BeTrue())
			Expect(invoice.Currency).To(Equal(""))
		})
	})

	When("the fields are present once", func() {
		BeforeEach(func() {
			docs = []ExpenseDocument{{
				SummaryFields: []SummaryField{
					{Type: "VENDOR_NAME", Value: "ACME Ltd"},
					{Type: FieldInvoiceReceiptID, Value: "INV-001"},
					{Type: FieldAmountDue, Value: "99,90", Currency: "EUR"},
				},
			}}
		})

		It("should extract the number", func() {
			Expect(invoice.Number).To(Equal("INV-001"))
		})

		It("should normalize the amount", func() {
			Expect(invoice.Amount.Value.Equal(decimal.RequireFromString("99.90"))).To(BeTrue())
		})

		It("should take the currency from the amount field", func() {
			Expect(invoice.Currency).To(Equal("EUR"))
		})
	})

	When("fields repeat across documents", func() {
		BeforeEach(func() {
			docs = []ExpenseDocument{
				{SummaryFields: []SummaryField{
					{Type: FieldInvoiceReceiptID, Value: "FIRST"},
					{Type: FieldAmountDue, Value: "10.00", Currency: "GBP"},
				}},
				{SummaryFields: []SummaryField{
					{Type: FieldAmountDue, Value: "20.00"},
					{Type: FieldInvoiceReceiptID, Value: "LAST"},
				}},
			}
		})

		Context("with the last match policy", func() {
			It("should keep the last number", func() {
				Expect(invoice.Number).To(Equal("LAST"))
			})

			It("should keep the last amount and its currency", func() {
				Expect(invoice.Amount.Value.Equal(decimal.NewFromInt(20))).To(BeTrue())
				Expect(invoice.Currency).To(BeEmpty())
			})
		})

		Context("with the first match policy", func() {
			BeforeEach(func() {
				policy = FirstMatchWins
			})

			It("should keep the first number", func() {
				Expect(invoice.Number).To(Equal("FIRST"))
			})

			It("should keep the first amount and its currency", func() {
				Expect(invoice.Amount.Value.Equal(decimal.NewFromInt(10))).To(BeTrue())
				Expect(invoice.Currency).To(Equal("GBP"))
			})
		})
	})

	When("the amount cannot be parsed", func() {
		BeforeEach(func() {
			docs = []ExpenseDocument{{
				SummaryFields: []SummaryField{
					{Type: FieldAmountDue, Value: "12,,34"},
				},
			}}
		})

		It("should pass the text through", func() {
			Expect(invoice.Amount.Parsed).To(BeFalse())
			Expect(invoice.Amount.Raw).To(Equal("12,,34"))
		})
	})
})

var _ = Describe("ParseMatchPolicy", func() {
	It("should accept last and first", func() {
		Expect(ParseMatchPolicy("last")).To(Equal(LastMatchWins))
		Expect(ParseMatchPolicy("first")).To(Equal(FirstMatchWins))
		Expect(ParseMatchPolicy("")).To(Equal(LastMatchWins))
	})

	It("should reject anything else", func() {
		_, err := ParseMatchPolicy("middle")
		Expect(err).To(HaveOccurred())
	})
})
