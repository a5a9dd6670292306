package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		invoice *Invoice
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner = NewOllama(server.URL(), "llava")
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		invoice, err = scanner.ScanInvoice(context.Background(), []byte("png bytes"), "image/png")
	})

	When("the model answers with JSON", func() {
		var request ollamaChatRequest

		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &request)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"number":"F-2024-9","amount":"89,00","currency":"EUR"}`},
					Done:    true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should send the image with the prompt", func() {
			Expect(request.Model).To(Equal("llava"))
			Expect(request.Messages).To(HaveLen(2))
			Expect(request.Messages[1].Images).To(ConsistOf(base64.StdEncoding.EncodeToString([]byte("png bytes"))))
		})

		It("should return the parsed invoice", func() {
			Expect(invoice.Number).To(Equal("F-2024-9"))
			Expect(invoice.Amount.String()).To(Equal("89.00"))
			Expect(invoice.Currency).To(Equal("EUR"))
		})
	})

	When("the server returns an error", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("model not loaded"))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this image."},
				Done:    true,
			}))
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
