package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("DocuPanda", func() {
	var (
		server *ghttp.Server
		client *DocuPanda
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		client = NewDocuPanda(server.URL()+"/document", "secret-key")
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Submit", func() {
		var (
			documentID string
			err        error
		)

		JustBeforeEach(func() {
			documentID, err = client.Submit(context.Background(), []byte("hello"), "invoice.pdf")
		})

		When("the API accepts the document", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/document"),
					ghttp.VerifyHeaderKV("X-API-Key", "secret-key"),
					ghttp.VerifyHeaderKV("Accept", "application/json"),
					ghttp.VerifyContentType("application/json"),
					ghttp.VerifyJSON(`{"document":{"file":{"contents":"aGVsbG8=","filename":"invoice.pdf"}}}`),
					ghttp.RespondWith(http.StatusOK, `{"documentId":"doc-123","status":"processing"}`),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the document ID", func() {
				Expect(documentID).To(Equal("doc-123"))
			})
		})

		When("the API key is empty", func() {
			BeforeEach(func() {
				client = NewDocuPanda(server.URL()+"/document", "")
				server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"documentId":"doc-1"}`))
			})

			It("should still send the request", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(server.ReceivedRequests()).To(HaveLen(1))
				Expect(server.ReceivedRequests()[0].Header.Get("X-API-Key")).To(BeEmpty())
			})
		})

		When("the response has no document ID", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{}`))
			})

			It("returns an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})

		When("the API returns an error status", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusUnauthorized, `{"detail":"invalid key"}`))
			})

			It("returns an error with the status", func() {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("status 401"))
			})
		})
	})

	Describe("Status", func() {
		var (
			status *DocumentStatus
			err    error
		)

		JustBeforeEach(func() {
			status, err = client.Status(context.Background(), "doc-123")
		})

		When("the document is known", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/document/doc-123"),
					ghttp.VerifyHeaderKV("X-API-Key", "secret-key"),
					ghttp.RespondWith(http.StatusOK, `{"documentId":"doc-123","status":"completed","result":{"pages":[]}}`),
				))
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the status", func() {
				Expect(status.Status).To(Equal(StatusCompleted))
			})

			It("should keep the full body", func() {
				Expect(status.Body).To(MatchJSON(`{"documentId":"doc-123","status":"completed","result":{"pages":[]}}`))
			})
		})

		When("the body is not JSON", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `<html>`))
			})

			It("returns an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
