package invoice

import (
	"encoding/json"
	"time"

	"github.com/zombor/invoice-extract/internal/scanning"
)

// Providers that can extract a document
const (
	ProviderAWS       = "aws"
	ProviderDocuPanda = "docupanda"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Extraction is the result of running one document through one provider
type Extraction struct {
	ID          string            `json:"id"`
	Provider    string            `json:"provider"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	Digest      string            `json:"digest"` // SHA-256 of the document
	Invoice     *scanning.Invoice `json:"invoice,omitempty"`
	// Async providers report the terminal poll state and the raw document
	DocumentID string             `json:"document_id,omitempty"`
	State      scanning.PollState `json:"state,omitempty"`
	Document   json.RawMessage    `json:"document,omitempty"`
	OutputPath string             `json:"output_path,omitempty"`
	Reused     bool               `json:"reused,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}
