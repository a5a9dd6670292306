package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultDocuPandaURL is the DocuPanda document endpoint
const DefaultDocuPandaURL = "https://app.docupanda.io/document"

// DocumentStatus is one status response of the document API
type DocumentStatus struct {
	Status string
	Body   json.RawMessage
}

// DocumentAPI submits documents for asynchronous processing and reports their status
type DocumentAPI interface {
	Submit(ctx context.Context, data []byte, filename string) (string, error)
	Status(ctx context.Context, documentID string) (*DocumentStatus, error)
}

// DocuPanda is a client for the DocuPanda document API
type DocuPanda struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDocuPanda creates a DocuPanda client. The API key is sent as given,
// an empty key is not rejected.
func NewDocuPanda(baseURL, apiKey string) *DocuPanda {
	if baseURL == "" {
		baseURL = DefaultDocuPandaURL
	}
	return &DocuPanda{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type docuPandaFile struct {
	Contents string `json:"contents"`
	Filename string `json:"filename"`
}

type docuPandaDocument struct {
	File docuPandaFile `json:"file"`
}

type docuPandaSubmitRequest struct {
	Document docuPandaDocument `json:"document"`
}

type docuPandaSubmitResponse struct {
	DocumentID string `json:"documentId"`
}

type docuPandaStatusResponse struct {
	Status string `json:"status"`
}

// Submit uploads the document and returns its document ID
func (d *DocuPanda) Submit(ctx context.Context, data []byte, filename string) (string, error) {
	reqBody := docuPandaSubmitRequest{
		Document: docuPandaDocument{
			File: docuPandaFile{
				Contents: base64.StdEncoding.EncodeToString(data),
				Filename: filename,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	body, err := d.do(ctx, http.MethodPost, d.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("submitting document: %w", err)
	}

	var resp docuPandaSubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if resp.DocumentID == "" {
		return "", fmt.Errorf("submit response has no documentId: %s", string(body))
	}

	return resp.DocumentID, nil
}

// Status fetches the current processing status of a document
func (d *DocuPanda) Status(ctx context.Context, documentID string) (*DocumentStatus, error) {
	body, err := d.do(ctx, http.MethodGet, d.baseURL+"/"+documentID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching document status: %w", err)
	}

	var resp docuPandaStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}

	return &DocumentStatus{
		Status: resp.Status,
		Body:   json.RawMessage(body),
	}, nil
}

func (d *DocuPanda) do(ctx context.Context, method, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("X-API-Key", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling docupanda API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("docupanda API error (status %d): %s", resp.StatusCode, string(data))
	}

	return data, nil
}
